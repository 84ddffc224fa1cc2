package models

import (
	"time"

	"github.com/google/uuid"
)

// Reporting periods. Start/end are civil UTC dates rendered as YYYY-MM-DD.
// For relative keys they are recomputed from the key on every read; custom
// periods carry their stored boundaries.
type ReportingPeriod struct {
	Key       string `json:"key"` // ytd, last_12_months, last_quarter, custom
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsActive  bool   `json:"is_active"`
}

// Variance annotation attached to every metric observation. Percent is nil
// when the benchmark is zero (undefined, not zero).
type Variance struct {
	Amount         float64  `json:"variance_amount"`
	Percent        *float64 `json:"variance_percent"`
	AboveBenchmark bool     `json:"above_benchmark"`
	Classification string   `json:"classification"` // red, yellow, green, unknown
}

type CostCategory struct {
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	MetricType    string   `json:"metric_type"`
	ActualPMPM    float64  `json:"actual_pmpm"`
	BenchmarkPMPM float64  `json:"benchmark_pmpm"`
	PreviousPMPM  float64  `json:"previous_pmpm"`
	Amount        float64  `json:"amount"` // total category spend for the period
	Variance      Variance `json:"variance"`
}

// CostOpportunity is always derived from its category's variance at read
// time; type and sign cannot diverge.
type CostOpportunity struct {
	CategorySlug    string   `json:"category_slug"`
	CategoryName    string   `json:"category_name"`
	Type            string   `json:"type"` // overspending, efficient
	AmountVariance  float64  `json:"amount_variance"`
	PercentVariance *float64 `json:"percent_variance"`
	DisplayOrder    int      `json:"display_order"`
	Visible         bool     `json:"visible"`
}

type OpportunityBoard struct {
	Period           ReportingPeriod   `json:"period"`
	TopOpportunities []CostOpportunity `json:"top_opportunities"`
	TopPerformers    []CostOpportunity `json:"top_performers"`
	SavingsTotal     float64           `json:"savings_total"`
	EfficiencyTotal  float64           `json:"efficiency_total"`
}

type OpportunitySummary struct {
	Period          ReportingPeriod `json:"period"`
	SavingsTotal    float64         `json:"savings_total"`
	EfficiencyTotal float64         `json:"efficiency_total"`
}

type RankedDoctor struct {
	Rank         int     `json:"rank"`
	Name         string  `json:"name"`
	NPI          string  `json:"npi,omitempty"`
	Spend        float64 `json:"spend"`
	PatientCount int     `json:"patient_count"`
}

type RankedPatient struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	MRN        string  `json:"mrn,omitempty"`
	Spend      float64 `json:"spend"`
	VisitCount int     `json:"visit_count"`
}

type CategoryMeta struct {
	Slug   string  `json:"slug"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type DoctorRankingGroup struct {
	Category CategoryMeta   `json:"category"`
	Doctors  []RankedDoctor `json:"doctors"`
}

type PatientRankingGroup struct {
	Category CategoryMeta    `json:"category"`
	Patients []RankedPatient `json:"patients"`
}

type KPI struct {
	Slug      string                 `json:"slug"`
	Name      string                 `json:"name"`
	Unit      string                 `json:"unit,omitempty"`
	Actual    float64                `json:"actual"`
	Benchmark float64                `json:"benchmark"`
	Previous  float64                `json:"previous"`
	Variance  Variance               `json:"variance"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

type SuggestionGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

type CareGapMetric struct {
	GapType        string   `json:"gap_type"`
	Name           string   `json:"name"`
	OpenGaps       int      `json:"open_gaps"`
	DaysOverdue    float64  `json:"days_overdue"`
	Classification string   `json:"classification"`
	Interventions  []string `json:"interventions"`
}

type RecommendationLink struct {
	CategorySlug string  `json:"category_slug"`
	ImpactAmount float64 `json:"impact_amount"`
}

type Recommendation struct {
	ID               uuid.UUID            `json:"id"`
	Title            string               `json:"title"`
	Priority         string               `json:"priority"`
	EstimatedSavings float64              `json:"estimated_savings"`
	Status           string               `json:"status"`
	Links            []RecommendationLink `json:"links"`
	CreatedAt        time.Time            `json:"created_at"`
}

// PracticeSettings carries named options with documented fallback defaults
// used until the practice has stored its own values.
type PracticeSettings struct {
	PanelSize         int     `json:"panel_size"`
	TotalQualityBonus float64 `json:"total_quality_bonus"`
}

const (
	DefaultPanelSize         = 1522
	DefaultTotalQualityBonus = 350000
)

type UpdateSettingsRequest struct {
	PanelSize         *int     `json:"panel_size,omitempty"`
	TotalQualityBonus *float64 `json:"total_quality_bonus,omitempty"`
}

type KPIStatusCounts struct {
	Red     int `json:"red"`
	Yellow  int `json:"yellow"`
	Green   int `json:"green"`
	Unknown int `json:"unknown"`
}

type DashboardSummary struct {
	Period          ReportingPeriod `json:"period"`
	TotalActual     float64         `json:"total_actual"`
	TotalBenchmark  float64         `json:"total_benchmark"`
	TotalVariance   float64         `json:"total_variance"`
	KPIStatus       KPIStatusCounts `json:"kpi_status"`
	SavingsTotal    float64         `json:"savings_total"`
	EfficiencyTotal float64         `json:"efficiency_total"`
	PanelSize       int             `json:"panel_size"`
}

// Event bus payloads.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // data_updated, impact_drift, cache_invalidated
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// ImpactDrift reports a recommendation whose claimed category impacts no
// longer reconcile against the categories' computed variances.
type ImpactDrift struct {
	RecommendationID uuid.UUID `json:"recommendation_id"`
	CategorySlug     string    `json:"category_slug"`
	ClaimedImpact    float64   `json:"claimed_impact"`
	CategoryVariance float64   `json:"category_variance"`
	Delta            float64   `json:"delta"`
}
