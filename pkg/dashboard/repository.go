package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/careforward/aco-insights/pkg/aggregation"
	"github.com/careforward/aco-insights/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Boundary row types. Columns arrive snake_case from the store and are
// normalized here before anything downstream touches them.

type PeriodRow struct {
	Key      string
	Label    string
	IsActive bool
	// Stored boundaries, consulted only for custom periods.
	StartDate *time.Time
	EndDate   *time.Time
}

type CategoryRow struct {
	Slug            string
	Name            string
	MetricType      string
	ActualAmount    float64
	BenchmarkAmount float64
	PreviousAmount  float64
	ActualPMPM      float64
	BenchmarkPMPM   float64
	PreviousPMPM    float64
	DisplayOrder    int
	Visible         bool
}

type KPIRow struct {
	Slug       string
	Name       string
	Unit       string
	MetricType string
	Actual     float64
	Benchmark  float64
	Previous   float64
	Detail     map[string]interface{}
}

type periodModel struct {
	ID       int64  `gorm:"primaryKey;column:id"`
	Key      string `gorm:"column:period_key"`
	Label    string `gorm:"column:label"`
	IsActive bool   `gorm:"column:is_active"`
	// For relative keys the key is the only durable fact and boundaries
	// are recomputed per request; custom periods keep their stored dates.
	StartDate *time.Time `gorm:"column:start_date"`
	EndDate   *time.Time `gorm:"column:end_date"`
}

func (periodModel) TableName() string { return "reporting_periods" }

type categoryModel struct {
	ID              int64   `gorm:"primaryKey;column:id"`
	PeriodKey       string  `gorm:"column:period_key"`
	Slug            string  `gorm:"column:slug"`
	Name            string  `gorm:"column:name"`
	MetricType      string  `gorm:"column:metric_type"`
	ActualAmount    float64 `gorm:"column:actual_amount"`
	BenchmarkAmount float64 `gorm:"column:benchmark_amount"`
	PreviousAmount  float64 `gorm:"column:previous_amount"`
	ActualPMPM      float64 `gorm:"column:actual_pmpm"`
	BenchmarkPMPM   float64 `gorm:"column:benchmark_pmpm"`
	PreviousPMPM    float64 `gorm:"column:previous_pmpm"`
	DisplayOrder    int     `gorm:"column:display_order"`
	Visible         bool    `gorm:"column:dashboard_visible"`
}

func (categoryModel) TableName() string { return "cost_categories" }

type doctorRankModel struct {
	ID           int64   `gorm:"primaryKey;column:id"`
	CategoryID   int64   `gorm:"column:category_id"`
	Rank         int     `gorm:"column:rank"`
	Name         string  `gorm:"column:name"`
	NPI          string  `gorm:"column:npi"`
	Spend        float64 `gorm:"column:spend"`
	PatientCount int     `gorm:"column:patient_count"`
}

func (doctorRankModel) TableName() string { return "cost_category_doctors" }

type patientRankModel struct {
	ID         int64   `gorm:"primaryKey;column:id"`
	CategoryID int64   `gorm:"column:category_id"`
	Rank       int     `gorm:"column:rank"`
	Name       string  `gorm:"column:name"`
	MRN        string  `gorm:"column:mrn"`
	Spend      float64 `gorm:"column:spend"`
	VisitCount int     `gorm:"column:visit_count"`
}

func (patientRankModel) TableName() string { return "cost_category_patients" }

type kpiModel struct {
	ID         int64          `gorm:"primaryKey;column:id"`
	PeriodKey  string         `gorm:"column:period_key"`
	Slug       string         `gorm:"column:slug"`
	Name       string         `gorm:"column:name"`
	Unit       string         `gorm:"column:unit"`
	MetricType string         `gorm:"column:metric_type"`
	Actual     float64        `gorm:"column:actual"`
	Benchmark  float64        `gorm:"column:benchmark"`
	Previous   float64        `gorm:"column:previous"`
	Detail     datatypes.JSON `gorm:"column:detail"`
}

func (kpiModel) TableName() string { return "kpis" }

type suggestionModel struct {
	ID        int64  `gorm:"primaryKey;column:id"`
	Category  string `gorm:"column:category"`
	Text      string `gorm:"column:suggestion_text"`
	SortOrder int    `gorm:"column:sort_order"`
	Visible   bool   `gorm:"column:visible"`
}

func (suggestionModel) TableName() string { return "dashboard_suggestions" }

type recommendationModel struct {
	ID               uuid.UUID      `gorm:"primaryKey;column:id"`
	Title            string         `gorm:"column:title"`
	Priority         string         `gorm:"column:priority"`
	EstimatedSavings float64        `gorm:"column:estimated_savings"`
	Status           string         `gorm:"column:status"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
}

func (recommendationModel) TableName() string { return "recommendations" }

type recommendationLinkModel struct {
	ID               int64     `gorm:"primaryKey;column:id"`
	RecommendationID uuid.UUID `gorm:"column:recommendation_id"`
	CategorySlug     string    `gorm:"column:category_slug"`
	ImpactAmount     float64   `gorm:"column:impact_amount"`
}

func (recommendationLinkModel) TableName() string { return "recommendation_categories" }

type settingModel struct {
	Name  string `gorm:"primaryKey;column:name"`
	Value string `gorm:"column:value"`
}

func (settingModel) TableName() string { return "practice_settings" }

func (r *Repository) ListPeriods(ctx context.Context) ([]PeriodRow, error) {
	var rows []periodModel
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]PeriodRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPeriodRow(row))
	}
	return out, nil
}

func toPeriodRow(row periodModel) PeriodRow {
	return PeriodRow{
		Key:       row.Key,
		Label:     row.Label,
		IsActive:  row.IsActive,
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
	}
}

func (r *Repository) ActivePeriod(ctx context.Context) (PeriodRow, error) {
	var row periodModel
	err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PeriodRow{}, notFound("reporting period")
	}
	if err != nil {
		return PeriodRow{}, err
	}
	return toPeriodRow(row), nil
}

func (r *Repository) ListCategories(ctx context.Context, periodKey string) ([]CategoryRow, error) {
	var rows []categoryModel
	err := r.db.WithContext(ctx).
		Where("period_key = ?", periodKey).
		Order("actual_amount desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]CategoryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCategoryRow(row))
	}
	return out, nil
}

func (r *Repository) ListCategoriesByType(ctx context.Context, periodKey, metricType string) ([]CategoryRow, error) {
	var rows []categoryModel
	err := r.db.WithContext(ctx).
		Where("period_key = ? AND metric_type = ?", periodKey, metricType).
		Order("actual_amount desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]CategoryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCategoryRow(row))
	}
	return out, nil
}

func (r *Repository) GetCategory(ctx context.Context, periodKey, slug string) (CategoryRow, error) {
	var row categoryModel
	err := r.db.WithContext(ctx).
		Where("period_key = ? AND slug = ?", periodKey, slug).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CategoryRow{}, notFound("cost category")
	}
	if err != nil {
		return CategoryRow{}, err
	}
	return toCategoryRow(row), nil
}

func toCategoryRow(row categoryModel) CategoryRow {
	return CategoryRow{
		Slug:            row.Slug,
		Name:            row.Name,
		MetricType:      row.MetricType,
		ActualAmount:    row.ActualAmount,
		BenchmarkAmount: row.BenchmarkAmount,
		PreviousAmount:  row.PreviousAmount,
		ActualPMPM:      row.ActualPMPM,
		BenchmarkPMPM:   row.BenchmarkPMPM,
		PreviousPMPM:    row.PreviousPMPM,
		DisplayOrder:    row.DisplayOrder,
		Visible:         row.Visible,
	}
}

type rankingJoinRow struct {
	Slug         string  `gorm:"column:slug"`
	CategoryName string  `gorm:"column:category_name"`
	Amount       float64 `gorm:"column:actual_amount"`
	Rank         int     `gorm:"column:rank"`
	Name         string  `gorm:"column:name"`
	Ref          string  `gorm:"column:ref"`
	Spend        float64 `gorm:"column:spend"`
	Count        int     `gorm:"column:entity_count"`
}

const doctorRankingQuery = `
SELECT c.slug, c.name AS category_name, c.actual_amount,
       d.rank, d.name, d.npi AS ref, d.spend, d.patient_count AS entity_count
FROM cost_category_doctors d
JOIN cost_categories c ON c.id = d.category_id
WHERE c.period_key = ? AND (? = '' OR c.slug = ?)
ORDER BY c.actual_amount DESC, d.rank ASC`

const patientRankingQuery = `
SELECT c.slug, c.name AS category_name, c.actual_amount,
       p.rank, p.name, p.mrn AS ref, p.spend, p.visit_count AS entity_count
FROM cost_category_patients p
JOIN cost_categories c ON c.id = p.category_id
WHERE c.period_key = ? AND (? = '' OR c.slug = ?)
ORDER BY c.actual_amount DESC, p.rank ASC`

func (r *Repository) ListDoctorRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error) {
	return r.listRankings(ctx, doctorRankingQuery, periodKey, slug)
}

func (r *Repository) ListPatientRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error) {
	return r.listRankings(ctx, patientRankingQuery, periodKey, slug)
}

func (r *Repository) listRankings(ctx context.Context, query, periodKey, slug string) ([]aggregation.RankingRow, error) {
	var rows []rankingJoinRow
	if err := r.db.WithContext(ctx).Raw(query, periodKey, slug, slug).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]aggregation.RankingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, aggregation.RankingRow{
			Category: models.CategoryMeta{Slug: row.Slug, Name: row.CategoryName, Amount: row.Amount},
			Entry: aggregation.RankedEntry{
				Rank:  row.Rank,
				Ref:   row.Ref,
				Name:  row.Name,
				Spend: row.Spend,
				Count: row.Count,
			},
		})
	}
	return out, nil
}

func (r *Repository) ListKPIs(ctx context.Context, periodKey string) ([]KPIRow, error) {
	var rows []kpiModel
	err := r.db.WithContext(ctx).
		Where("period_key = ?", periodKey).
		Order("slug asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]KPIRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toKPIRow(row))
	}
	return out, nil
}

func (r *Repository) GetKPI(ctx context.Context, periodKey, slug string) (KPIRow, error) {
	var row kpiModel
	err := r.db.WithContext(ctx).
		Where("period_key = ? AND slug = ?", periodKey, slug).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KPIRow{}, notFound("kpi")
	}
	if err != nil {
		return KPIRow{}, err
	}
	return toKPIRow(row), nil
}

func toKPIRow(row kpiModel) KPIRow {
	out := KPIRow{
		Slug:       row.Slug,
		Name:       row.Name,
		Unit:       row.Unit,
		MetricType: row.MetricType,
		Actual:     row.Actual,
		Benchmark:  row.Benchmark,
		Previous:   row.Previous,
	}
	if len(row.Detail) > 0 {
		detail := map[string]interface{}{}
		if err := json.Unmarshal(row.Detail, &detail); err == nil {
			out.Detail = detail
		}
	}
	return out
}

func (r *Repository) ListSuggestions(ctx context.Context) ([]aggregation.SuggestionRow, error) {
	var rows []suggestionModel
	err := r.db.WithContext(ctx).
		Where("visible = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]aggregation.SuggestionRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, aggregation.SuggestionRow{
			Category:  row.Category,
			Text:      row.Text,
			SortOrder: row.SortOrder,
		})
	}
	return out, nil
}

// Gap metric rows come back as raw maps: the metric and intervention tables
// predate this service and deliver numeric columns as text in some
// deployments, so coercion is deferred to the aggregation boundary.
const gapRowQuery = `
SELECT g.gap_type, g.name, g.open_gaps, g.days_overdue,
       i.intervention_text, i.sort_order
FROM care_gap_metrics g
LEFT JOIN care_gap_interventions i ON i.gap_metric_id = g.id
WHERE (? = '' OR g.gap_type = ?)
ORDER BY g.id ASC, i.sort_order ASC`

func (r *Repository) ListGapRows(ctx context.Context, gapType string) ([]aggregation.GapRow, error) {
	var raw []map[string]interface{}
	if err := r.db.WithContext(ctx).Raw(gapRowQuery, gapType, gapType).Scan(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]aggregation.GapRow, 0, len(raw))
	for _, row := range raw {
		out = append(out, aggregation.GapRow{
			GapType:      asString(row["gap_type"]),
			Name:         asString(row["name"]),
			OpenGaps:     row["open_gaps"],
			DaysOverdue:  row["days_overdue"],
			Intervention: asString(row["intervention_text"]),
			SortOrder:    aggregation.ToInt(row["sort_order"]),
		})
	}
	return out, nil
}

func (r *Repository) ListRecommendations(ctx context.Context) ([]models.Recommendation, error) {
	var recs []recommendationModel
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []models.Recommendation{}, nil
	}

	ids := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	var links []recommendationLinkModel
	if err := r.db.WithContext(ctx).Where("recommendation_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}
	byRec := make(map[uuid.UUID][]models.RecommendationLink)
	for _, link := range links {
		byRec[link.RecommendationID] = append(byRec[link.RecommendationID], models.RecommendationLink{
			CategorySlug: link.CategorySlug,
			ImpactAmount: link.ImpactAmount,
		})
	}

	out := make([]models.Recommendation, 0, len(recs))
	for _, rec := range recs {
		item := models.Recommendation{
			ID:               rec.ID,
			Title:            rec.Title,
			Priority:         rec.Priority,
			EstimatedSavings: rec.EstimatedSavings,
			Status:           rec.Status,
			Links:            byRec[rec.ID],
			CreatedAt:        rec.CreatedAt,
		}
		if item.Links == nil {
			item.Links = []models.RecommendationLink{}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []settingModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return out, nil
}

func (r *Repository) UpsertSetting(ctx context.Context, name, value string) error {
	row := settingModel{Name: name, Value: value}
	return r.db.WithContext(ctx).Save(&row).Error
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
