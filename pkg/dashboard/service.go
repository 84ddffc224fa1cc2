package dashboard

import (
	"context"
	"strconv"
	"time"

	"github.com/careforward/aco-insights/pkg/aggregation"
	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/careforward/aco-insights/pkg/common/models"
	"github.com/careforward/aco-insights/pkg/metrics"
	"github.com/careforward/aco-insights/pkg/period"
)

// Store is the collaborator boundary to the relational store. The service
// never mutates analytics data through it; the lone write path is the
// practice settings upsert.
type Store interface {
	ListPeriods(ctx context.Context) ([]PeriodRow, error)
	ActivePeriod(ctx context.Context) (PeriodRow, error)
	ListCategories(ctx context.Context, periodKey string) ([]CategoryRow, error)
	ListCategoriesByType(ctx context.Context, periodKey, metricType string) ([]CategoryRow, error)
	GetCategory(ctx context.Context, periodKey, slug string) (CategoryRow, error)
	ListDoctorRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error)
	ListPatientRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error)
	ListKPIs(ctx context.Context, periodKey string) ([]KPIRow, error)
	GetKPI(ctx context.Context, periodKey, slug string) (KPIRow, error)
	ListSuggestions(ctx context.Context) ([]aggregation.SuggestionRow, error)
	ListGapRows(ctx context.Context, gapType string) ([]aggregation.GapRow, error)
	ListRecommendations(ctx context.Context) ([]models.Recommendation, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, name, value string) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	store   Store
	catalog metrics.Catalog
	cache   *Cache
	events  EventPublisher
	now     func() time.Time
}

func NewService(store Store, catalog metrics.Catalog, cache *Cache, events EventPublisher) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		cache:   cache,
		events:  events,
		now:     time.Now,
	}
}

// WithClock fixes the reference instant source. Tests use this so period
// boundaries are deterministic.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Periods(ctx context.Context) ([]models.ReportingPeriod, error) {
	rows, err := s.store.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReportingPeriod, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.resolvePeriod(row))
	}
	return out, nil
}

// resolvePeriod recomputes boundaries from the stored key against the
// current reference instant. Custom periods are the exception: their
// boundaries are explicit user choices, so the stored dates win.
func (s *Service) resolvePeriod(row PeriodRow) models.ReportingPeriod {
	var w period.Window
	if row.Key == period.KeyCustom && row.StartDate != nil && row.EndDate != nil {
		w = period.Custom(*row.StartDate, *row.EndDate)
	} else {
		w = period.Resolve(row.Key, s.now())
	}
	return models.ReportingPeriod{
		Key:       row.Key,
		Label:     row.Label,
		StartDate: w.StartDate(),
		EndDate:   w.EndDate(),
		IsActive:  row.IsActive,
	}
}

func (s *Service) activePeriod(ctx context.Context) (PeriodRow, models.ReportingPeriod, error) {
	row, err := s.store.ActivePeriod(ctx)
	if err != nil {
		return PeriodRow{}, models.ReportingPeriod{}, err
	}
	return row, s.resolvePeriod(row), nil
}

func (s *Service) CostCategories(ctx context.Context, metricType string) ([]models.CostCategory, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	var rows []CategoryRow
	if metricType == "" {
		rows, err = s.store.ListCategories(ctx, active.Key)
	} else {
		rows, err = s.store.ListCategoriesByType(ctx, active.Key, metricType)
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.CostCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.annotateCategory(row))
	}
	return out, nil
}

func (s *Service) CostCategory(ctx context.Context, slug string) (models.CostCategory, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return models.CostCategory{}, err
	}
	row, err := s.store.GetCategory(ctx, active.Key, slug)
	if err != nil {
		return models.CostCategory{}, err
	}
	return s.annotateCategory(row), nil
}

func (s *Service) annotateCategory(row CategoryRow) models.CostCategory {
	def := s.catalog.Lookup(row.MetricType)
	res, status := def.ClassifyPair(row.ActualAmount, row.BenchmarkAmount)
	return models.CostCategory{
		Slug:          row.Slug,
		Name:          row.Name,
		MetricType:    row.MetricType,
		ActualPMPM:    row.ActualPMPM,
		BenchmarkPMPM: row.BenchmarkPMPM,
		PreviousPMPM:  row.PreviousPMPM,
		Amount:        row.ActualAmount,
		Variance:      toVariance(res, status),
	}
}

func toVariance(res metrics.Result, status string) models.Variance {
	v := models.Variance{
		Amount:         res.Amount,
		AboveBenchmark: res.AboveBenchmark,
		Classification: status,
	}
	if status != metrics.StatusUnknown {
		pct := res.Percent
		v.Percent = &pct
	}
	return v
}

func (s *Service) DoctorRankings(ctx context.Context, slug string) ([]models.DoctorRankingGroup, error) {
	rows, err := s.rankingRows(ctx, slug, s.store.ListDoctorRankings)
	if err != nil {
		return nil, err
	}
	groups := aggregation.GroupByCategory(rows)
	out := make([]models.DoctorRankingGroup, 0, len(groups))
	for _, g := range groups {
		doctors := make([]models.RankedDoctor, 0, len(g.Entries))
		for _, e := range g.Entries {
			doctors = append(doctors, models.RankedDoctor{
				Rank:         e.Rank,
				Name:         e.Name,
				NPI:          e.Ref,
				Spend:        e.Spend,
				PatientCount: e.Count,
			})
		}
		out = append(out, models.DoctorRankingGroup{Category: g.Category, Doctors: doctors})
	}
	return out, nil
}

func (s *Service) PatientRankings(ctx context.Context, slug string) ([]models.PatientRankingGroup, error) {
	rows, err := s.rankingRows(ctx, slug, s.store.ListPatientRankings)
	if err != nil {
		return nil, err
	}
	groups := aggregation.GroupByCategory(rows)
	out := make([]models.PatientRankingGroup, 0, len(groups))
	for _, g := range groups {
		patients := make([]models.RankedPatient, 0, len(g.Entries))
		for _, e := range g.Entries {
			patients = append(patients, models.RankedPatient{
				Rank:       e.Rank,
				Name:       e.Name,
				MRN:        e.Ref,
				Spend:      e.Spend,
				VisitCount: e.Count,
			})
		}
		out = append(out, models.PatientRankingGroup{Category: g.Category, Patients: patients})
	}
	return out, nil
}

func (s *Service) rankingRows(
	ctx context.Context,
	slug string,
	list func(context.Context, string, string) ([]aggregation.RankingRow, error),
) ([]aggregation.RankingRow, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	if slug != "" {
		// Distinguish an unknown category from one with no ranked entities.
		if _, err := s.store.GetCategory(ctx, active.Key, slug); err != nil {
			return nil, err
		}
	}
	return list(ctx, active.Key, slug)
}

// Opportunities derives the opportunity board from category variances at
// read time. Nothing opportunity-shaped is ever stored, so stored and
// computed variance cannot drift apart.
func (s *Service) Opportunities(ctx context.Context) (models.OpportunityBoard, error) {
	active, resolved, err := s.activePeriod(ctx)
	if err != nil {
		return models.OpportunityBoard{}, err
	}

	cacheKey := "opportunities:" + active.Key + ":" + resolved.EndDate
	var board models.OpportunityBoard
	if s.cache.Get(ctx, cacheKey, &board) {
		return board, nil
	}

	rows, err := s.store.ListCategories(ctx, active.Key)
	if err != nil {
		return models.OpportunityBoard{}, err
	}
	opps := make([]models.CostOpportunity, 0, len(rows))
	for _, row := range rows {
		opps = append(opps, s.deriveOpportunity(row))
	}
	saving, performing := aggregation.PartitionOpportunities(opps)
	savingsTotal, efficiencyTotal := aggregation.OpportunityTotals(saving, performing)

	board = models.OpportunityBoard{
		Period:           resolved,
		TopOpportunities: saving,
		TopPerformers:    performing,
		SavingsTotal:     savingsTotal,
		EfficiencyTotal:  efficiencyTotal,
	}
	s.cache.Set(ctx, cacheKey, board)
	return board, nil
}

func (s *Service) OpportunitySummary(ctx context.Context) (models.OpportunitySummary, error) {
	board, err := s.Opportunities(ctx)
	if err != nil {
		return models.OpportunitySummary{}, err
	}
	return models.OpportunitySummary{
		Period:          board.Period,
		SavingsTotal:    board.SavingsTotal,
		EfficiencyTotal: board.EfficiencyTotal,
	}, nil
}

func (s *Service) deriveOpportunity(row CategoryRow) models.CostOpportunity {
	def := s.catalog.Lookup(row.MetricType)
	res, status := def.ClassifyPair(row.ActualAmount, row.BenchmarkAmount)

	typ := aggregation.TypeEfficient
	if res.Amount > 0 {
		typ = aggregation.TypeOverspending
	}
	opp := models.CostOpportunity{
		CategorySlug:   row.Slug,
		CategoryName:   row.Name,
		Type:           typ,
		AmountVariance: res.Amount,
		DisplayOrder:   row.DisplayOrder,
		Visible:        row.Visible,
	}
	if status != metrics.StatusUnknown {
		pct := res.Percent
		opp.PercentVariance = &pct
	}
	return opp
}

func (s *Service) KPIs(ctx context.Context) ([]models.KPI, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListKPIs(ctx, active.Key)
	if err != nil {
		return nil, err
	}
	out := make([]models.KPI, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.annotateKPI(row))
	}
	return out, nil
}

func (s *Service) KPI(ctx context.Context, slug string) (models.KPI, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return models.KPI{}, err
	}
	row, err := s.store.GetKPI(ctx, active.Key, slug)
	if err != nil {
		return models.KPI{}, err
	}
	return s.annotateKPI(row), nil
}

func (s *Service) annotateKPI(row KPIRow) models.KPI {
	def := s.catalog.Lookup(row.MetricType)
	res, status := def.ClassifyPair(row.Actual, row.Benchmark)
	return models.KPI{
		Slug:      row.Slug,
		Name:      row.Name,
		Unit:      row.Unit,
		Actual:    row.Actual,
		Benchmark: row.Benchmark,
		Previous:  row.Previous,
		Variance:  toVariance(res, status),
		Detail:    row.Detail,
	}
}

func (s *Service) Suggestions(ctx context.Context) ([]models.SuggestionGroup, error) {
	rows, err := s.store.ListSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	return aggregation.GroupSuggestions(rows), nil
}

func (s *Service) CareGaps(ctx context.Context, gapType string) ([]models.CareGapMetric, error) {
	rows, err := s.store.ListGapRows(ctx, gapType)
	if err != nil {
		return nil, err
	}
	if gapType != "" && len(rows) == 0 {
		return nil, notFound("care gap metric")
	}
	gaps := aggregation.CollapseGapRows(rows)
	def := s.catalog.Lookup("care_gap")
	for i := range gaps {
		res := metrics.Result{Amount: gaps[i].DaysOverdue, AboveBenchmark: gaps[i].DaysOverdue > 0}
		gaps[i].Classification = def.Classify(res)
	}
	return gaps, nil
}

func (s *Service) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	return s.store.ListRecommendations(ctx)
}

func (s *Service) Settings(ctx context.Context) (models.PracticeSettings, error) {
	raw, err := s.store.GetSettings(ctx)
	if err != nil {
		return models.PracticeSettings{}, err
	}
	return settingsFromRows(raw), nil
}

// settingsFromRows applies documented fallback defaults for options the
// practice has not stored yet.
func settingsFromRows(raw map[string]string) models.PracticeSettings {
	out := models.PracticeSettings{
		PanelSize:         models.DefaultPanelSize,
		TotalQualityBonus: models.DefaultTotalQualityBonus,
	}
	if v, ok := raw["panel_size"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.PanelSize = n
		}
	}
	if v, ok := raw["total_quality_bonus"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.TotalQualityBonus = f
		}
	}
	return out
}

func (s *Service) UpdateSettings(ctx context.Context, req models.UpdateSettingsRequest) (models.PracticeSettings, error) {
	if req.PanelSize == nil && req.TotalQualityBonus == nil {
		return models.PracticeSettings{}, invalid("no settings supplied")
	}
	if req.PanelSize != nil && *req.PanelSize <= 0 {
		return models.PracticeSettings{}, invalid("panel_size must be positive")
	}
	if req.TotalQualityBonus != nil && *req.TotalQualityBonus < 0 {
		return models.PracticeSettings{}, invalid("total_quality_bonus must not be negative")
	}

	// Nothing is persisted until every supplied field has validated.
	if req.PanelSize != nil {
		if err := s.store.UpsertSetting(ctx, "panel_size", strconv.Itoa(*req.PanelSize)); err != nil {
			return models.PracticeSettings{}, err
		}
	}
	if req.TotalQualityBonus != nil {
		value := strconv.FormatFloat(*req.TotalQualityBonus, 'f', -1, 64)
		if err := s.store.UpsertSetting(ctx, "total_quality_bonus", value); err != nil {
			return models.PracticeSettings{}, err
		}
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to invalidate response cache after settings update")
	}
	return s.Settings(ctx)
}

func (s *Service) Summary(ctx context.Context) (models.DashboardSummary, error) {
	active, resolved, err := s.activePeriod(ctx)
	if err != nil {
		return models.DashboardSummary{}, err
	}

	cacheKey := "summary:" + active.Key + ":" + resolved.EndDate
	var summary models.DashboardSummary
	if s.cache.Get(ctx, cacheKey, &summary) {
		return summary, nil
	}

	categories, err := s.store.ListCategories(ctx, active.Key)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	kpis, err := s.KPIs(ctx)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return models.DashboardSummary{}, err
	}

	summary = models.DashboardSummary{Period: resolved, PanelSize: settings.PanelSize}
	opps := make([]models.CostOpportunity, 0, len(categories))
	for _, cat := range categories {
		summary.TotalActual += cat.ActualAmount
		summary.TotalBenchmark += cat.BenchmarkAmount
		opps = append(opps, s.deriveOpportunity(cat))
	}
	summary.TotalVariance = summary.TotalActual - summary.TotalBenchmark

	saving, performing := aggregation.PartitionOpportunities(opps)
	summary.SavingsTotal, summary.EfficiencyTotal = aggregation.OpportunityTotals(saving, performing)

	for _, kpi := range kpis {
		switch kpi.Variance.Classification {
		case metrics.StatusRed:
			summary.KPIStatus.Red++
		case metrics.StatusYellow:
			summary.KPIStatus.Yellow++
		case metrics.StatusGreen:
			summary.KPIStatus.Green++
		default:
			summary.KPIStatus.Unknown++
		}
	}

	s.cache.Set(ctx, cacheKey, summary)
	return summary, nil
}

// ReconcileImpacts checks every recommendation's claimed category impacts
// against the categories' computed variances. Divergence is a data-quality
// defect: it is reported, never repaired in place.
func (s *Service) ReconcileImpacts(ctx context.Context) ([]models.ImpactDrift, error) {
	active, _, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.ListCategories(ctx, active.Key)
	if err != nil {
		return nil, err
	}
	varianceBySlug := make(map[string]float64, len(categories))
	for _, cat := range categories {
		varianceBySlug[cat.Slug] = cat.ActualAmount - cat.BenchmarkAmount
	}

	recs, err := s.store.ListRecommendations(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []models.ImpactDrift
	for _, rec := range recs {
		claimed := make(map[string]float64)
		for _, link := range rec.Links {
			claimed[link.CategorySlug] += link.ImpactAmount
		}
		for slug, impact := range claimed {
			variance := varianceBySlug[slug]
			if impact > variance {
				drift := models.ImpactDrift{
					RecommendationID: rec.ID,
					CategorySlug:     slug,
					ClaimedImpact:    impact,
					CategoryVariance: variance,
					Delta:            impact - variance,
				}
				drifts = append(drifts, drift)
				s.publishDrift(ctx, drift)
			}
		}
	}
	return drifts, nil
}

func (s *Service) publishDrift(ctx context.Context, drift models.ImpactDrift) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, "impact_drift", "dashboard-service", map[string]interface{}{
		"recommendation_id": drift.RecommendationID.String(),
		"category_slug":     drift.CategorySlug,
		"claimed_impact":    drift.ClaimedImpact,
		"category_variance": drift.CategoryVariance,
		"delta":             drift.Delta,
	})
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to publish impact drift event")
	}
}

// InvalidateCache drops cached payloads; the refresh worker calls this when
// the store signals updated data.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
