package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careforward/aco-insights/pkg/aggregation"
	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/careforward/aco-insights/pkg/common/models"
	"github.com/careforward/aco-insights/pkg/metrics"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeStore struct {
	periods     []PeriodRow
	categories  []CategoryRow
	kpis        []KPIRow
	suggestions []aggregation.SuggestionRow
	gapRows     []aggregation.GapRow
	doctorRows  []aggregation.RankingRow
	patientRows []aggregation.RankingRow
	recs        []models.Recommendation
	settings    map[string]string
	failWith    error
	upserts     map[string]string
}

func (f *fakeStore) ListPeriods(ctx context.Context) ([]PeriodRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.periods, nil
}

func (f *fakeStore) ActivePeriod(ctx context.Context) (PeriodRow, error) {
	if f.failWith != nil {
		return PeriodRow{}, f.failWith
	}
	for _, p := range f.periods {
		if p.IsActive {
			return p, nil
		}
	}
	return PeriodRow{}, notFound("reporting period")
}

func (f *fakeStore) ListCategories(ctx context.Context, periodKey string) ([]CategoryRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.categories, nil
}

func (f *fakeStore) ListCategoriesByType(ctx context.Context, periodKey, metricType string) ([]CategoryRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []CategoryRow
	for _, c := range f.categories {
		if c.MetricType == metricType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCategory(ctx context.Context, periodKey, slug string) (CategoryRow, error) {
	if f.failWith != nil {
		return CategoryRow{}, f.failWith
	}
	for _, c := range f.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return CategoryRow{}, notFound("cost category")
}

func (f *fakeStore) ListDoctorRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error) {
	return filterRankings(f.doctorRows, slug), nil
}

func (f *fakeStore) ListPatientRankings(ctx context.Context, periodKey, slug string) ([]aggregation.RankingRow, error) {
	return filterRankings(f.patientRows, slug), nil
}

func filterRankings(rows []aggregation.RankingRow, slug string) []aggregation.RankingRow {
	if slug == "" {
		return rows
	}
	var out []aggregation.RankingRow
	for _, row := range rows {
		if row.Category.Slug == slug {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeStore) ListKPIs(ctx context.Context, periodKey string) ([]KPIRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.kpis, nil
}

func (f *fakeStore) GetKPI(ctx context.Context, periodKey, slug string) (KPIRow, error) {
	for _, k := range f.kpis {
		if k.Slug == slug {
			return k, nil
		}
	}
	return KPIRow{}, notFound("kpi")
}

func (f *fakeStore) ListSuggestions(ctx context.Context) ([]aggregation.SuggestionRow, error) {
	return f.suggestions, nil
}

func (f *fakeStore) ListGapRows(ctx context.Context, gapType string) ([]aggregation.GapRow, error) {
	if gapType == "" {
		return f.gapRows, nil
	}
	var out []aggregation.GapRow
	for _, row := range f.gapRows {
		if row.GapType == gapType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecommendations(ctx context.Context) ([]models.Recommendation, error) {
	return f.recs, nil
}

func (f *fakeStore) GetSettings(ctx context.Context) (map[string]string, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.settings, nil
}

func (f *fakeStore) UpsertSetting(ctx context.Context, name, value string) error {
	if f.upserts == nil {
		f.upserts = map[string]string{}
	}
	f.upserts[name] = value
	return nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func testStore() *fakeStore {
	return &fakeStore{
		periods: []PeriodRow{
			{Key: "ytd", Label: "Year to Date", IsActive: true},
			{Key: "last_quarter", Label: "Last Quarter"},
		},
		categories: []CategoryRow{
			{Slug: "inpatient", Name: "Inpatient", MetricType: "cost_category", ActualAmount: 265900, BenchmarkAmount: 200000, DisplayOrder: 1, Visible: true},
			{Slug: "specialist", Name: "Specialist", MetricType: "cost_category", ActualAmount: 184000, BenchmarkAmount: 200000, DisplayOrder: 5, Visible: true},
			{Slug: "imaging", Name: "Imaging", MetricType: "cost_category", ActualAmount: 133000, BenchmarkAmount: 100000, DisplayOrder: 3, Visible: true},
			{Slug: "pharmacy", Name: "Pharmacy", MetricType: "cost_category", ActualAmount: 93000, BenchmarkAmount: 100000, DisplayOrder: 6, Visible: true},
		},
		kpis: []KPIRow{
			{Slug: "readmission-rate", Name: "Readmission Rate", MetricType: "readmission_rate", Actual: 16, Benchmark: 15},
			{Slug: "wellness-visits", Name: "Wellness Visit Rate", MetricType: "wellness_visit_rate", Actual: 72, Benchmark: 60},
			{Slug: "new-metric", Name: "Unbaselined", MetricType: "cost_category", Actual: 10, Benchmark: 0},
		},
		settings: map[string]string{},
	}
}

func newTestService(store Store) *Service {
	return NewService(store, metrics.DefaultCatalog(), nil, nil).WithClock(fixedClock)
}

func TestPeriodsRecomputedFromKeys(t *testing.T) {
	svc := newTestService(testStore())
	periods, err := svc.Periods(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	ytd := periods[0]
	if ytd.StartDate != "2024-01-01" || ytd.EndDate != "2024-03-15" {
		t.Fatalf("ytd window wrong: %s .. %s", ytd.StartDate, ytd.EndDate)
	}
	lq := periods[1]
	if lq.StartDate != "2023-10-01" || lq.EndDate != "2023-12-31" {
		t.Fatalf("last_quarter window wrong: %s .. %s", lq.StartDate, lq.EndDate)
	}
}

func TestCustomPeriodUsesStoredBoundaries(t *testing.T) {
	store := testStore()
	start := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.April, 30, 0, 0, 0, 0, time.UTC)
	store.periods = append(store.periods, PeriodRow{
		Key:       "custom",
		Label:     "Contract Year",
		StartDate: &start,
		EndDate:   &end,
	})

	svc := newTestService(store)
	periods, err := svc.Periods(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	custom := periods[2]
	if custom.StartDate != "2023-02-01" || custom.EndDate != "2023-04-30" {
		t.Fatalf("custom boundaries not taken from store: %s .. %s", custom.StartDate, custom.EndDate)
	}
}

func TestCostCategoriesAnnotated(t *testing.T) {
	svc := newTestService(testStore())
	categories, err := svc.CostCategories(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inpatient := categories[0]
	if inpatient.Variance.Amount != 65900 {
		t.Fatalf("expected variance 65900, got %v", inpatient.Variance.Amount)
	}
	if inpatient.Variance.Percent == nil || *inpatient.Variance.Percent != 32.95 {
		t.Fatalf("expected percent 32.95, got %v", inpatient.Variance.Percent)
	}
	if inpatient.Variance.Classification != metrics.StatusRed {
		t.Fatalf("expected red, got %s", inpatient.Variance.Classification)
	}
	if !inpatient.Variance.AboveBenchmark {
		t.Fatal("expected above-benchmark flag")
	}
}

func TestCostCategoryNotFound(t *testing.T) {
	svc := newTestService(testStore())
	_, err := svc.CostCategory(context.Background(), "acupuncture")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err.Error() != "cost category not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestOpportunityBoard(t *testing.T) {
	svc := newTestService(testStore())
	board, err := svc.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(board.TopOpportunities) != 2 {
		t.Fatalf("expected 2 overspending categories, got %d", len(board.TopOpportunities))
	}
	if board.TopOpportunities[0].AmountVariance != 65900 || board.TopOpportunities[1].AmountVariance != 33000 {
		t.Fatalf("overspending order wrong: %+v", board.TopOpportunities)
	}
	if len(board.TopPerformers) != 2 {
		t.Fatalf("expected 2 efficient categories, got %d", len(board.TopPerformers))
	}
	if board.TopPerformers[0].AmountVariance != -16000 || board.TopPerformers[1].AmountVariance != -7000 {
		t.Fatalf("efficient order wrong: %+v", board.TopPerformers)
	}
	for _, opp := range append(board.TopOpportunities, board.TopPerformers...) {
		overspending := opp.AmountVariance > 0
		if overspending != (opp.Type == aggregation.TypeOverspending) {
			t.Fatalf("type and sign diverge: %+v", opp)
		}
	}
	if board.SavingsTotal != 98900 || board.EfficiencyTotal != 23000 {
		t.Fatalf("totals wrong: %v / %v", board.SavingsTotal, board.EfficiencyTotal)
	}
	if board.Period.Key != "ytd" {
		t.Fatalf("expected active period on board, got %s", board.Period.Key)
	}
}

func TestDoctorRankingsGrouped(t *testing.T) {
	store := testStore()
	inpatient := models.CategoryMeta{Slug: "inpatient", Name: "Inpatient", Amount: 265900}
	imaging := models.CategoryMeta{Slug: "imaging", Name: "Imaging", Amount: 133000}
	store.doctorRows = []aggregation.RankingRow{
		{Category: imaging, Entry: aggregation.RankedEntry{Rank: 1, Name: "Dr. Reyes", Spend: 34000}},
		{Category: inpatient, Entry: aggregation.RankedEntry{Rank: 2, Name: "Dr. Lindqvist", Spend: 61000}},
		{Category: inpatient, Entry: aggregation.RankedEntry{Rank: 1, Name: "Dr. Okafor", Spend: 88000}},
	}

	svc := newTestService(store)
	groups, err := svc.DoctorRankings(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[0].Category.Slug != "inpatient" {
		t.Fatalf("unexpected grouping: %+v", groups)
	}
	if groups[0].Doctors[0].Name != "Dr. Okafor" {
		t.Fatalf("rank order lost: %+v", groups[0].Doctors)
	}
}

func TestRankingsUnknownCategory(t *testing.T) {
	svc := newTestService(testStore())
	_, err := svc.DoctorRankings(context.Background(), "acupuncture")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCareGapsClassified(t *testing.T) {
	store := testStore()
	store.gapRows = []aggregation.GapRow{
		{GapType: "annual_wellness", Name: "Annual Wellness Visit", OpenGaps: "42", DaysOverdue: "71.5", Intervention: "Call overdue patients", SortOrder: 1},
		{GapType: "a1c_screening", Name: "A1c Screening", OpenGaps: 13, DaysOverdue: 22.0},
	}
	svc := newTestService(store)

	gaps, err := svc.CareGaps(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gaps[0].Classification != metrics.StatusRed {
		t.Fatalf("71.5 days overdue must be red, got %s", gaps[0].Classification)
	}
	if gaps[1].Classification != metrics.StatusGreen {
		t.Fatalf("22 days overdue must be green, got %s", gaps[1].Classification)
	}
}

func TestCareGapsUnknownTypeIsNotFound(t *testing.T) {
	svc := newTestService(testStore())
	_, err := svc.CareGaps(context.Background(), "colonoscopy")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err.Error() != "care gap metric not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestSettingsDefaults(t *testing.T) {
	svc := newTestService(testStore())
	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.PanelSize != models.DefaultPanelSize {
		t.Fatalf("expected default panel size %d, got %d", models.DefaultPanelSize, settings.PanelSize)
	}
	if settings.TotalQualityBonus != models.DefaultTotalQualityBonus {
		t.Fatalf("expected default bonus, got %v", settings.TotalQualityBonus)
	}
}

func TestSettingsStoredValuesWin(t *testing.T) {
	store := testStore()
	store.settings = map[string]string{"panel_size": "1800", "total_quality_bonus": "410000.5"}
	svc := newTestService(store)
	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.PanelSize != 1800 || settings.TotalQualityBonus != 410000.5 {
		t.Fatalf("stored settings ignored: %+v", settings)
	}
}

func TestUpdateSettingsValidates(t *testing.T) {
	svc := newTestService(testStore())
	bad := -5
	if _, err := svc.UpdateSettings(context.Background(), models.UpdateSettingsRequest{PanelSize: &bad}); !IsValidation(err) {
		t.Fatalf("expected ValidationError for negative panel size, got %v", err)
	}
	if _, err := svc.UpdateSettings(context.Background(), models.UpdateSettingsRequest{}); !IsValidation(err) {
		t.Fatalf("expected ValidationError for empty request, got %v", err)
	}
}

func TestUpdateSettingsRejectsWithoutPersisting(t *testing.T) {
	store := testStore()
	svc := newTestService(store)
	size := 1700
	bonus := -1.0
	_, err := svc.UpdateSettings(context.Background(), models.UpdateSettingsRequest{
		PanelSize:         &size,
		TotalQualityBonus: &bonus,
	})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("rejected update must persist nothing, got %v", store.upserts)
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	store := testStore()
	svc := newTestService(store)
	size := 1700
	if _, err := svc.UpdateSettings(context.Background(), models.UpdateSettingsRequest{PanelSize: &size}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.upserts["panel_size"] != "1700" {
		t.Fatalf("expected upsert, got %v", store.upserts)
	}
}

func TestSummaryCountsKPIStatus(t *testing.T) {
	svc := newTestService(testStore())
	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// readmission-rate: +6.67% unfavorable on lower-is-better -> red.
	// wellness-visits: above benchmark on higher-is-better -> green.
	// new-metric: zero benchmark -> unknown.
	if summary.KPIStatus.Red != 1 || summary.KPIStatus.Green != 1 || summary.KPIStatus.Unknown != 1 {
		t.Fatalf("unexpected status counts: %+v", summary.KPIStatus)
	}
	if summary.TotalActual != 675900 || summary.TotalBenchmark != 600000 {
		t.Fatalf("unexpected totals: %v / %v", summary.TotalActual, summary.TotalBenchmark)
	}
	if summary.TotalVariance != 75900 {
		t.Fatalf("unexpected total variance: %v", summary.TotalVariance)
	}
	if summary.PanelSize != models.DefaultPanelSize {
		t.Fatalf("expected default panel size, got %d", summary.PanelSize)
	}
}

func TestZeroBenchmarkKPIIsUnknownWithNilPercent(t *testing.T) {
	svc := newTestService(testStore())
	kpi, err := svc.KPI(context.Background(), "new-metric")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kpi.Variance.Classification != metrics.StatusUnknown {
		t.Fatalf("expected unknown classification, got %s", kpi.Variance.Classification)
	}
	if kpi.Variance.Percent != nil {
		t.Fatalf("percent must be nil on zero benchmark, got %v", *kpi.Variance.Percent)
	}
	if kpi.Variance.Amount != 10 {
		t.Fatalf("amount still derivable, got %v", kpi.Variance.Amount)
	}
}

func TestReconcileImpactsDetectsDrift(t *testing.T) {
	store := testStore()
	recID := uuid.New()
	store.recs = []models.Recommendation{{
		ID:    recID,
		Title: "Shift imaging to freestanding centers",
		Links: []models.RecommendationLink{
			{CategorySlug: "imaging", ImpactAmount: 50000}, // category variance is only 33000
			{CategorySlug: "inpatient", ImpactAmount: 40000},
		},
	}}
	pub := &fakePublisher{}
	svc := NewService(store, metrics.DefaultCatalog(), nil, pub).WithClock(fixedClock)

	drifts, err := svc.ReconcileImpacts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("expected 1 drift, got %d", len(drifts))
	}
	d := drifts[0]
	if d.CategorySlug != "imaging" || d.Delta != 17000 {
		t.Fatalf("unexpected drift: %+v", d)
	}
	if d.RecommendationID != recID {
		t.Fatalf("drift not attributed to recommendation: %+v", d)
	}
	if len(pub.events) != 1 || pub.events[0] != "impact_drift" {
		t.Fatalf("expected one impact_drift event, got %v", pub.events)
	}
}

func TestCollaboratorFailurePropagates(t *testing.T) {
	store := testStore()
	store.failWith = errors.New("connection refused")
	svc := newTestService(store)
	if _, err := svc.CostCategories(context.Background(), ""); err == nil || IsNotFound(err) {
		t.Fatalf("expected opaque collaborator failure, got %v", err)
	}
}
