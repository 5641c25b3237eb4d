package services

import (
	"math"
	"reflect"
	"testing"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/forecast"
	"salesdash/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testData() []models.Transaction {
	return []models.Transaction{
		{Date: date(2024, 1, 10), Amount: 1000, Stage: models.StageSuccess, Responsible: "Alice"},
		{Date: date(2024, 1, 15), Amount: 500, Stage: "Open", Responsible: "Bob"},
		{Date: date(2024, 2, 5), Amount: 2000, Stage: models.StageDebtors, Responsible: "Alice", AtRisk: true},
		{Date: date(2024, 2, 20), Amount: 750, Stage: models.StageSuccess, Responsible: "Carol"},
		{Date: date(2024, 3, 1), Amount: 1250, Stage: "Open", Responsible: "Bob"},
	}
}

func newTestAnalytics(granularity string) *Analytics {
	a := NewAnalytics(granularity, forecast.OLS{})
	a.SetData(testData())
	return a
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics(config.GranularityDay, nil)
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.model == nil {
		t.Error("nil model should default to OLS")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
}

func TestSetData_Info(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	info := a.Info()
	if info.Rows != 5 {
		t.Errorf("expected 5 rows, got %d", info.Rows)
	}
	if info.SnapshotID == "" {
		t.Error("snapshot ID should be assigned")
	}
	if info.LoadedAt.IsZero() {
		t.Error("load time should be set")
	}
}

func TestApplyFilter_Subset(t *testing.T) {
	records := testData()
	f := models.Filter{From: date(2024, 2, 1), To: date(2024, 2, 28)}

	filtered := ApplyFilter(records, f)

	if len(filtered) != 2 {
		t.Fatalf("expected 2 records in February, got %d", len(filtered))
	}
	for _, tx := range filtered {
		found := false
		for _, orig := range records {
			if reflect.DeepEqual(tx, orig) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("filtered record %+v is not in the source dataset", tx)
		}
	}
}

func TestApplyFilter_Idempotent(t *testing.T) {
	f := models.Filter{
		From:        date(2024, 1, 1),
		To:          date(2024, 2, 28),
		Responsible: []string{"Alice", "Bob"},
	}

	once := ApplyFilter(testData(), f)
	twice := ApplyFilter(once, f)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("filtering is not idempotent: %+v != %+v", once, twice)
	}
}

func TestApplyFilter_InclusiveBounds(t *testing.T) {
	f := models.Filter{From: date(2024, 1, 10), To: date(2024, 1, 15)}

	filtered := ApplyFilter(testData(), f)

	if len(filtered) != 2 {
		t.Errorf("boundary dates should be included, got %d records", len(filtered))
	}
}

func TestApplyFilter_EmptySelectionMeansAll(t *testing.T) {
	filtered := ApplyFilter(testData(), models.Filter{})

	if len(filtered) != len(testData()) {
		t.Errorf("empty filter should keep all %d records, got %d", len(testData()), len(filtered))
	}
}

func TestApplyFilter_ResponsibleSelection(t *testing.T) {
	f := models.Filter{Responsible: []string{"Bob"}}

	filtered := ApplyFilter(testData(), f)

	if len(filtered) != 2 {
		t.Fatalf("expected 2 records for Bob, got %d", len(filtered))
	}
	for _, tx := range filtered {
		if tx.Responsible != "Bob" {
			t.Errorf("unexpected responsible %q", tx.Responsible)
		}
	}
}

func TestSummary(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	s := a.Summary(models.Filter{})

	if s.Deals != 5 {
		t.Errorf("expected 5 deals, got %d", s.Deals)
	}
	if s.TotalRevenue != 5500 {
		t.Errorf("expected total revenue 5500, got %f", s.TotalRevenue)
	}
	if s.SuccessRevenue != 1750 {
		t.Errorf("expected success revenue 1750, got %f", s.SuccessRevenue)
	}
	if s.DebtorsRevenue != 2000 {
		t.Errorf("expected debtors revenue 2000, got %f", s.DebtorsRevenue)
	}
	if s.RiskDeals != 1 || s.RiskRevenue != 2000 {
		t.Errorf("expected 1 risk deal of 2000, got %d / %f", s.RiskDeals, s.RiskRevenue)
	}
}

func TestSummary_PartitionByResponsible(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	whole := a.Summary(models.Filter{})

	var partitioned models.Summary
	for _, responsible := range a.Responsibles() {
		part := a.Summary(models.Filter{Responsible: []string{responsible}})
		partitioned.Deals += part.Deals
		partitioned.TotalRevenue += part.TotalRevenue
		partitioned.SuccessRevenue += part.SuccessRevenue
		partitioned.DebtorsRevenue += part.DebtorsRevenue
		partitioned.RiskDeals += part.RiskDeals
		partitioned.RiskRevenue += part.RiskRevenue
	}

	if !reflect.DeepEqual(whole, partitioned) {
		t.Errorf("partition totals diverge: whole=%+v partitioned=%+v", whole, partitioned)
	}
}

func TestSummary_EmptyDataset(t *testing.T) {
	a := NewAnalytics(config.GranularityDay, forecast.OLS{})

	s := a.Summary(models.Filter{})

	if s != (models.Summary{}) {
		t.Errorf("empty dataset should yield zeroed summary, got %+v", s)
	}
}

func TestSummary_ExcludingRange(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	s := a.Summary(models.Filter{From: date(2030, 1, 1), To: date(2030, 12, 31)})

	if s != (models.Summary{}) {
		t.Errorf("excluding range should yield zeroed summary, got %+v", s)
	}
	if got := a.StageBreakdown(models.Filter{From: date(2030, 1, 1)}); len(got) != 0 {
		t.Errorf("expected empty stage breakdown, got %+v", got)
	}
	if got := a.RevenueSeries(models.Filter{From: date(2030, 1, 1)}); len(got) != 0 {
		t.Errorf("expected empty series, got %+v", got)
	}
}

func TestStageBreakdown_SortedByRevenue(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	breakdown := a.StageBreakdown(models.Filter{})

	if len(breakdown) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(breakdown))
	}
	for i := 1; i < len(breakdown); i++ {
		if breakdown[i].Revenue > breakdown[i-1].Revenue {
			t.Errorf("breakdown not sorted by revenue: %+v", breakdown)
		}
	}

	if breakdown[0].Stage != models.StageDebtors || breakdown[0].Revenue != 2000 {
		t.Errorf("expected Debtors 2000 first, got %+v", breakdown[0])
	}
}

func TestResponsiblePerformance(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	perf := a.ResponsiblePerformance(models.Filter{})

	if len(perf) != 3 {
		t.Fatalf("expected 3 responsibles, got %d", len(perf))
	}
	if perf[0].Responsible != "Alice" || perf[0].Revenue != 3000 || perf[0].Deals != 2 {
		t.Errorf("expected Alice 3000/2 first, got %+v", perf[0])
	}
}

func TestRevenueSeries_Daily(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	series := a.RevenueSeries(models.Filter{})

	if len(series) != 5 {
		t.Fatalf("expected 5 daily buckets, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if series[i].Bucket <= series[i-1].Bucket {
			t.Errorf("series not chronological: %+v", series)
		}
	}
	if series[0].Bucket != "2024-01-10" || series[0].Revenue != 1000 {
		t.Errorf("unexpected first bucket %+v", series[0])
	}
}

func TestRevenueSeries_Monthly(t *testing.T) {
	a := newTestAnalytics(config.GranularityMonth)

	series := a.RevenueSeries(models.Filter{})

	want := []models.RevenuePoint{
		{Bucket: "2024-01", Revenue: 1500},
		{Bucket: "2024-02", Revenue: 2750},
		{Bucket: "2024-03", Revenue: 1250},
	}
	if !reflect.DeepEqual(series, want) {
		t.Errorf("monthly series = %+v, want %+v", series, want)
	}
}

func TestRiskTable(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	bands := a.RiskTable(models.Filter{})

	if len(bands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(bands))
	}
	if bands[0].Band != models.RiskBandHigh || bands[0].Deals != 1 || bands[0].Revenue != 2000 {
		t.Errorf("unexpected high band %+v", bands[0])
	}
	if bands[1].Band != models.RiskBandNormal || bands[1].Deals != 4 || bands[1].Revenue != 3500 {
		t.Errorf("unexpected normal band %+v", bands[1])
	}
}

func TestForecast_Monthly(t *testing.T) {
	a := NewAnalytics(config.GranularityMonth, forecast.OLS{})
	a.SetData([]models.Transaction{
		{Date: date(2024, 1, 10), Amount: 100, Stage: "Open", Responsible: "Alice"},
		{Date: date(2024, 2, 10), Amount: 150, Stage: "Open", Responsible: "Alice"},
		{Date: date(2024, 3, 10), Amount: 200, Stage: "Open", Responsible: "Alice"},
	})

	points, err := a.Forecast(models.Filter{}, 2)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 forecast points, got %d", len(points))
	}
	if points[0].Bucket != 1 || points[1].Bucket != 2 {
		t.Errorf("forecast buckets should be 1-based consecutive, got %+v", points)
	}
	if math.Abs(points[0].Revenue-250) > 1e-9 {
		t.Errorf("expected month 4 ≈ 250, got %f", points[0].Revenue)
	}
	if math.Abs(points[1].Revenue-300) > 1e-9 {
		t.Errorf("expected month 5 ≈ 300, got %f", points[1].Revenue)
	}
}

func TestForecast_InsufficientData(t *testing.T) {
	a := NewAnalytics(config.GranularityMonth, forecast.OLS{})
	a.SetData([]models.Transaction{
		{Date: date(2024, 1, 10), Amount: 100, Stage: "Open", Responsible: "Alice"},
		{Date: date(2024, 1, 20), Amount: 150, Stage: "Open", Responsible: "Alice"},
	})

	// Two rows but one monthly bucket.
	if _, err := a.Forecast(models.Filter{}, 14); err == nil {
		t.Fatal("expected insufficient data error for a single bucket")
	}
}

func TestTransactions_FilteredLoadOrder(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	rows := a.Transactions(models.Filter{Responsible: []string{"Bob"}})

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for Bob, got %d", len(rows))
	}
	if !rows[0].Date.Before(rows[1].Date) {
		t.Errorf("rows should keep load order: %+v", rows)
	}
	for _, tx := range rows {
		if tx.Responsible != "Bob" {
			t.Errorf("unexpected responsible %q", tx.Responsible)
		}
	}

	if got := a.Transactions(models.Filter{From: date(2030, 1, 1)}); len(got) != 0 {
		t.Errorf("excluding range should yield no rows, got %+v", got)
	}
}

func TestResponsibles_SortedDistinct(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	want := []string{"Alice", "Bob", "Carol"}
	if got := a.Responsibles(); !reflect.DeepEqual(got, want) {
		t.Errorf("Responsibles() = %v, want %v", got, want)
	}
}

func TestStats(t *testing.T) {
	a := newTestAnalytics(config.GranularityDay)

	stats := a.Stats()

	if stats["rows"] != 5 {
		t.Errorf("expected rows 5, got %v", stats["rows"])
	}
	if stats["granularity"] != config.GranularityDay {
		t.Errorf("expected granularity %q, got %v", config.GranularityDay, stats["granularity"])
	}
}
