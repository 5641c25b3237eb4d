package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"salesdash/internal/config"
	"salesdash/internal/forecast"
	"salesdash/internal/ingest"
	"salesdash/internal/models"
)

// Analytics owns the session's loaded dataset and answers every dashboard
// query against it. All aggregates are recomputed from the raw rows on each
// call, so results depend only on the current dataset and the caller's
// filter.
type Analytics struct {
	mu          sync.RWMutex
	records     []models.Transaction
	info        models.DatasetInfo
	granularity string
	model       forecast.Model
	logger      *slog.Logger
}

func NewAnalytics(granularity string, model forecast.Model) *Analytics {
	if model == nil {
		model = forecast.OLS{}
	}
	return &Analytics{
		granularity: granularity,
		model:       model,
		logger:      slog.Default(),
	}
}

// SetData replaces the dataset directly. Used by tests and internally after
// a successful parse.
func (a *Analytics) SetData(records []models.Transaction) {
	a.replace(records, models.DatasetInfo{
		Source: "direct",
		Rows:   len(records),
	})
}

func (a *Analytics) replace(records []models.Transaction, info models.DatasetInfo) {
	info.SnapshotID = uuid.NewString()
	info.LoadedAt = time.Now()

	a.mu.Lock()
	a.records = records
	a.info = info
	a.mu.Unlock()
}

// LoadFromFile parses a spreadsheet from disk and replaces the dataset.
func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	start := time.Now()

	result, err := ingest.Load(ctx, path)
	if err != nil {
		return err
	}

	a.replace(result.Records, models.DatasetInfo{
		Source:  filepath.Base(path),
		Rows:    len(result.Records),
		Skipped: result.Skipped,
	})

	a.logger.Info("spreadsheet loaded",
		"path", path,
		"rows", len(result.Records),
		"skipped", result.Skipped,
		"duration", time.Since(start),
	)
	return nil
}

// LoadFromUpload parses an uploaded spreadsheet and replaces the dataset.
func (a *Analytics) LoadFromUpload(ctx context.Context, filename string, r io.Reader) (models.DatasetInfo, error) {
	result, err := ingest.Parse(ctx, filename, r)
	if err != nil {
		return models.DatasetInfo{}, err
	}

	a.replace(result.Records, models.DatasetInfo{
		Source:  filepath.Base(filename),
		Rows:    len(result.Records),
		Skipped: result.Skipped,
	})

	a.logger.Info("upload ingested",
		"filename", filename,
		"rows", len(result.Records),
		"skipped", result.Skipped,
	)

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info, nil
}

// snapshot returns the current dataset slice. Rows are never mutated after
// load, so sharing the backing array is safe.
func (a *Analytics) snapshot() []models.Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records
}

// ApplyFilter returns the subset of records matching f, preserving order.
// Pure: filtering an already-filtered slice with the same filter returns an
// equal slice.
func ApplyFilter(records []models.Transaction, f models.Filter) []models.Transaction {
	filtered := make([]models.Transaction, 0, len(records))
	for _, tx := range records {
		if f.Matches(tx) {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// Summary computes the KPI block over the filtered dataset. An empty
// selection yields zeroed metrics.
func (a *Analytics) Summary(f models.Filter) models.Summary {
	var s models.Summary
	for _, tx := range ApplyFilter(a.snapshot(), f) {
		s.Deals++
		s.TotalRevenue += tx.Amount
		switch tx.Stage {
		case models.StageSuccess:
			s.SuccessRevenue += tx.Amount
		case models.StageDebtors:
			s.DebtorsRevenue += tx.Amount
		}
		if tx.AtRisk {
			s.RiskDeals++
			s.RiskRevenue += tx.Amount
		}
	}
	return s
}

// StageBreakdown groups the filtered dataset by stage, sorted by revenue
// descending.
func (a *Analytics) StageBreakdown(f models.Filter) []models.StageMetric {
	groups := make(map[string]*models.StageMetric)
	for _, tx := range ApplyFilter(a.snapshot(), f) {
		m := groups[tx.Stage]
		if m == nil {
			m = &models.StageMetric{Stage: tx.Stage}
			groups[tx.Stage] = m
		}
		m.Deals++
		m.Revenue += tx.Amount
	}

	result := make([]models.StageMetric, 0, len(groups))
	for _, m := range groups {
		result = append(result, *m)
	}
	slices.SortFunc(result, func(x, y models.StageMetric) int {
		if c := cmpRevenueDesc(x.Revenue, y.Revenue); c != 0 {
			return c
		}
		return strings.Compare(x.Stage, y.Stage)
	})
	return result
}

// ResponsiblePerformance groups revenue by responsible party, sorted by
// revenue descending.
func (a *Analytics) ResponsiblePerformance(f models.Filter) []models.ResponsibleRevenue {
	groups := make(map[string]*models.ResponsibleRevenue)
	for _, tx := range ApplyFilter(a.snapshot(), f) {
		m := groups[tx.Responsible]
		if m == nil {
			m = &models.ResponsibleRevenue{Responsible: tx.Responsible}
			groups[tx.Responsible] = m
		}
		m.Deals++
		m.Revenue += tx.Amount
	}

	result := make([]models.ResponsibleRevenue, 0, len(groups))
	for _, m := range groups {
		result = append(result, *m)
	}
	slices.SortFunc(result, func(x, y models.ResponsibleRevenue) int {
		if c := cmpRevenueDesc(x.Revenue, y.Revenue); c != 0 {
			return c
		}
		return strings.Compare(x.Responsible, y.Responsible)
	})
	return result
}

// RevenueSeries buckets the filtered revenue by the configured granularity,
// sorted chronologically.
func (a *Analytics) RevenueSeries(f models.Filter) []models.RevenuePoint {
	layout := "2006-01-02"
	if a.granularity == config.GranularityMonth {
		layout = "2006-01"
	}

	buckets := make(map[string]float64)
	for _, tx := range ApplyFilter(a.snapshot(), f) {
		buckets[tx.Date.Format(layout)] += tx.Amount
	}

	result := make([]models.RevenuePoint, 0, len(buckets))
	for bucket, revenue := range buckets {
		result = append(result, models.RevenuePoint{Bucket: bucket, Revenue: revenue})
	}
	slices.SortFunc(result, func(x, y models.RevenuePoint) int {
		return strings.Compare(x.Bucket, y.Bucket)
	})
	return result
}

// RiskTable splits the filtered revenue into high-risk and normal bands.
func (a *Analytics) RiskTable(f models.Filter) []models.RiskBand {
	high := models.RiskBand{Band: models.RiskBandHigh}
	normal := models.RiskBand{Band: models.RiskBandNormal}

	for _, tx := range ApplyFilter(a.snapshot(), f) {
		if tx.AtRisk {
			high.Deals++
			high.Revenue += tx.Amount
		} else {
			normal.Deals++
			normal.Revenue += tx.Amount
		}
	}

	return []models.RiskBand{high, normal}
}

// Forecast buckets the filtered revenue and extrapolates the trend model
// over the next horizon buckets.
func (a *Analytics) Forecast(f models.Filter, horizon int) ([]models.ForecastPoint, error) {
	series := a.RevenueSeries(f)

	history := make([]float64, len(series))
	for i, point := range series {
		history[i] = point.Revenue
	}

	predicted, err := a.model.Forecast(history, horizon)
	if err != nil {
		return nil, err
	}

	result := make([]models.ForecastPoint, len(predicted))
	for i, revenue := range predicted {
		result[i] = models.ForecastPoint{Bucket: i + 1, Revenue: revenue}
	}
	return result, nil
}

// Transactions returns the filtered rows themselves, in load order, for the
// raw-data table.
func (a *Analytics) Transactions(f models.Filter) []models.Transaction {
	return ApplyFilter(a.snapshot(), f)
}

// Responsibles lists the distinct responsible parties in the full dataset,
// sorted, for the filter widget.
func (a *Analytics) Responsibles() []string {
	seen := make(map[string]struct{})
	for _, tx := range a.snapshot() {
		seen[tx.Responsible] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for r := range seen {
		result = append(result, r)
	}
	slices.Sort(result)
	return result
}

// Info describes the loaded dataset.
func (a *Analytics) Info() models.DatasetInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info
}

// Stats is the monitoring payload for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	info := a.info
	rows := len(a.records)
	a.mu.RUnlock()

	return map[string]any{
		"snapshot_id": info.SnapshotID,
		"source":      info.Source,
		"rows":        rows,
		"skipped":     info.Skipped,
		"loaded_at":   info.LoadedAt,
		"granularity": a.granularity,
	}
}

func cmpRevenueDesc(x, y float64) int {
	if x > y {
		return -1
	}
	if x < y {
		return 1
	}
	return 0
}
