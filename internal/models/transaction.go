package models

import "time"

// Stage values with dedicated KPI treatment. Any other stage value is still
// counted in the per-stage breakdown.
const (
	StageSuccess = "Success"
	StageDebtors = "Debtors"
)

// Risk bands used by the risk table.
const (
	RiskBandHigh   = "High Risk"
	RiskBandNormal = "Normal"
)

// Transaction is one row of the loaded spreadsheet. Immutable once loaded.
type Transaction struct {
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Stage       string    `json:"stage"`
	Responsible string    `json:"responsible"`
	AtRisk      bool      `json:"at_risk"`
}

// Filter narrows a dataset by date range and responsible selection.
// Zero From/To leave the corresponding bound open; an empty Responsible
// selection means no restriction.
type Filter struct {
	From        time.Time
	To          time.Time
	Responsible []string
}

// Matches reports whether tx passes the filter. The date range is inclusive
// on both ends.
func (f Filter) Matches(tx Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if len(f.Responsible) == 0 {
		return true
	}
	for _, r := range f.Responsible {
		if r == tx.Responsible {
			return true
		}
	}
	return false
}

type Summary struct {
	Deals          int     `json:"deals"`
	TotalRevenue   float64 `json:"total_revenue"`
	SuccessRevenue float64 `json:"success_revenue"`
	DebtorsRevenue float64 `json:"debtors_revenue"`
	RiskDeals      int     `json:"risk_deals"`
	RiskRevenue    float64 `json:"risk_revenue"`
}

type StageMetric struct {
	Stage   string  `json:"stage"`
	Deals   int     `json:"deals"`
	Revenue float64 `json:"revenue"`
}

type ResponsibleRevenue struct {
	Responsible string  `json:"responsible"`
	Revenue     float64 `json:"revenue"`
	Deals       int     `json:"deals"`
}

// RevenuePoint is one time bucket of the revenue series. Bucket is formatted
// 2006-01-02 for daily and 2006-01 for monthly granularity, so lexicographic
// order is chronological order.
type RevenuePoint struct {
	Bucket  string  `json:"bucket"`
	Revenue float64 `json:"revenue"`
}

// ForecastPoint is one predicted future bucket. Bucket is 1-based, counted
// from the end of the historical series.
type ForecastPoint struct {
	Bucket  int     `json:"bucket"`
	Revenue float64 `json:"revenue"`
}

type RiskBand struct {
	Band    string  `json:"band"`
	Deals   int     `json:"deals"`
	Revenue float64 `json:"revenue"`
}

// DatasetInfo describes the currently loaded dataset.
type DatasetInfo struct {
	SnapshotID string    `json:"snapshot_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	LoadedAt   time.Time `json:"loaded_at"`
}
