package request

import "github.com/shopspring/decimal"

// GetOrCreateFundRequest looks a fund up by code, creating it on first reference.
type GetOrCreateFundRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// UpdateNavRequest is the request body for recording a fund's confirmed NAV.
type UpdateNavRequest struct {
	Nav  decimal.Decimal `json:"nav"`
	Date string          `json:"date"` // Date is the NAV date in YYYY-MM-DD format.
}

// UpdateEstimateRequest is the request body for caching a fund's intraday estimate.
type UpdateEstimateRequest struct {
	Nav    decimal.Decimal `json:"nav"`
	Growth decimal.Decimal `json:"growth"` // Growth is the estimated change in percent.
	Time   string          `json:"time"`   // Time is an RFC3339 timestamp.
	Source string          `json:"source,omitempty"`
}

// NavHistoryItem is one published NAV in a history upload.
type NavHistoryItem struct {
	Date           string              `json:"date"`
	UnitNav        decimal.Decimal     `json:"unitNav"`
	AccumulatedNav decimal.NullDecimal `json:"accumulatedNav"`
	DailyGrowth    decimal.NullDecimal `json:"dailyGrowth"`
}

// ImportNavHistoryRequest uploads a batch of published NAVs for one fund.
type ImportNavHistoryRequest struct {
	Items []NavHistoryItem `json:"items"`
}
