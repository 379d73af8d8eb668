package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NavHistory is one published NAV of a fund. A fund has at most one row per date.
type NavHistory struct {
	ID             string              `json:"id"`
	FundID         string              `json:"fundId"`
	NavDate        time.Time           `json:"navDate"`
	UnitNav        decimal.Decimal     `json:"unitNav"`
	AccumulatedNav decimal.NullDecimal `json:"accumulatedNav"`
	DailyGrowth    decimal.NullDecimal `json:"dailyGrowth"` // DailyGrowth is the change against the previous NAV, in percent.
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// NavHistoryFilter bounds a NAV history read. Nil bounds are open.
type NavHistoryFilter struct {
	Start *time.Time
	End   *time.Time
}

// NavHistoryImportResult counts the rows a NAV history upload inserted and overwrote.
type NavHistoryImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	// Scored is the number of estimate snapshots that received an actual NAV.
	Scored int `json:"scored"`
}
