package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Watchlist is a named, ordered list of funds an owner follows without holding them.
type Watchlist struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []WatchlistItem `json:"items"`
}

// WatchlistItem is a fund on a watchlist, enriched with its cached NAV and estimate.
type WatchlistItem struct {
	ID             string              `json:"id"`
	WatchlistID    string              `json:"watchlistId"`
	FundID         string              `json:"fundId"`
	Order          int                 `json:"order"`
	CreatedAt      time.Time           `json:"createdAt"`
	FundCode       string              `json:"fundCode"`
	FundName       string              `json:"fundName"`
	LatestNav      decimal.NullDecimal `json:"latestNav"`
	EstimateNav    decimal.NullDecimal `json:"estimateNav"`
	EstimateGrowth decimal.NullDecimal `json:"estimateGrowth"`
}
