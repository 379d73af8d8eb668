package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the materialized fold of the ledger for one (account, fund) pair.
// It is never authoritative: the ledger is.
type Position struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	FundID       string          `json:"fundId"`
	HoldingShare decimal.Decimal `json:"holdingShare"`
	HoldingCost  decimal.Decimal `json:"holdingCost"`
	HoldingNav   decimal.Decimal `json:"holdingNav"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// PositionResponse enriches a position with fund data and profit/loss against the latest NAV.
type PositionResponse struct {
	Position
	AccountName   string              `json:"accountName"`
	FundCode      string              `json:"fundCode"`
	FundName      string              `json:"fundName"`
	LatestNav     decimal.NullDecimal `json:"latestNav"`
	LatestNavDate *time.Time          `json:"latestNavDate,omitempty"`
	Pnl           decimal.Decimal     `json:"pnl"`
}

// PositionFilter narrows position listings. Empty fields are ignored.
type PositionFilter struct {
	AccountID string
	OwnerID   string
}

// RecalculateSummary reports the outcome of a bulk recalculation.
// Failed pairs do not stop the run; they are listed here.
type RecalculateSummary struct {
	Pairs        int                 `json:"pairs"`
	Recalculated int                 `json:"recalculated"`
	Failed       []RecalculateFailed `json:"failed"`
}

// RecalculateFailed describes one pair that could not be recalculated.
type RecalculateFailed struct {
	AccountID string `json:"accountId"`
	FundID    string `json:"fundId"`
	Error     string `json:"error"`
}
