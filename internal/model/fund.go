package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fund represents a fund from the database.
// NAV and estimate fields are owned by the fund update operations; the position engine only reads them.
type Fund struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	Type           string              `json:"type,omitempty"`
	LatestNav      decimal.NullDecimal `json:"latestNav"`
	LatestNavDate  *time.Time          `json:"latestNavDate,omitempty"`
	EstimateNav    decimal.NullDecimal `json:"estimateNav"`
	EstimateGrowth decimal.NullDecimal `json:"estimateGrowth"`
	EstimateTime   *time.Time          `json:"estimateTime,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// FundRef is the minimal identity used by lookups that auto-create funds on first reference.
type FundRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
