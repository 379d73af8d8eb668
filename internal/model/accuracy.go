package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstimateAccuracy compares one source's closing estimate with the NAV published for that day.
// ActualNav and ErrorRate stay null until the NAV is known.
type EstimateAccuracy struct {
	ID           string              `json:"id"`
	SourceName   string              `json:"sourceName"`
	FundID       string              `json:"fundId"`
	EstimateDate time.Time           `json:"estimateDate"`
	EstimateNav  decimal.Decimal     `json:"estimateNav"`
	ActualNav    decimal.NullDecimal `json:"actualNav"`
	ErrorRate    decimal.NullDecimal `json:"errorRate"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// SourceAccuracy aggregates the scored snapshots of one estimate source.
type SourceAccuracy struct {
	SourceName    string          `json:"sourceName"`
	Snapshots     int             `json:"snapshots"`
	Scored        int             `json:"scored"`
	MeanErrorRate decimal.Decimal `json:"meanErrorRate"`
}

// AccuracyReport lists a fund's estimate snapshots, newest first, with per-source averages.
type AccuracyReport struct {
	FundID  string             `json:"fundId"`
	Records []EstimateAccuracy `json:"records"`
	Sources []SourceAccuracy   `json:"sources"`
}

// AccuracyAuditResult summarizes scoring every snapshot of one day.
type AccuracyAuditResult struct {
	Date    time.Time `json:"date"`
	Scored  int       `json:"scored"`
	Pending int       `json:"pending"` // Pending snapshots have no published NAV yet.
}
