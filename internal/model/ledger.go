package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the kind of ledger operation.
type EntryType string

const (
	EntryTypeBuy  EntryType = "BUY"
	EntryTypeSell EntryType = "SELL"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryTypeBuy || t == EntryTypeSell
}

// LedgerEntry is one buy or sell of a fund on a child account.
// Entries are replayed in (OperationDate, CreatedAt, ID) order to derive positions.
type LedgerEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"accountId"`
	FundID        string          `json:"fundId"`
	Type          EntryType       `json:"type"`
	OperationDate time.Time       `json:"operationDate"`
	BeforeCutoff  bool            `json:"beforeCutoff"`
	Amount        decimal.Decimal `json:"amount"`
	Share         decimal.Decimal `json:"share"`
	Nav           decimal.Decimal `json:"nav"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// LedgerEntryResponse is a ledger entry enriched with account and fund names for API responses.
type LedgerEntryResponse struct {
	LedgerEntry
	AccountName string `json:"accountName"`
	FundCode    string `json:"fundCode"`
	FundName    string `json:"fundName"`
}

// LedgerFilter narrows ledger listings. Empty fields are ignored.
type LedgerFilter struct {
	AccountID string
	FundID    string
	OwnerID   string
}

// PairKey identifies the (account, fund) aggregate a ledger entry contributes to.
type PairKey struct {
	AccountID string
	FundID    string
}

// Pair returns the aggregate key of the entry.
func (e LedgerEntry) Pair() PairKey {
	return PairKey{AccountID: e.AccountID, FundID: e.FundID}
}

// BatchDeleteResult reports the outcome of a batch ledger deletion.
type BatchDeleteResult struct {
	DeletedCount int `json:"deletedCount"`
	Recalculated int `json:"recalculated"`
}
