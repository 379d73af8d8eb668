package request

import "github.com/shopspring/decimal"

// LedgerEntryRequest is the request body for creating or replacing a ledger entry.
// The fund is referenced either by FundID or by FundCode; a code that is not
// known yet creates the fund with FundName.
type LedgerEntryRequest struct {
	AccountID     string          `json:"accountId"`
	FundID        string          `json:"fundId,omitempty"`
	FundCode      string          `json:"fundCode,omitempty"`
	FundName      string          `json:"fundName,omitempty"`
	Type          string          `json:"type"`          // Type is BUY or SELL.
	OperationDate string          `json:"operationDate"` // OperationDate is in YYYY-MM-DD format.
	BeforeCutoff  bool            `json:"beforeCutoff"`  // BeforeCutoff records whether the order was placed before the daily cutoff.
	Amount        decimal.Decimal `json:"amount"`
	Share         decimal.Decimal `json:"share"`
	Nav           decimal.Decimal `json:"nav"`
}

// BatchDeleteRequest is the request body for deleting several ledger entries at once.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}
