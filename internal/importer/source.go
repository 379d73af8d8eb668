// Package importer defines the broker data sources the import service reconciles into the ledger.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownAccount is returned when holdings are requested for an account the source never listed.
var ErrUnknownAccount = errors.New("unknown broker account")

// dateLayout is the wire format of holding operation dates.
const dateLayout = "2006-01-02"

// Source supplies broker accounts and their holdings.
type Source interface {
	FetchAccounts(ctx context.Context) ([]Account, error)
	FetchHoldings(ctx context.Context, accountID string) ([]Holding, error)
}

// Account is one account as the broker names it.
type Account struct {
	ID   string `json:"accountId"`
	Name string `json:"name"`
}

// Holding is one fund position reported by the broker, imported as a single BUY.
type Holding struct {
	FundCode      string          `json:"fundCode"`
	FundName      string          `json:"fundName"`
	Share         decimal.Decimal `json:"share"`
	Nav           decimal.Decimal `json:"nav"`
	Amount        decimal.Decimal `json:"amount"`
	OperationDate Date            `json:"operationDate"`
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date of t in UTC with the clock stripped.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// UnmarshalJSON parses a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("operation date must be a string: %w", err)
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("operation date must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}
