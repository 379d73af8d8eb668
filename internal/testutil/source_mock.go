package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/ndewijer/fundval-backend/internal/importer"
)

// MockSource is an in-memory importer.Source for testing.
// It returns predefined broker data instead of calling a broker API.
type MockSource struct {
	// Accounts is returned from FetchAccounts.
	Accounts []importer.Account
	// Holdings maps broker account IDs to their holdings.
	Holdings map[string][]importer.Holding
	// MockError is returned from every fetch when set.
	MockError error
	// FetchCount tracks how many fetch calls were made.
	FetchCount int
}

// NewMockSource creates an empty mock source.
func NewMockSource() *MockSource {
	return &MockSource{Holdings: make(map[string][]importer.Holding)}
}

// WithAccount adds a broker account and its holdings.
func (m *MockSource) WithAccount(id, name string, holdings ...importer.Holding) *MockSource {
	m.Accounts = append(m.Accounts, importer.Account{ID: id, Name: name})
	m.Holdings[id] = append(m.Holdings[id], holdings...)
	return m
}

// WithError configures the mock to return the specified error.
func (m *MockSource) WithError(err error) *MockSource {
	m.MockError = err
	return m
}

// FetchAccounts returns the configured accounts.
func (m *MockSource) FetchAccounts(_ context.Context) ([]importer.Account, error) {
	m.FetchCount++
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.Accounts, nil
}

// FetchHoldings returns the configured holdings of one account.
func (m *MockSource) FetchHoldings(_ context.Context, accountID string) ([]importer.Holding, error) {
	m.FetchCount++
	if m.MockError != nil {
		return nil, m.MockError
	}
	holdings, ok := m.Holdings[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", importer.ErrUnknownAccount, accountID)
	}
	return holdings, nil
}

// MakeHolding builds a broker holding from decimal literals.
func MakeHolding(code, name, share, nav, amount string, year, month, day int) importer.Holding {
	return importer.Holding{
		FundCode:      code,
		FundName:      name,
		Share:         Dec(share),
		Nav:           Dec(nav),
		Amount:        Dec(amount),
		OperationDate: importer.NewDate(Date(year, time.Month(month), day)),
	}
}
