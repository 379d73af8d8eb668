package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/shopspring/decimal"
)

// AccountBuilder provides a fluent interface for creating test accounts.
//
// Example usage:
//
//	// Root account with defaults
//	root := testutil.NewAccount("user-1").Build(t, db)
//
//	// Child account
//	child := testutil.NewAccount("user-1").
//	    WithName("Broker A").
//	    WithParent(root.ID).
//	    Build(t, db)
type AccountBuilder struct {
	ID        string
	OwnerID   string
	Name      string
	ParentID  *string
	IsDefault bool
}

// NewAccount creates an AccountBuilder for a root account with sensible defaults.
func NewAccount(ownerID string) *AccountBuilder {
	return &AccountBuilder{
		ID:      MakeID(),
		OwnerID: ownerID,
		Name:    MakeAccountName("Account"),
	}
}

// WithID sets a custom ID.
func (b *AccountBuilder) WithID(id string) *AccountBuilder {
	b.ID = id
	return b
}

// WithName sets a custom name.
func (b *AccountBuilder) WithName(name string) *AccountBuilder {
	b.Name = name
	return b
}

// WithParent makes the account a child of parentID.
func (b *AccountBuilder) WithParent(parentID string) *AccountBuilder {
	b.ParentID = &parentID
	return b
}

// AsDefault marks the account as the owner's default.
func (b *AccountBuilder) AsDefault() *AccountBuilder {
	b.IsDefault = true
	return b
}

// Build creates the account in the database and returns it.
// It writes the row directly and does not clear other defaults.
func (b *AccountBuilder) Build(t *testing.T, db *sql.DB) model.Account {
	t.Helper()

	now := time.Now().UTC()
	account := model.Account{
		ID:        b.ID,
		OwnerID:   b.OwnerID,
		Name:      b.Name,
		ParentID:  b.ParentID,
		IsDefault: b.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repository.NewAccountRepository(db).InsertAccount(context.Background(), &account); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// FundBuilder provides a fluent interface for creating test funds.
//
// Example usage:
//
//	fund := testutil.NewFund().WithCode("000001").WithLatestNav("1.2345", Date(2024, 1, 2)).Build(t, db)
type FundBuilder struct {
	ID            string
	Code          string
	Name          string
	Type          string
	LatestNav     *decimal.Decimal
	LatestNavDate time.Time
}

// NewFund creates a FundBuilder with sensible defaults.
func NewFund() *FundBuilder {
	return &FundBuilder{
		ID:   MakeID(),
		Code: MakeFundCode(),
		Name: MakeFundName("Test Fund"),
		Type: "equity",
	}
}

// WithCode sets a custom fund code.
func (b *FundBuilder) WithCode(code string) *FundBuilder {
	b.Code = code
	return b
}

// WithName sets a custom name.
func (b *FundBuilder) WithName(name string) *FundBuilder {
	b.Name = name
	return b
}

// WithLatestNav sets the confirmed NAV and its date.
func (b *FundBuilder) WithLatestNav(nav string, date time.Time) *FundBuilder {
	d := decimal.RequireFromString(nav)
	b.LatestNav = &d
	b.LatestNavDate = date
	return b
}

// Build creates the fund in the database and returns it.
func (b *FundBuilder) Build(t *testing.T, db *sql.DB) model.Fund {
	t.Helper()

	ctx := context.Background()
	repo := repository.NewFundRepository(db)
	now := time.Now().UTC()

	fund := model.Fund{
		ID:        b.ID,
		Code:      b.Code,
		Name:      b.Name,
		Type:      b.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertFund(ctx, &fund); err != nil {
		t.Fatalf("Failed to create test fund: %v", err)
	}

	if b.LatestNav != nil {
		if err := repo.UpdateNav(ctx, fund.ID, *b.LatestNav, b.LatestNavDate, now); err != nil {
			t.Fatalf("Failed to set test fund nav: %v", err)
		}
		fund.LatestNav = decimal.NullDecimal{Decimal: *b.LatestNav, Valid: true}
		navDate := b.LatestNavDate
		fund.LatestNavDate = &navDate
	}
	return fund
}

// LedgerEntryBuilder provides a fluent interface for writing raw ledger entries.
// Build inserts the row only; positions are not recalculated.
//
// Example usage:
//
//	testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").OnDate(Date(2024, 1, 1)).Build(t, db)
//	testutil.NewLedgerEntry(child.ID, fund.ID).Sell("40").OnDate(Date(2024, 2, 1)).Build(t, db)
type LedgerEntryBuilder struct {
	entry model.LedgerEntry
}

// NewLedgerEntry creates a LedgerEntryBuilder for a BUY of 100 shares costing 1000.
func NewLedgerEntry(accountID, fundID string) *LedgerEntryBuilder {
	return &LedgerEntryBuilder{entry: model.LedgerEntry{
		ID:            MakeID(),
		AccountID:     accountID,
		FundID:        fundID,
		Type:          model.EntryTypeBuy,
		OperationDate: Date(2024, 1, 1),
		BeforeCutoff:  true,
		Amount:        decimal.NewFromInt(1000),
		Share:         decimal.NewFromInt(100),
		Nav:           decimal.NewFromInt(10),
		CreatedAt:     time.Now().UTC(),
	}}
}

// Buy makes the entry a BUY of share units costing amount.
func (b *LedgerEntryBuilder) Buy(share, amount string) *LedgerEntryBuilder {
	b.entry.Type = model.EntryTypeBuy
	b.entry.Share = decimal.RequireFromString(share)
	b.entry.Amount = decimal.RequireFromString(amount)
	if b.entry.Share.IsPositive() {
		b.entry.Nav = b.entry.Amount.DivRound(b.entry.Share, 4)
	}
	return b
}

// Sell makes the entry a SELL of share units.
func (b *LedgerEntryBuilder) Sell(share string) *LedgerEntryBuilder {
	b.entry.Type = model.EntryTypeSell
	b.entry.Share = decimal.RequireFromString(share)
	b.entry.Amount = decimal.Zero
	return b
}

// OnDate sets the operation date.
func (b *LedgerEntryBuilder) OnDate(date time.Time) *LedgerEntryBuilder {
	b.entry.OperationDate = date
	return b
}

// CreatedAt sets the creation timestamp used to order same-day entries.
func (b *LedgerEntryBuilder) CreatedAt(ts time.Time) *LedgerEntryBuilder {
	b.entry.CreatedAt = ts
	return b
}

// Build inserts the entry and returns it.
func (b *LedgerEntryBuilder) Build(t *testing.T, db *sql.DB) model.LedgerEntry {
	t.Helper()

	entry := b.entry
	if err := repository.NewLedgerRepository(db).InsertEntry(context.Background(), &entry); err != nil {
		t.Fatalf("Failed to create test ledger entry: %v", err)
	}
	return entry
}

// Convenience functions

// CreateRootAccount creates a root account with the given name.
func CreateRootAccount(t *testing.T, db *sql.DB, ownerID, name string) model.Account {
	t.Helper()
	return NewAccount(ownerID).WithName(name).Build(t, db)
}

// CreateChildAccount creates a root account and one child under it, returning both.
//
// Example usage:
//
//	root, child := testutil.CreateChildAccount(t, db, "user-1")
func CreateChildAccount(t *testing.T, db *sql.DB, ownerID string) (model.Account, model.Account) {
	t.Helper()
	root := NewAccount(ownerID).Build(t, db)
	child := NewAccount(ownerID).WithParent(root.ID).Build(t, db)
	return root, child
}

// CreateFund creates a fund with the given code and default values.
func CreateFund(t *testing.T, db *sql.DB, code string) model.Fund {
	t.Helper()
	return NewFund().WithCode(code).Build(t, db)
}

// CreateNavHistory stores a published NAV directly, without scoring any estimate snapshot.
func CreateNavHistory(t *testing.T, db *sql.DB, fundID string, date time.Time, nav string) model.NavHistory {
	t.Helper()

	now := time.Now().UTC()
	n := model.NavHistory{FundID: fundID, NavDate: date, UnitNav: Dec(nav), CreatedAt: now, UpdatedAt: now}
	if _, err := repository.NewNavHistoryRepository(db).UpsertNav(context.Background(), &n); err != nil {
		t.Fatalf("Failed to create nav history: %v", err)
	}
	return n
}

// CreateEstimateSnapshot stores an unscored estimate snapshot directly.
func CreateEstimateSnapshot(t *testing.T, db *sql.DB, fundID, source string, date time.Time, nav string) model.EstimateAccuracy {
	t.Helper()

	a := model.EstimateAccuracy{
		SourceName:   source,
		FundID:       fundID,
		EstimateDate: date,
		EstimateNav:  Dec(nav),
		CreatedAt:    time.Now().UTC(),
	}
	if err := repository.NewAccuracyRepository(db).UpsertSnapshot(context.Background(), &a); err != nil {
		t.Fatalf("Failed to create estimate snapshot: %v", err)
	}
	return a
}
