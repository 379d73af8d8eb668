package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultImportParent is the root account name the test import service files broker accounts under.
const DefaultImportParent = "Broker Import"

func NewTestPositionService(t *testing.T, db *sql.DB) *service.PositionService {
	t.Helper()
	return NewTestPositionServiceWithWorkers(t, db, 1)
}

// NewTestPositionServiceWithWorkers creates a PositionService whose sweeps fold up to workers pairs at once.
func NewTestPositionServiceWithWorkers(t *testing.T, db *sql.DB, workers int) *service.PositionService {
	t.Helper()

	return service.NewPositionService(
		db,
		repository.NewAccountRepository(db),
		repository.NewFundRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewPositionRepository(db),
		workers,
		zerolog.Nop(),
	)
}

func NewTestLedgerService(t *testing.T, db *sql.DB) *service.LedgerService {
	t.Helper()

	return service.NewLedgerService(
		db,
		repository.NewAccountRepository(db),
		repository.NewFundRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewPositionRepository(db),
		NewTestPositionService(t, db),
		zerolog.Nop(),
	)
}

func NewTestAccountService(t *testing.T, db *sql.DB) *service.AccountService {
	t.Helper()

	return service.NewAccountService(
		db,
		repository.NewAccountRepository(db),
		repository.NewLedgerRepository(db),
		zerolog.Nop(),
	)
}

func NewTestFundService(t *testing.T, db *sql.DB) *service.FundService {
	t.Helper()

	return service.NewFundService(
		db,
		repository.NewFundRepository(db),
		repository.NewNavHistoryRepository(db),
		repository.NewAccuracyRepository(db),
		zerolog.Nop(),
	)
}

func NewTestWatchlistService(t *testing.T, db *sql.DB) *service.WatchlistService {
	t.Helper()

	return service.NewWatchlistService(
		db,
		repository.NewWatchlistRepository(db),
		repository.NewFundRepository(db),
		zerolog.Nop(),
	)
}

func NewTestImportService(t *testing.T, db *sql.DB) *service.ImportService {
	t.Helper()

	return service.NewImportService(
		db,
		repository.NewAccountRepository(db),
		repository.NewFundRepository(db),
		repository.NewLedgerRepository(db),
		NewTestPositionService(t, db),
		DefaultImportParent,
		zerolog.Nop(),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeAccountName generates a unique account name for testing.
//
// Example usage:
//
//	name := testutil.MakeAccountName("Broker")
//	// Returns: "Broker ABC123"
func MakeAccountName(base string) string {
	if base == "" {
		base = "Account"
	}
	return base + " " + randomAlphanumeric(6)
}

// MakeFundCode generates a six digit fund code for testing.
func MakeFundCode() string {
	const digits = "0123456789"
	result := make([]byte, 6)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = digits[rand.Intn(len(digits))]
	}
	return string(result)
}

// MakeFundName generates a unique fund name for testing.
//
// Example usage:
//
//	name := testutil.MakeFundName("Tech Fund")
//	// Returns: "Tech Fund XYZ789"
func MakeFundName(base string) string {
	if base == "" {
		base = "Fund"
	}
	return base + " " + randomAlphanumeric(6)
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
