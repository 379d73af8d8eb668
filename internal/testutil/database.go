package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ndewijer/fundval-backend/internal/database"
)

// SetupTestDB creates an in-memory SQLite database with every migration applied.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// One connection per pool, so the in-memory database lives as long as db does.
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CountDefaultAccounts returns how many default accounts the owner has.
func CountDefaultAccounts(t *testing.T, db *sql.DB, ownerID string) int {
	t.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM account WHERE owner_id = ? AND is_default = 1`, ownerID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count default accounts: %v", err)
	}
	return count
}
