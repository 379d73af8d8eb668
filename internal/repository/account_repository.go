package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// AccountRepository provides data access methods for the account table.
// It stores the two-level ownership tree; hierarchy rules are enforced by the service layer
// and backed by the schema's CHECK constraint and partial unique index on defaults.
type AccountRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAccountRepository creates a new AccountRepository with the provided database connection.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx returns a new AccountRepository scoped to the provided transaction.
func (r *AccountRepository) WithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *AccountRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const accountColumns = `id, owner_id, name, parent_id, is_default, created_at, updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (model.Account, error) {
	var a model.Account
	var parentID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Name,
		&parentID,
		&a.IsDefault,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Account{}, err
	}

	if parentID.Valid {
		a.ParentID = &parentID.String
	}
	if a.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Account{}, err
	}
	if a.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query account table: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account table results: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account table: %w", err)
	}
	return accounts, nil
}

// GetAccount retrieves an account by ID.
// Returns ErrAccountNotFound if no account with the given ID exists.
func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id = ?`

	a, err := scanAccount(r.getQuerier().QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

// GetAccountByName retrieves the owner's account with the given name.
// Returns ErrAccountNotFound if the owner has no such account.
func (r *AccountRepository) GetAccountByName(ctx context.Context, ownerID, name string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE owner_id = ? AND name = ?`

	a, err := scanAccount(r.getQuerier().QueryRowContext(ctx, query, ownerID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to query account by name: %w", err)
	}
	return a, nil
}

// GetDefaultAccount retrieves the owner's default account.
// Returns ErrDefaultAccountNotFound if the owner has none.
func (r *AccountRepository) GetDefaultAccount(ctx context.Context, ownerID string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE owner_id = ? AND is_default = 1`

	a, err := scanAccount(r.getQuerier().QueryRowContext(ctx, query, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperrors.ErrDefaultAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to query default account: %w", err)
	}
	return a, nil
}

// ListAccounts returns accounts ordered roots first, then by name.
// An empty ownerID lists every owner's accounts.
func (r *AccountRepository) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY parent_id IS NOT NULL, name ASC`

	return r.queryAccounts(ctx, query, args...)
}

// ListChildren returns the direct children of an account.
func (r *AccountRepository) ListChildren(ctx context.Context, parentID string) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE parent_id = ? ORDER BY name ASC`
	return r.queryAccounts(ctx, query, parentID)
}

// InsertAccount creates a new account record.
func (r *AccountRepository) InsertAccount(ctx context.Context, a *model.Account) error {
	query := `
		INSERT INTO account (id, owner_id, name, parent_id, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		a.ID,
		a.OwnerID,
		a.Name,
		nullableString(a.ParentID),
		a.IsDefault,
		FormatTimestamp(a.CreatedAt),
		FormatTimestamp(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// UpdateAccount overwrites name, parent and default flag of an existing account.
// Returns ErrAccountNotFound if no account with the given ID exists.
func (r *AccountRepository) UpdateAccount(ctx context.Context, a *model.Account) error {
	query := `UPDATE account SET name = ?, parent_id = ?, is_default = ?, updated_at = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query,
		a.Name,
		nullableString(a.ParentID),
		a.IsDefault,
		FormatTimestamp(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectOneRow(result, apperrors.ErrAccountNotFound)
}

// ClearDefaults unsets the default flag on every account of the owner except keepID.
func (r *AccountRepository) ClearDefaults(ctx context.Context, ownerID, keepID string) error {
	query := `UPDATE account SET is_default = 0 WHERE owner_id = ? AND is_default = 1 AND id <> ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, ownerID, keepID); err != nil {
		return fmt.Errorf("failed to clear default accounts: %w", err)
	}
	return nil
}

// DeleteAccount removes an account. Child accounts, positions and ledger entries
// of the subtree are removed by the ON DELETE CASCADE foreign keys.
// Returns ErrAccountNotFound if no account with the given ID exists.
func (r *AccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM account WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result, apperrors.ErrAccountNotFound)
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
