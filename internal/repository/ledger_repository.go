package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// LedgerRepository provides data access methods for the ledger_entry table.
// Ledger entries are the source of truth for positions; every read for
// recalculation returns them in replay order.
type LedgerRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewLedgerRepository creates a new LedgerRepository with the provided database connection.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a new LedgerRepository scoped to the provided transaction.
func (r *LedgerRepository) WithTx(tx *sql.Tx) *LedgerRepository {
	return &LedgerRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *LedgerRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// replayOrder is the total order used to fold a pair's ledger.
const replayOrder = `ORDER BY e.operation_date ASC, e.created_at ASC, e.id ASC`

const entryColumns = `
	e.id, e.account_id, e.fund_id, e.type, e.operation_date, e.before_cutoff,
	e.amount, e.share, e.nav, e.created_at
`

func scanEntry(row interface{ Scan(dest ...any) error }, extra ...any) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	var operationDate, createdAt string

	dest := []any{
		&e.ID,
		&e.AccountID,
		&e.FundID,
		&e.Type,
		&operationDate,
		&e.BeforeCutoff,
		&e.Amount,
		&e.Share,
		&e.Nav,
		&createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.LedgerEntry{}, err
	}

	var err error
	if e.OperationDate, err = ParseTime(operationDate); err != nil {
		return model.LedgerEntry{}, err
	}
	if e.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.LedgerEntry{}, err
	}
	return e, nil
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_entry table: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger_entry table results: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_entry table: %w", err)
	}
	return entries, nil
}

// GetEntriesForPair retrieves every ledger entry of one (account, fund) pair in replay order:
// (operation_date, created_at) ascending, with the id as the final tiebreaker.
func (r *LedgerRepository) GetEntriesForPair(ctx context.Context, accountID, fundID string) ([]model.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entry e
		WHERE e.account_id = ? AND e.fund_id = ? ` + replayOrder

	return r.queryEntries(ctx, query, accountID, fundID)
}

// GetEntry retrieves a single ledger entry by ID.
// Returns ErrLedgerEntryNotFound if no entry with the given ID exists.
func (r *LedgerRepository) GetEntry(ctx context.Context, entryID string) (model.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entry e WHERE e.id = ?`

	e, err := scanEntry(r.getQuerier().QueryRowContext(ctx, query, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerEntry{}, apperrors.ErrLedgerEntryNotFound
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("failed to query ledger entry: %w", err)
	}
	return e, nil
}

// GetEntriesByIDs retrieves the entries among ids that exist. Unknown ids are ignored.
func (r *LedgerRepository) GetEntriesByIDs(ctx context.Context, ids []string) ([]model.LedgerEntry, error) {
	if len(ids) == 0 {
		return []model.LedgerEntry{}, nil
	}

	marks, args := placeholders(ids)
	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `SELECT ` + entryColumns + ` FROM ledger_entry e WHERE e.id IN (` + marks + `) ` + replayOrder

	return r.queryEntries(ctx, query, args...)
}

// ListEntries retrieves ledger entries enriched with account and fund names.
// Results are in replay order so a listing for one pair reads like its fold.
func (r *LedgerRepository) ListEntries(ctx context.Context, filter model.LedgerFilter) ([]model.LedgerEntryResponse, error) {
	query := `SELECT ` + entryColumns + `, a.name, f.code, f.name
		FROM ledger_entry e
		JOIN account a ON a.id = e.account_id
		JOIN fund f ON f.id = e.fund_id
		WHERE 1=1`
	var args []any

	if filter.AccountID != "" {
		query += ` AND e.account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.FundID != "" {
		query += ` AND e.fund_id = ?`
		args = append(args, filter.FundID)
	}
	if filter.OwnerID != "" {
		query += ` AND a.owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	query += ` ` + replayOrder

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_entry table: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntryResponse{}
	for rows.Next() {
		var resp model.LedgerEntryResponse
		e, err := scanEntry(rows, &resp.AccountName, &resp.FundCode, &resp.FundName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger_entry table results: %w", err)
		}
		resp.LedgerEntry = e
		entries = append(entries, resp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_entry table: %w", err)
	}
	return entries, nil
}

// InsertEntry appends a new ledger entry.
func (r *LedgerRepository) InsertEntry(ctx context.Context, e *model.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entry (id, account_id, fund_id, type, operation_date, before_cutoff, amount, share, nav, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		e.ID,
		e.AccountID,
		e.FundID,
		string(e.Type),
		FormatDate(e.OperationDate),
		e.BeforeCutoff,
		e.Amount.String(),
		e.Share.String(),
		e.Nav.String(),
		FormatTimestamp(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// ReplaceEntry overwrites every mutable column of an existing entry.
// created_at is kept so the entry keeps its place among same-day entries.
// Returns ErrLedgerEntryNotFound if no entry with the given ID exists.
func (r *LedgerRepository) ReplaceEntry(ctx context.Context, e *model.LedgerEntry) error {
	query := `
		UPDATE ledger_entry
		SET account_id = ?, fund_id = ?, type = ?, operation_date = ?, before_cutoff = ?, amount = ?, share = ?, nav = ?
		WHERE id = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		e.AccountID,
		e.FundID,
		string(e.Type),
		FormatDate(e.OperationDate),
		e.BeforeCutoff,
		e.Amount.String(),
		e.Share.String(),
		e.Nav.String(),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace ledger entry: %w", err)
	}
	return expectOneRow(result, apperrors.ErrLedgerEntryNotFound)
}

// DeleteEntry removes a ledger entry by ID.
// Returns ErrLedgerEntryNotFound if no entry with the given ID exists.
func (r *LedgerRepository) DeleteEntry(ctx context.Context, entryID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM ledger_entry WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return expectOneRow(result, apperrors.ErrLedgerEntryNotFound)
}

// DeleteEntries removes the entries with the given ids and returns how many rows were deleted.
func (r *LedgerRepository) DeleteEntries(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	marks, args := placeholders(ids)
	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM ledger_entry WHERE id IN (`+marks+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteEntriesForPair removes the whole ledger of one (account, fund) pair.
func (r *LedgerRepository) DeleteEntriesForPair(ctx context.Context, accountID, fundID string) (int, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM ledger_entry WHERE account_id = ? AND fund_id = ?`, accountID, fundID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entries for pair: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteEntriesForAccount removes every ledger entry recorded on an account.
func (r *LedgerRepository) DeleteEntriesForAccount(ctx context.Context, accountID string) (int, error) {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM ledger_entry WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entries for account: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ListPairs returns the distinct (account, fund) pairs that have at least one ledger entry.
// When accountIDs is non-empty only those accounts are considered.
func (r *LedgerRepository) ListPairs(ctx context.Context, accountIDs []string) ([]model.PairKey, error) {
	query := `SELECT DISTINCT account_id, fund_id FROM ledger_entry`
	var args []any
	if len(accountIDs) > 0 {
		var marks string
		marks, args = placeholders(accountIDs)
		//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
		query += ` WHERE account_id IN (` + marks + `)`
	}
	query += ` ORDER BY account_id, fund_id`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger pairs: %w", err)
	}
	defer rows.Close()

	pairs := []model.PairKey{}
	for rows.Next() {
		var p model.PairKey
		if err := rows.Scan(&p.AccountID, &p.FundID); err != nil {
			return nil, fmt.Errorf("failed to scan ledger pairs: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger pairs: %w", err)
	}
	return pairs, nil
}

// CountEntriesForAccount returns the number of ledger entries recorded on an account.
func (r *LedgerRepository) CountEntriesForAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entry WHERE account_id = ?`, accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// EntryExists reports whether an entry of the given type exists for the pair on the given date.
// The importer uses it to stay idempotent across repeated imports.
func (r *LedgerRepository) EntryExists(ctx context.Context, accountID, fundID string, date time.Time, entryType model.EntryType) (bool, error) {
	var exists bool
	err := r.getQuerier().QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entry
			WHERE account_id = ? AND fund_id = ? AND operation_date = ? AND type = ?
		)`,
		accountID, fundID, FormatDate(date), string(entryType),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger entry existence: %w", err)
	}
	return exists, nil
}
