package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// WatchlistRepository provides data access methods for the watchlist and watchlist_item tables.
type WatchlistRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewWatchlistRepository creates a new WatchlistRepository with the provided database connection.
func NewWatchlistRepository(db *sql.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// WithTx returns a new WatchlistRepository scoped to the provided transaction.
func (r *WatchlistRepository) WithTx(tx *sql.Tx) *WatchlistRepository {
	return &WatchlistRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *WatchlistRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const watchlistColumns = `id, owner_id, name, created_at`

func scanWatchlist(row interface{ Scan(dest ...any) error }) (model.Watchlist, error) {
	var w model.Watchlist
	var createdAt string

	if err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &createdAt); err != nil {
		return model.Watchlist{}, err
	}

	var err error
	if w.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Watchlist{}, err
	}
	return w, nil
}

// GetWatchlist retrieves a watchlist by ID without its items.
// Returns ErrWatchlistNotFound if no watchlist with the given ID exists.
func (r *WatchlistRepository) GetWatchlist(ctx context.Context, watchlistID string) (model.Watchlist, error) {
	query := `SELECT ` + watchlistColumns + ` FROM watchlist WHERE id = ?`

	w, err := scanWatchlist(r.getQuerier().QueryRowContext(ctx, query, watchlistID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Watchlist{}, apperrors.ErrWatchlistNotFound
	}
	if err != nil {
		return model.Watchlist{}, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return w, nil
}

// NameExists reports whether the owner has a watchlist with this name other than excludeID.
func (r *WatchlistRepository) NameExists(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM watchlist WHERE owner_id = ? AND name = ? AND id <> ?)`

	var exists bool
	if err := r.getQuerier().QueryRowContext(ctx, query, ownerID, name, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check watchlist name: %w", err)
	}
	return exists, nil
}

// ListWatchlists returns the owner's watchlists ordered by name, without items.
// An empty ownerID lists every owner's watchlists.
func (r *WatchlistRepository) ListWatchlists(ctx context.Context, ownerID string) ([]model.Watchlist, error) {
	query := `SELECT ` + watchlistColumns + ` FROM watchlist`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist table: %w", err)
	}
	defer rows.Close()

	lists := []model.Watchlist{}
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist table results: %w", err)
		}
		lists = append(lists, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist table: %w", err)
	}
	return lists, nil
}

// InsertWatchlist creates a new watchlist record.
func (r *WatchlistRepository) InsertWatchlist(ctx context.Context, w *model.Watchlist) error {
	query := `INSERT INTO watchlist (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`

	if _, err := r.getQuerier().ExecContext(ctx, query, w.ID, w.OwnerID, w.Name, FormatTimestamp(w.CreatedAt)); err != nil {
		return fmt.Errorf("failed to insert watchlist: %w", err)
	}
	return nil
}

// RenameWatchlist changes a watchlist's name.
// Returns ErrWatchlistNotFound if no watchlist with the given ID exists.
func (r *WatchlistRepository) RenameWatchlist(ctx context.Context, watchlistID, name string) error {
	result, err := r.getQuerier().ExecContext(ctx, `UPDATE watchlist SET name = ? WHERE id = ?`, name, watchlistID)
	if err != nil {
		return fmt.Errorf("failed to rename watchlist: %w", err)
	}
	return expectOneRow(result, apperrors.ErrWatchlistNotFound)
}

// DeleteWatchlist removes a watchlist. Its items go with it through ON DELETE CASCADE.
// Returns ErrWatchlistNotFound if no watchlist with the given ID exists.
func (r *WatchlistRepository) DeleteWatchlist(ctx context.Context, watchlistID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM watchlist WHERE id = ?`, watchlistID)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist: %w", err)
	}
	return expectOneRow(result, apperrors.ErrWatchlistNotFound)
}

// ListItems returns the watchlist's funds in display order, joined with the fund's cached prices.
func (r *WatchlistRepository) ListItems(ctx context.Context, watchlistID string) ([]model.WatchlistItem, error) {
	query := `
		SELECT wi.id, wi.watchlist_id, wi.fund_id, wi.sort_order, wi.created_at,
			f.code, f.name, f.latest_nav, f.estimate_nav, f.estimate_growth
		FROM watchlist_item wi
		JOIN fund f ON f.id = wi.fund_id
		WHERE wi.watchlist_id = ?
		ORDER BY wi.sort_order ASC, wi.created_at ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist_item table: %w", err)
	}
	defer rows.Close()

	items := []model.WatchlistItem{}
	for rows.Next() {
		var it model.WatchlistItem
		var createdAt string
		if err := rows.Scan(
			&it.ID,
			&it.WatchlistID,
			&it.FundID,
			&it.Order,
			&createdAt,
			&it.FundCode,
			&it.FundName,
			&it.LatestNav,
			&it.EstimateNav,
			&it.EstimateGrowth,
		); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist_item table results: %w", err)
		}
		if it.CreatedAt, err = ParseTime(createdAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist_item table: %w", err)
	}
	return items, nil
}

// ItemExists reports whether the fund is already on the watchlist.
func (r *WatchlistRepository) ItemExists(ctx context.Context, watchlistID, fundID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM watchlist_item WHERE watchlist_id = ? AND fund_id = ?)`

	var exists bool
	if err := r.getQuerier().QueryRowContext(ctx, query, watchlistID, fundID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check watchlist item: %w", err)
	}
	return exists, nil
}

// InsertItem appends a fund at the end of the watchlist and sets it.Order accordingly.
func (r *WatchlistRepository) InsertItem(ctx context.Context, it *model.WatchlistItem) error {
	query := `
		INSERT INTO watchlist_item (id, watchlist_id, fund_id, sort_order, created_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM watchlist_item WHERE watchlist_id = ?), ?)
		RETURNING sort_order
	`

	err := r.getQuerier().QueryRowContext(ctx, query,
		it.ID,
		it.WatchlistID,
		it.FundID,
		it.WatchlistID,
		FormatTimestamp(it.CreatedAt),
	).Scan(&it.Order)
	if err != nil {
		return fmt.Errorf("failed to insert watchlist item: %w", err)
	}
	return nil
}

// DeleteItem removes a fund from the watchlist.
// Returns ErrWatchlistItemNotFound if the fund is not on it.
func (r *WatchlistRepository) DeleteItem(ctx context.Context, watchlistID, fundID string) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM watchlist_item WHERE watchlist_id = ? AND fund_id = ?`, watchlistID, fundID)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}
	return expectOneRow(result, apperrors.ErrWatchlistItemNotFound)
}

// SetItemOrder moves one fund to the given position.
// Returns ErrWatchlistItemNotFound if the fund is not on the watchlist.
func (r *WatchlistRepository) SetItemOrder(ctx context.Context, watchlistID, fundID string, order int) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE watchlist_item SET sort_order = ? WHERE watchlist_id = ? AND fund_id = ?`, order, watchlistID, fundID)
	if err != nil {
		return fmt.Errorf("failed to reorder watchlist item: %w", err)
	}
	return expectOneRow(result, apperrors.ErrWatchlistItemNotFound)
}
