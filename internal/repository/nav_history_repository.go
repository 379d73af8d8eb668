package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/fundval-backend/internal/model"
)

// NavHistoryRepository provides data access methods for the fund_nav_history table.
type NavHistoryRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewNavHistoryRepository creates a new NavHistoryRepository with the provided database connection.
func NewNavHistoryRepository(db *sql.DB) *NavHistoryRepository {
	return &NavHistoryRepository{db: db}
}

// WithTx returns a new NavHistoryRepository scoped to the provided transaction.
func (r *NavHistoryRepository) WithTx(tx *sql.Tx) *NavHistoryRepository {
	return &NavHistoryRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *NavHistoryRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const navHistoryColumns = `id, fund_id, nav_date, unit_nav, accumulated_nav, daily_growth, created_at, updated_at`

func scanNavHistory(row interface{ Scan(dest ...any) error }) (model.NavHistory, error) {
	var n model.NavHistory
	var navDate, createdAt, updatedAt string

	err := row.Scan(
		&n.ID,
		&n.FundID,
		&navDate,
		&n.UnitNav,
		&n.AccumulatedNav,
		&n.DailyGrowth,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.NavHistory{}, err
	}

	if n.NavDate, err = ParseTime(navDate); err != nil {
		return model.NavHistory{}, err
	}
	if n.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.NavHistory{}, err
	}
	if n.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.NavHistory{}, err
	}
	return n, nil
}

// UpsertNav stores the NAV of (fund, date), overwriting an existing row for that date.
// Null accumulated NAV or daily growth keep the stored values.
// The created flag reports whether a new row was inserted.
func (r *NavHistoryRepository) UpsertNav(ctx context.Context, n *model.NavHistory) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	existing, err := r.GetNavOnDate(ctx, n.FundID, n.NavDate)
	switch {
	case err == nil:
		n.ID = existing.ID
		n.CreatedAt = existing.CreatedAt
		if !n.AccumulatedNav.Valid {
			n.AccumulatedNav = existing.AccumulatedNav
		}
		if !n.DailyGrowth.Valid {
			n.DailyGrowth = existing.DailyGrowth
		}
		query := `
			UPDATE fund_nav_history SET
				unit_nav = ?,
				accumulated_nav = COALESCE(?, accumulated_nav),
				daily_growth = COALESCE(?, daily_growth),
				updated_at = ?
			WHERE id = ?
		`
		if _, err := r.getQuerier().ExecContext(ctx, query,
			n.UnitNav.String(),
			n.AccumulatedNav,
			n.DailyGrowth,
			FormatTimestamp(n.UpdatedAt),
			n.ID,
		); err != nil {
			return false, fmt.Errorf("failed to update nav history: %w", err)
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	query := `
		INSERT INTO fund_nav_history (id, fund_id, nav_date, unit_nav, accumulated_nav, daily_growth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.getQuerier().ExecContext(ctx, query,
		n.ID,
		n.FundID,
		FormatDate(n.NavDate),
		n.UnitNav.String(),
		n.AccumulatedNav,
		n.DailyGrowth,
		FormatTimestamp(n.CreatedAt),
		FormatTimestamp(n.UpdatedAt),
	); err != nil {
		return false, fmt.Errorf("failed to insert nav history: %w", err)
	}
	return true, nil
}

// GetNavOnDate returns the fund's NAV published for the given date.
// Returns sql.ErrNoRows when no NAV is recorded for that date.
func (r *NavHistoryRepository) GetNavOnDate(ctx context.Context, fundID string, navDate time.Time) (model.NavHistory, error) {
	query := `SELECT ` + navHistoryColumns + ` FROM fund_nav_history WHERE fund_id = ? AND nav_date = ?`

	n, err := scanNavHistory(r.getQuerier().QueryRowContext(ctx, query, fundID, FormatDate(navDate)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.NavHistory{}, err
	}
	if err != nil {
		return model.NavHistory{}, fmt.Errorf("failed to query nav history: %w", err)
	}
	return n, nil
}

// ListNavHistory returns the fund's NAVs newest first, bounded by the optional filter dates (inclusive).
func (r *NavHistoryRepository) ListNavHistory(ctx context.Context, fundID string, filter model.NavHistoryFilter) ([]model.NavHistory, error) {
	query := `SELECT ` + navHistoryColumns + ` FROM fund_nav_history WHERE fund_id = ?`
	args := []any{fundID}
	if filter.Start != nil {
		query += ` AND nav_date >= ?`
		args = append(args, FormatDate(*filter.Start))
	}
	if filter.End != nil {
		query += ` AND nav_date <= ?`
		args = append(args, FormatDate(*filter.End))
	}
	query += ` ORDER BY nav_date DESC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund_nav_history table: %w", err)
	}
	defer rows.Close()

	navs := []model.NavHistory{}
	for rows.Next() {
		n, err := scanNavHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund_nav_history table results: %w", err)
		}
		navs = append(navs, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund_nav_history table: %w", err)
	}
	return navs, nil
}
