package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// PositionRepository provides data access methods for the position table.
// Only the recalculation engine writes to it.
type PositionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPositionRepository creates a new PositionRepository with the provided database connection.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// WithTx returns a new PositionRepository scoped to the provided transaction.
func (r *PositionRepository) WithTx(tx *sql.Tx) *PositionRepository {
	return &PositionRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *PositionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const positionColumns = `p.id, p.account_id, p.fund_id, p.holding_share, p.holding_cost, p.holding_nav, p.updated_at`

func scanPosition(row interface{ Scan(dest ...any) error }, extra ...any) (model.Position, error) {
	var p model.Position
	var updatedAt string

	dest := []any{
		&p.ID,
		&p.AccountID,
		&p.FundID,
		&p.HoldingShare,
		&p.HoldingCost,
		&p.HoldingNav,
		&updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Position{}, err
	}

	var err error
	if p.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Position{}, err
	}
	return p, nil
}

// GetPosition retrieves a position by ID.
// Returns ErrPositionNotFound if no position with the given ID exists.
func (r *PositionRepository) GetPosition(ctx context.Context, positionID string) (model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM position p WHERE p.id = ?`

	p, err := scanPosition(r.getQuerier().QueryRowContext(ctx, query, positionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, apperrors.ErrPositionNotFound
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to query position: %w", err)
	}
	return p, nil
}

// GetPositionByPair retrieves the position of one (account, fund) pair.
// Returns ErrPositionNotFound if the pair has no position row.
func (r *PositionRepository) GetPositionByPair(ctx context.Context, accountID, fundID string) (model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM position p WHERE p.account_id = ? AND p.fund_id = ?`

	p, err := scanPosition(r.getQuerier().QueryRowContext(ctx, query, accountID, fundID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, apperrors.ErrPositionNotFound
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to query position: %w", err)
	}
	return p, nil
}

// ListPositions retrieves positions enriched with account and fund data.
// Filtering by account includes the account's children, so a root account lists its whole subtree.
func (r *PositionRepository) ListPositions(ctx context.Context, filter model.PositionFilter) ([]model.PositionResponse, error) {
	query := `SELECT ` + positionColumns + `, a.name, f.code, f.name, f.latest_nav, f.latest_nav_date
		FROM position p
		JOIN account a ON a.id = p.account_id
		JOIN fund f ON f.id = p.fund_id
		WHERE 1=1`
	var args []any

	if filter.AccountID != "" {
		query += ` AND (a.id = ? OR a.parent_id = ?)`
		args = append(args, filter.AccountID, filter.AccountID)
	}
	if filter.OwnerID != "" {
		query += ` AND a.owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	query += ` ORDER BY a.name ASC, f.code ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position table: %w", err)
	}
	defer rows.Close()

	positions := []model.PositionResponse{}
	for rows.Next() {
		var resp model.PositionResponse
		var navDate sql.NullString

		p, err := scanPosition(rows, &resp.AccountName, &resp.FundCode, &resp.FundName, &resp.LatestNav, &navDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position table results: %w", err)
		}
		resp.Position = p
		if resp.LatestNavDate, err = parseNullTime(navDate); err != nil {
			return nil, fmt.Errorf("failed to parse latest nav date: %w", err)
		}
		positions = append(positions, resp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position table: %w", err)
	}
	return positions, nil
}

// UpsertPosition inserts the pair's position or replaces its computed fields.
// The row keeps its ID across upserts; p.ID is filled in with the stored ID.
func (r *PositionRepository) UpsertPosition(ctx context.Context, p *model.Position) error {
	query := `
		INSERT INTO position (id, account_id, fund_id, holding_share, holding_cost, holding_nav, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, fund_id) DO UPDATE SET
			holding_share = excluded.holding_share,
			holding_cost = excluded.holding_cost,
			holding_nav = excluded.holding_nav,
			updated_at = excluded.updated_at
		RETURNING id
	`

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	err := r.getQuerier().QueryRowContext(ctx, query,
		p.ID,
		p.AccountID,
		p.FundID,
		p.HoldingShare.String(),
		p.HoldingCost.String(),
		p.HoldingNav.String(),
		FormatTimestamp(p.UpdatedAt),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// DeletePositionByPair removes the position row of a pair, if any.
// Returns whether a row was removed.
func (r *PositionRepository) DeletePositionByPair(ctx context.Context, accountID, fundID string) (bool, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM position WHERE account_id = ? AND fund_id = ?`, accountID, fundID)
	if err != nil {
		return false, fmt.Errorf("failed to delete position: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
