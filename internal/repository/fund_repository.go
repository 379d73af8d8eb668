package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// FundRepository provides data access methods for the fund table.
type FundRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewFundRepository creates a new FundRepository with the provided database connection.
func NewFundRepository(db *sql.DB) *FundRepository {
	return &FundRepository{db: db}
}

// WithTx returns a new FundRepository scoped to the provided transaction.
func (r *FundRepository) WithTx(tx *sql.Tx) *FundRepository {
	return &FundRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *FundRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const fundColumns = `
	id, code, name, fund_type, latest_nav, latest_nav_date,
	estimate_nav, estimate_growth, estimate_time, created_at, updated_at
`

func scanFund(row interface{ Scan(dest ...any) error }) (model.Fund, error) {
	var f model.Fund
	var fundType, navDate, estimateTime sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&f.ID,
		&f.Code,
		&f.Name,
		&fundType,
		&f.LatestNav,
		&navDate,
		&f.EstimateNav,
		&f.EstimateGrowth,
		&estimateTime,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Fund{}, err
	}

	f.Type = fundType.String
	if f.LatestNavDate, err = parseNullTime(navDate); err != nil {
		return model.Fund{}, err
	}
	if f.EstimateTime, err = parseNullTime(estimateTime); err != nil {
		return model.Fund{}, err
	}
	if f.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Fund{}, err
	}
	if f.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Fund{}, err
	}
	return f, nil
}

// GetFund retrieves a fund by ID.
// Returns ErrFundNotFound if no fund with the given ID exists.
func (r *FundRepository) GetFund(ctx context.Context, fundID string) (model.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM fund WHERE id = ?`

	f, err := scanFund(r.getQuerier().QueryRowContext(ctx, query, fundID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Fund{}, apperrors.ErrFundNotFound
	}
	if err != nil {
		return model.Fund{}, fmt.Errorf("failed to query fund: %w", err)
	}
	return f, nil
}

// GetFundByCode retrieves a fund by its unique code.
// Returns ErrFundNotFound if no fund with the given code exists.
func (r *FundRepository) GetFundByCode(ctx context.Context, code string) (model.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM fund WHERE code = ?`

	f, err := scanFund(r.getQuerier().QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Fund{}, apperrors.ErrFundNotFound
	}
	if err != nil {
		return model.Fund{}, fmt.Errorf("failed to query fund by code: %w", err)
	}
	return f, nil
}

// ListFunds returns all funds ordered by code. Returns an empty slice if none exist.
func (r *FundRepository) ListFunds(ctx context.Context) ([]model.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM fund ORDER BY code ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund table: %w", err)
	}
	defer rows.Close()

	funds := []model.Fund{}
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund table results: %w", err)
		}
		funds = append(funds, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund table: %w", err)
	}
	return funds, nil
}

// InsertFund creates a new fund record.
func (r *FundRepository) InsertFund(ctx context.Context, f *model.Fund) error {
	query := `
		INSERT INTO fund (id, code, name, fund_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var fundType sql.NullString
	if f.Type != "" {
		fundType = sql.NullString{String: f.Type, Valid: true}
	}

	_, err := r.getQuerier().ExecContext(ctx, query,
		f.ID,
		f.Code,
		f.Name,
		fundType,
		FormatTimestamp(f.CreatedAt),
		FormatTimestamp(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund: %w", err)
	}
	return nil
}

// UpdateNav stores the latest confirmed NAV and its date.
// Returns ErrFundNotFound if no fund with the given ID exists.
func (r *FundRepository) UpdateNav(ctx context.Context, fundID string, nav decimal.Decimal, navDate, updatedAt time.Time) error {
	query := `UPDATE fund SET latest_nav = ?, latest_nav_date = ?, updated_at = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query,
		nav.String(),
		FormatDate(navDate),
		FormatTimestamp(updatedAt),
		fundID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fund nav: %w", err)
	}
	return expectOneRow(result, apperrors.ErrFundNotFound)
}

// UpdateEstimate stores the cached real-time estimate.
// Returns ErrFundNotFound if no fund with the given ID exists.
func (r *FundRepository) UpdateEstimate(ctx context.Context, fundID string, nav, growth decimal.Decimal, estimateTime, updatedAt time.Time) error {
	query := `UPDATE fund SET estimate_nav = ?, estimate_growth = ?, estimate_time = ?, updated_at = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query,
		nav.String(),
		growth.String(),
		FormatTimestamp(estimateTime),
		FormatTimestamp(updatedAt),
		fundID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fund estimate: %w", err)
	}
	return expectOneRow(result, apperrors.ErrFundNotFound)
}

// expectOneRow maps a zero-row update or delete to notFound.
func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
