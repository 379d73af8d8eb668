package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/fundval-backend/internal/model"
)

// AccuracyRepository provides data access methods for the estimate_accuracy table.
// One row holds a source's closing estimate for a fund and day, scored once the NAV is published.
type AccuracyRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAccuracyRepository creates a new AccuracyRepository with the provided database connection.
func NewAccuracyRepository(db *sql.DB) *AccuracyRepository {
	return &AccuracyRepository{db: db}
}

// WithTx returns a new AccuracyRepository scoped to the provided transaction.
func (r *AccuracyRepository) WithTx(tx *sql.Tx) *AccuracyRepository {
	return &AccuracyRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *AccuracyRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const accuracyColumns = `id, source_name, fund_id, estimate_date, estimate_nav, actual_nav, error_rate, created_at`

func scanAccuracy(row interface{ Scan(dest ...any) error }) (model.EstimateAccuracy, error) {
	var a model.EstimateAccuracy
	var estimateDate, createdAt string

	err := row.Scan(
		&a.ID,
		&a.SourceName,
		&a.FundID,
		&estimateDate,
		&a.EstimateNav,
		&a.ActualNav,
		&a.ErrorRate,
		&createdAt,
	)
	if err != nil {
		return model.EstimateAccuracy{}, err
	}

	if a.EstimateDate, err = ParseTime(estimateDate); err != nil {
		return model.EstimateAccuracy{}, err
	}
	if a.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.EstimateAccuracy{}, err
	}
	return a, nil
}

func (r *AccuracyRepository) queryAccuracy(ctx context.Context, query string, args ...any) ([]model.EstimateAccuracy, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate_accuracy table: %w", err)
	}
	defer rows.Close()

	records := []model.EstimateAccuracy{}
	for rows.Next() {
		a, err := scanAccuracy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate_accuracy table results: %w", err)
		}
		records = append(records, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating estimate_accuracy table: %w", err)
	}
	return records, nil
}

// UpsertSnapshot stores the source's latest estimate for (fund, day). A later estimate on the
// same day replaces the earlier one and clears its score.
func (r *AccuracyRepository) UpsertSnapshot(ctx context.Context, a *model.EstimateAccuracy) error {
	query := `
		INSERT INTO estimate_accuracy (id, source_name, fund_id, estimate_date, estimate_nav, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_name, fund_id, estimate_date) DO UPDATE SET
			estimate_nav = excluded.estimate_nav,
			actual_nav = NULL,
			error_rate = NULL
		RETURNING id
	`

	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	err := r.getQuerier().QueryRowContext(ctx, query,
		a.ID,
		a.SourceName,
		a.FundID,
		FormatDate(a.EstimateDate),
		a.EstimateNav.String(),
		FormatTimestamp(a.CreatedAt),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert estimate snapshot: %w", err)
	}
	return nil
}

// ListByFundAndDate returns every source's snapshot of the fund for one day.
func (r *AccuracyRepository) ListByFundAndDate(ctx context.Context, fundID string, day time.Time) ([]model.EstimateAccuracy, error) {
	query := `SELECT ` + accuracyColumns + ` FROM estimate_accuracy WHERE fund_id = ? AND estimate_date = ? ORDER BY source_name`
	return r.queryAccuracy(ctx, query, fundID, FormatDate(day))
}

// ListByDate returns every snapshot taken on one day, across funds and sources.
func (r *AccuracyRepository) ListByDate(ctx context.Context, day time.Time) ([]model.EstimateAccuracy, error) {
	query := `SELECT ` + accuracyColumns + ` FROM estimate_accuracy WHERE estimate_date = ? ORDER BY fund_id, source_name`
	return r.queryAccuracy(ctx, query, FormatDate(day))
}

// ListByFund returns the fund's snapshots newest first, capped at limit rows when limit is positive.
func (r *AccuracyRepository) ListByFund(ctx context.Context, fundID string, limit int) ([]model.EstimateAccuracy, error) {
	query := `SELECT ` + accuracyColumns + ` FROM estimate_accuracy WHERE fund_id = ? ORDER BY estimate_date DESC, source_name`
	args := []any{fundID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryAccuracy(ctx, query, args...)
}

// SetActual records the published NAV and the resulting error rate on a snapshot.
func (r *AccuracyRepository) SetActual(ctx context.Context, id string, actual decimal.Decimal, errorRate decimal.NullDecimal) error {
	query := `UPDATE estimate_accuracy SET actual_nav = ?, error_rate = ? WHERE id = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, actual.String(), errorRate, id); err != nil {
		return fmt.Errorf("failed to score estimate snapshot: %w", err)
	}
	return nil
}
