package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/metrics"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/validation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultEstimateSource names estimate snapshots whose updater did not identify itself.
const DefaultEstimateSource = "default"

// accuracyReportLimit caps the snapshots returned by GetAccuracy.
const accuracyReportLimit = 100

// FundService handles fund lookups and the NAV fields fed by external updaters.
// Every confirmed NAV is kept as history, and every estimate is kept as a snapshot
// that is scored against the NAV published for its day.
// The position engine only reads funds; NAV changes never trigger a recalculation.
type FundService struct {
	db           *sql.DB
	fundRepo     *repository.FundRepository
	navRepo      *repository.NavHistoryRepository
	accuracyRepo *repository.AccuracyRepository
	log          zerolog.Logger
}

// NewFundService creates a new FundService with the provided repository dependencies.
func NewFundService(
	db *sql.DB,
	fundRepo *repository.FundRepository,
	navRepo *repository.NavHistoryRepository,
	accuracyRepo *repository.AccuracyRepository,
	log zerolog.Logger,
) *FundService {
	return &FundService{
		db:           db,
		fundRepo:     fundRepo,
		navRepo:      navRepo,
		accuracyRepo: accuracyRepo,
		log:          log.With().Str("component", "fund").Logger(),
	}
}

// EstimateErrorRate returns |estimate - actual| / actual rounded to six places.
// The rate is null when actual is not positive.
func EstimateErrorRate(estimate, actual decimal.Decimal) decimal.NullDecimal {
	if !actual.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(estimate.Sub(actual).Abs().DivRound(actual, 6))
}

// GetFund retrieves a fund by ID.
func (s *FundService) GetFund(ctx context.Context, fundID string) (model.Fund, error) {
	return s.fundRepo.GetFund(ctx, fundID)
}

// ListFunds retrieves all funds ordered by code.
func (s *FundService) ListFunds(ctx context.Context) ([]model.Fund, error) {
	funds, err := s.fundRepo.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveFunds, err)
	}
	return funds, nil
}

// GetOrCreateFund returns the fund with the given code, creating it on first reference.
// An empty name defaults to the code. The created flag reports whether a row was inserted.
func (s *FundService) GetOrCreateFund(ctx context.Context, req request.GetOrCreateFundRequest) (model.Fund, bool, error) {
	if err := validation.ValidateGetOrCreateFund(req); err != nil {
		return model.Fund{}, false, err
	}
	return getOrCreateFund(ctx, s.fundRepo, req.Code, req.Name, req.Type)
}

// getOrCreateFund is shared by the ledger and import services so they can resolve funds
// inside their own transactions through a tx-scoped repository.
func getOrCreateFund(ctx context.Context, repo *repository.FundRepository, code, name, fundType string) (model.Fund, bool, error) {
	code = strings.TrimSpace(code)

	fund, err := repo.GetFundByCode(ctx, code)
	if err == nil {
		return fund, false, nil
	}
	if !errors.Is(err, apperrors.ErrFundNotFound) {
		return model.Fund{}, false, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}

	now := time.Now().UTC()
	fund = model.Fund{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      name,
		Type:      fundType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertFund(ctx, &fund); err != nil {
		return model.Fund{}, false, fmt.Errorf("failed to create fund %s: %w", code, err)
	}
	return fund, true, nil
}

// UpdateNav records the fund's latest confirmed NAV, stores it in the NAV history
// and scores the estimate snapshots taken for that date, in one transaction.
func (s *FundService) UpdateNav(ctx context.Context, fundID string, req request.UpdateNavRequest) (model.Fund, error) {
	if err := validation.ValidateUpdateNav(req); err != nil {
		return model.Fund{}, err
	}
	navDate, err := validation.ParseDate(req.Date)
	if err != nil {
		return model.Fund{}, err
	}

	var scored int
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if err := s.fundRepo.WithTx(tx).UpdateNav(ctx, fundID, req.Nav, navDate, now); err != nil {
			return err
		}
		nav := model.NavHistory{FundID: fundID, NavDate: navDate, UnitNav: req.Nav, CreatedAt: now, UpdatedAt: now}
		if _, err := s.navRepo.WithTx(tx).UpsertNav(ctx, &nav); err != nil {
			return err
		}
		var serr error
		scored, serr = s.scoreSnapshots(ctx, tx, fundID, navDate, req.Nav)
		return serr
	})
	if err != nil {
		return model.Fund{}, err
	}

	s.log.Info().
		Str("fund_id", fundID).
		Str("nav", req.Nav.String()).
		Str("date", req.Date).
		Int("scored", scored).
		Msg("fund nav updated")
	return s.fundRepo.GetFund(ctx, fundID)
}

// UpdateEstimate caches the fund's intraday estimate and keeps it as the source's
// snapshot for the estimate's calendar day, taken in the timestamp's own offset.
// A later estimate on the same day replaces the snapshot. When the NAV for that
// day is already known the snapshot is scored straight away.
func (s *FundService) UpdateEstimate(ctx context.Context, fundID string, req request.UpdateEstimateRequest) (model.Fund, error) {
	if err := validation.ValidateUpdateEstimate(req); err != nil {
		return model.Fund{}, err
	}
	estimateTime, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		return model.Fund{}, err
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = DefaultEstimateSource
	}
	day := time.Date(estimateTime.Year(), estimateTime.Month(), estimateTime.Day(), 0, 0, 0, 0, time.UTC)

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if err := s.fundRepo.WithTx(tx).UpdateEstimate(ctx, fundID, req.Nav, req.Growth, estimateTime.UTC(), now); err != nil {
			return err
		}
		snapshot := model.EstimateAccuracy{
			SourceName:   source,
			FundID:       fundID,
			EstimateDate: day,
			EstimateNav:  req.Nav,
			CreatedAt:    now,
		}
		if err := s.accuracyRepo.WithTx(tx).UpsertSnapshot(ctx, &snapshot); err != nil {
			return err
		}

		published, err := s.navRepo.WithTx(tx).GetNavOnDate(ctx, fundID, day)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = s.scoreSnapshots(ctx, tx, fundID, day, published.UnitNav)
		return err
	})
	if err != nil {
		return model.Fund{}, err
	}
	return s.fundRepo.GetFund(ctx, fundID)
}

// ListNavHistory returns the fund's published NAVs newest first.
func (s *FundService) ListNavHistory(ctx context.Context, fundID string, filter model.NavHistoryFilter) ([]model.NavHistory, error) {
	if _, err := s.fundRepo.GetFund(ctx, fundID); err != nil {
		return nil, err
	}
	navs, err := s.navRepo.ListNavHistory(ctx, fundID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveNavs, err)
	}
	return navs, nil
}

// ImportNavHistory stores a batch of published NAVs for one fund. A date that is
// already recorded is overwritten. When the newest imported date is not older than
// the fund's latest NAV date, it becomes the fund's latest NAV. Estimate snapshots
// of every imported date are scored. The batch commits or fails as a whole.
func (s *FundService) ImportNavHistory(ctx context.Context, fundID string, req request.ImportNavHistoryRequest) (model.NavHistoryImportResult, error) {
	if err := validation.ValidateImportNavHistory(req); err != nil {
		return model.NavHistoryImportResult{}, err
	}

	navs := make([]model.NavHistory, 0, len(req.Items))
	for _, item := range req.Items {
		navDate, err := validation.ParseDate(item.Date)
		if err != nil {
			return model.NavHistoryImportResult{}, err
		}
		navs = append(navs, model.NavHistory{
			FundID:         fundID,
			NavDate:        navDate,
			UnitNav:        item.UnitNav,
			AccumulatedNav: item.AccumulatedNav,
			DailyGrowth:    item.DailyGrowth,
		})
	}
	sort.Slice(navs, func(i, j int) bool { return navs[i].NavDate.Before(navs[j].NavDate) })

	var result model.NavHistoryImportResult
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		fundRepo := s.fundRepo.WithTx(tx)
		navRepo := s.navRepo.WithTx(tx)

		fund, err := fundRepo.GetFund(ctx, fundID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range navs {
			navs[i].CreatedAt, navs[i].UpdatedAt = now, now
			created, err := navRepo.UpsertNav(ctx, &navs[i])
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			scored, err := s.scoreSnapshots(ctx, tx, fundID, navs[i].NavDate, navs[i].UnitNav)
			if err != nil {
				return err
			}
			result.Scored += scored
		}

		newest := navs[len(navs)-1]
		if fund.LatestNavDate == nil || !newest.NavDate.Before(*fund.LatestNavDate) {
			return fundRepo.UpdateNav(ctx, fundID, newest.UnitNav, newest.NavDate, now)
		}
		return nil
	})
	if err != nil {
		return model.NavHistoryImportResult{}, err
	}

	s.log.Info().
		Str("fund_id", fundID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("scored", result.Scored).
		Msg("nav history imported")
	return result, nil
}

// GetAccuracy returns the fund's most recent estimate snapshots with the mean
// error rate of each source over its scored snapshots.
func (s *FundService) GetAccuracy(ctx context.Context, fundID string) (model.AccuracyReport, error) {
	if _, err := s.fundRepo.GetFund(ctx, fundID); err != nil {
		return model.AccuracyReport{}, err
	}
	records, err := s.accuracyRepo.ListByFund(ctx, fundID, accuracyReportLimit)
	if err != nil {
		return model.AccuracyReport{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveAccuracy, err)
	}

	return model.AccuracyReport{
		FundID:  fundID,
		Records: records,
		Sources: summarizeSources(records),
	}, nil
}

// summarizeSources averages the error rate per source, sorted by source name.
func summarizeSources(records []model.EstimateAccuracy) []model.SourceAccuracy {
	type acc struct {
		snapshots, scored int
		sum               decimal.Decimal
	}
	bySource := make(map[string]*acc)
	for _, r := range records {
		a, ok := bySource[r.SourceName]
		if !ok {
			a = &acc{}
			bySource[r.SourceName] = a
		}
		a.snapshots++
		if r.ErrorRate.Valid {
			a.scored++
			a.sum = a.sum.Add(r.ErrorRate.Decimal)
		}
	}

	sources := make([]model.SourceAccuracy, 0, len(bySource))
	for name, a := range bySource {
		mean := decimal.Zero
		if a.scored > 0 {
			mean = a.sum.DivRound(decimal.NewFromInt(int64(a.scored)), 6)
		}
		sources = append(sources, model.SourceAccuracy{
			SourceName:    name,
			Snapshots:     a.snapshots,
			Scored:        a.scored,
			MeanErrorRate: mean,
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].SourceName < sources[j].SourceName })
	return sources
}

// AuditAccuracy scores every snapshot of the given day against the NAV history.
// Snapshots whose NAV is not published yet are counted as pending and left unscored.
// Scoring already happens when NAVs and estimates arrive; the audit repairs
// snapshots whose NAV was recorded before the scoring existed or was later corrected.
func (s *FundService) AuditAccuracy(ctx context.Context, day time.Time) (model.AccuracyAuditResult, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	result := model.AccuracyAuditResult{Date: day}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		snapshots, err := s.accuracyRepo.WithTx(tx).ListByDate(ctx, day)
		if err != nil {
			return err
		}

		navRepo := s.navRepo.WithTx(tx)
		done := make(map[string]bool)
		for _, snap := range snapshots {
			if done[snap.FundID] {
				continue
			}
			done[snap.FundID] = true

			published, err := navRepo.GetNavOnDate(ctx, snap.FundID, day)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			scored, err := s.scoreSnapshots(ctx, tx, snap.FundID, day, published.UnitNav)
			if err != nil {
				return err
			}
			result.Scored += scored
		}
		result.Pending = len(snapshots) - result.Scored
		return nil
	})
	if err != nil {
		return model.AccuracyAuditResult{}, err
	}

	s.log.Info().
		Str("date", repository.FormatDate(day)).
		Int("scored", result.Scored).
		Int("pending", result.Pending).
		Msg("estimate accuracy audited")
	return result, nil
}

// scoreSnapshots sets the actual NAV and error rate on every snapshot of (fund, day).
func (s *FundService) scoreSnapshots(ctx context.Context, tx *sql.Tx, fundID string, day time.Time, actual decimal.Decimal) (int, error) {
	repo := s.accuracyRepo.WithTx(tx)
	snapshots, err := repo.ListByFundAndDate(ctx, fundID, day)
	if err != nil {
		return 0, err
	}
	for _, snap := range snapshots {
		if err := repo.SetActual(ctx, snap.ID, actual, EstimateErrorRate(snap.EstimateNav, actual)); err != nil {
			return 0, err
		}
		metrics.EstimateSnapshotsScored.WithLabelValues(snap.SourceName).Inc()
	}
	return len(snapshots), nil
}
