package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/metrics"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// costPerSharePrecision is the number of decimal places kept for the
	// average cost per share while a SELL is applied.
	costPerSharePrecision = 28

	// CostPlaces is the precision of holding cost, applied after every SELL.
	CostPlaces = 2

	// NavPlaces is the precision of the derived holding NAV.
	NavPlaces = 4
)

// AnomalyKind names a SELL the fold could not apply as recorded.
type AnomalyKind string

const (
	// AnomalySkippedSell is a SELL recorded while nothing was held. It has no effect.
	AnomalySkippedSell AnomalyKind = "skipped_sell"
	// AnomalyClampedSell is a SELL larger than the holding. The position is closed at zero.
	AnomalyClampedSell AnomalyKind = "clamped_sell"
)

// FoldAnomaly points at the ledger entry that produced an anomaly.
type FoldAnomaly struct {
	EntryID string
	Kind    AnomalyKind
}

// FoldResult is the holding derived from replaying a pair's ledger.
type FoldResult struct {
	Share     decimal.Decimal
	Cost      decimal.Decimal
	Nav       decimal.Decimal
	Anomalies []FoldAnomaly
}

// HasAnomalyFor reports whether the entry with the given ID produced an anomaly.
func (r FoldResult) HasAnomalyFor(entryID string) bool {
	for _, a := range r.Anomalies {
		if a.EntryID == entryID {
			return true
		}
	}
	return false
}

// FoldLedger replays entries in the given order and returns the resulting holding.
//
// BUY adds its share and amount. SELL removes share at the running average
// cost per share and rounds the remaining cost to CostPlaces immediately, so
// the rounding of every intermediate SELL carries into the result. The NAV
// is cost/share rounded to NavPlaces, or zero once nothing is held.
//
// Callers pass entries already sorted by (operation date, created at, id).
// The function has no side effects: the same input always yields the same output.
func FoldLedger(entries []model.LedgerEntry) FoldResult {
	share := decimal.Zero
	cost := decimal.Zero
	var anomalies []FoldAnomaly

	for _, e := range entries {
		switch e.Type {
		case model.EntryTypeBuy:
			share = share.Add(e.Share)
			cost = cost.Add(e.Amount)

		case model.EntryTypeSell:
			if !share.IsPositive() {
				anomalies = append(anomalies, FoldAnomaly{EntryID: e.ID, Kind: AnomalySkippedSell})
				continue
			}
			if e.Share.GreaterThan(share) {
				anomalies = append(anomalies, FoldAnomaly{EntryID: e.ID, Kind: AnomalyClampedSell})
				share = decimal.Zero
				cost = decimal.Zero
				continue
			}

			costPerShare := cost.DivRound(share, costPerSharePrecision)
			share = share.Sub(e.Share)
			cost = cost.Sub(e.Share.Mul(costPerShare)).Round(CostPlaces)
			if share.IsZero() {
				cost = decimal.Zero
			}
		}
	}

	nav := decimal.Zero
	if share.IsPositive() {
		nav = cost.DivRound(share, NavPlaces)
	}

	return FoldResult{
		Share:     share,
		Cost:      cost,
		Nav:       nav,
		Anomalies: anomalies,
	}
}

// PositionService derives positions from the ledger and serves position reads.
type PositionService struct {
	db           *sql.DB
	accountRepo  *repository.AccountRepository
	fundRepo     *repository.FundRepository
	ledgerRepo   *repository.LedgerRepository
	positionRepo *repository.PositionRepository
	workers      int
	locks        *pairLocks
	log          zerolog.Logger
}

// NewPositionService creates a new PositionService.
// workers bounds how many pairs RecalculateAllPositions folds at once; values below 1 mean 1.
func NewPositionService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	fundRepo *repository.FundRepository,
	ledgerRepo *repository.LedgerRepository,
	positionRepo *repository.PositionRepository,
	workers int,
	log zerolog.Logger,
) *PositionService {
	if workers < 1 {
		workers = 1
	}
	return &PositionService{
		db:           db,
		accountRepo:  accountRepo,
		fundRepo:     fundRepo,
		ledgerRepo:   ledgerRepo,
		positionRepo: positionRepo,
		workers:      workers,
		locks:        newPairLocks(),
		log:          log.With().Str("component", "position_engine").Logger(),
	}
}

// RecalculatePosition rebuilds the position of one (account, fund) pair from its full ledger
// in its own transaction. Concurrent calls for the same pair run one after the other.
//
// Returns ErrAccountNotFound or ErrFundNotFound when either side of the pair is missing,
// and ErrPositionOnRootAccount when the account is a root account.
func (s *PositionService) RecalculatePosition(ctx context.Context, accountID, fundID string) (model.Position, error) {
	unlock := s.locks.lock(model.PairKey{AccountID: accountID, FundID: fundID})
	defer unlock()

	var pos model.Position
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		pos, _, err = s.RecalculatePositionTx(ctx, tx, accountID, fundID)
		return err
	})
	if err != nil {
		return model.Position{}, err
	}
	return pos, nil
}

// RecalculatePositionTx rebuilds a pair's position inside the caller's transaction,
// so a ledger write and its recompute commit or roll back together.
//
// A pair with no ledger entries has its position row deleted; any other pair is
// upserted, including a zero holding. The returned position always carries the
// computed values, and the fold result lets callers inspect anomalies.
func (s *PositionService) RecalculatePositionTx(ctx context.Context, tx *sql.Tx, accountID, fundID string) (model.Position, FoldResult, error) {
	start := time.Now()
	pos, fold, err := s.recalculate(ctx, tx, accountID, fundID)
	metrics.ObserveRecalculation(start, err)
	return pos, fold, err
}

func (s *PositionService) recalculate(ctx context.Context, tx *sql.Tx, accountID, fundID string) (model.Position, FoldResult, error) {
	account, err := s.accountRepo.WithTx(tx).GetAccount(ctx, accountID)
	if err != nil {
		return model.Position{}, FoldResult{}, err
	}
	if _, err := s.fundRepo.WithTx(tx).GetFund(ctx, fundID); err != nil {
		return model.Position{}, FoldResult{}, err
	}
	if account.IsRoot() {
		return model.Position{}, FoldResult{}, fmt.Errorf("%w: account %s", apperrors.ErrPositionOnRootAccount, accountID)
	}

	entries, err := s.ledgerRepo.WithTx(tx).GetEntriesForPair(ctx, accountID, fundID)
	if err != nil {
		return model.Position{}, FoldResult{}, err
	}

	fold := FoldLedger(entries)
	for _, a := range fold.Anomalies {
		metrics.FoldAnomalies.WithLabelValues(string(a.Kind)).Inc()
		s.log.Warn().
			Str("account_id", accountID).
			Str("fund_id", fundID).
			Str("entry_id", a.EntryID).
			Str("kind", string(a.Kind)).
			Msg("sell entry not applied as recorded")
	}

	pos := model.Position{
		AccountID:    accountID,
		FundID:       fundID,
		HoldingShare: fold.Share,
		HoldingCost:  fold.Cost,
		HoldingNav:   fold.Nav,
		UpdatedAt:    time.Now().UTC(),
	}

	positionRepo := s.positionRepo.WithTx(tx)
	if len(entries) == 0 {
		if _, err := positionRepo.DeletePositionByPair(ctx, accountID, fundID); err != nil {
			return model.Position{}, FoldResult{}, err
		}
		s.log.Debug().Str("account_id", accountID).Str("fund_id", fundID).Msg("empty ledger, position removed")
		return pos, fold, nil
	}

	if err := positionRepo.UpsertPosition(ctx, &pos); err != nil {
		return model.Position{}, FoldResult{}, err
	}

	s.log.Debug().
		Str("account_id", accountID).
		Str("fund_id", fundID).
		Int("entries", len(entries)).
		Str("share", pos.HoldingShare.String()).
		Str("cost", pos.HoldingCost.String()).
		Str("nav", pos.HoldingNav.String()).
		Msg("position recalculated")

	return pos, fold, nil
}

// RecalculateAllPositions rebuilds every position that has ledger entries.
// When accountID is non-nil only that account and its children are swept.
//
// Each pair is recalculated in its own transaction. A failing pair is logged and
// recorded in the summary; the sweep carries on. If any pair failed the returned
// error wraps ErrRecalculationIncomplete alongside the full summary.
func (s *PositionService) RecalculateAllPositions(ctx context.Context, accountID *string) (model.RecalculateSummary, error) {
	var scope []string
	if accountID != nil {
		account, err := s.accountRepo.GetAccount(ctx, *accountID)
		if err != nil {
			return model.RecalculateSummary{}, err
		}
		scope = append(scope, account.ID)
		children, err := s.accountRepo.ListChildren(ctx, account.ID)
		if err != nil {
			return model.RecalculateSummary{}, err
		}
		for _, c := range children {
			scope = append(scope, c.ID)
		}
	}

	pairs, err := s.ledgerRepo.ListPairs(ctx, scope)
	if err != nil {
		return model.RecalculateSummary{}, err
	}

	summary := model.RecalculateSummary{
		Pairs:  len(pairs),
		Failed: []model.RecalculateFailed{},
	}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, pair := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			_, err := s.RecalculatePosition(ctx, pair.AccountID, pair.FundID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Error().Err(err).
					Str("account_id", pair.AccountID).
					Str("fund_id", pair.FundID).
					Msg("position recalculation failed")
				summary.Failed = append(summary.Failed, model.RecalculateFailed{
					AccountID: pair.AccountID,
					FundID:    pair.FundID,
					Error:     err.Error(),
				})
				return nil
			}
			summary.Recalculated++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("position recalculation interrupted: %w", err)
	}

	sort.Slice(summary.Failed, func(i, j int) bool {
		if summary.Failed[i].AccountID != summary.Failed[j].AccountID {
			return summary.Failed[i].AccountID < summary.Failed[j].AccountID
		}
		return summary.Failed[i].FundID < summary.Failed[j].FundID
	})

	s.log.Info().
		Int("pairs", summary.Pairs).
		Int("recalculated", summary.Recalculated).
		Int("failed", len(summary.Failed)).
		Msg("position sweep finished")

	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%w: %d of %d pairs failed",
			apperrors.ErrRecalculationIncomplete, len(summary.Failed), summary.Pairs)
	}
	return summary, nil
}

// GetPosition retrieves a position by ID, enriched with account and fund data.
func (s *PositionService) GetPosition(ctx context.Context, positionID string) (model.PositionResponse, error) {
	pos, err := s.positionRepo.GetPosition(ctx, positionID)
	if err != nil {
		return model.PositionResponse{}, err
	}
	account, err := s.accountRepo.GetAccount(ctx, pos.AccountID)
	if err != nil {
		return model.PositionResponse{}, err
	}
	fund, err := s.fundRepo.GetFund(ctx, pos.FundID)
	if err != nil {
		return model.PositionResponse{}, err
	}

	resp := model.PositionResponse{
		Position:      pos,
		AccountName:   account.Name,
		FundCode:      fund.Code,
		FundName:      fund.Name,
		LatestNav:     fund.LatestNav,
		LatestNavDate: fund.LatestNavDate,
	}
	resp.Pnl = positionPnl(resp)
	return resp, nil
}

// ListPositions retrieves positions matching the filter with profit/loss against each fund's latest NAV.
func (s *PositionService) ListPositions(ctx context.Context, filter model.PositionFilter) ([]model.PositionResponse, error) {
	if filter.AccountID != "" {
		if _, err := s.accountRepo.GetAccount(ctx, filter.AccountID); err != nil {
			return nil, err
		}
	}

	positions, err := s.positionRepo.ListPositions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrievePositions, err)
	}
	for i := range positions {
		positions[i].Pnl = positionPnl(positions[i])
	}
	return positions, nil
}

// positionPnl is (latest NAV - holding NAV) * holding share, rounded to cents.
// Without a published NAV, or without shares, it is zero.
func positionPnl(p model.PositionResponse) decimal.Decimal {
	if !p.LatestNav.Valid || !p.HoldingShare.IsPositive() {
		return decimal.Zero
	}
	return p.LatestNav.Decimal.Sub(p.HoldingNav).Mul(p.HoldingShare).Round(CostPlaces)
}

// pairLocks hands out one mutex per (account, fund) pair and drops it when unused.
type pairLocks struct {
	mu    sync.Mutex
	locks map[model.PairKey]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[model.PairKey]*pairLock)}
}

// lock blocks until the pair is free and returns the matching unlock func.
func (l *pairLocks) lock(key model.PairKey) func() {
	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pairLock{}
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()

	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
