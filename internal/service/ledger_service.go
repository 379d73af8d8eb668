package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
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
)

// LedgerService records buy and sell entries and keeps positions in step with them.
// Every mutation and the recalculation of the pairs it touches commit in one transaction.
type LedgerService struct {
	db           *sql.DB
	accountRepo  *repository.AccountRepository
	fundRepo     *repository.FundRepository
	ledgerRepo   *repository.LedgerRepository
	positionRepo *repository.PositionRepository
	positions    *PositionService
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerService with the provided dependencies.
func NewLedgerService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	fundRepo *repository.FundRepository,
	ledgerRepo *repository.LedgerRepository,
	positionRepo *repository.PositionRepository,
	positions *PositionService,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		accountRepo:  accountRepo,
		fundRepo:     fundRepo,
		ledgerRepo:   ledgerRepo,
		positionRepo: positionRepo,
		positions:    positions,
		log:          log.With().Str("component", "ledger").Logger(),
	}
}

// GetEntry retrieves a single ledger entry by ID.
func (s *LedgerService) GetEntry(ctx context.Context, entryID string) (model.LedgerEntry, error) {
	return s.ledgerRepo.GetEntry(ctx, entryID)
}

// ListEntries retrieves ledger entries matching the filter in replay order.
func (s *LedgerService) ListEntries(ctx context.Context, filter model.LedgerFilter) ([]model.LedgerEntryResponse, error) {
	entries, err := s.ledgerRepo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveEntries, err)
	}
	return entries, nil
}

// CreateEntry appends an entry to the ledger and recalculates its position.
//
// The account must be a child account. The fund is taken by ID or resolved by
// code, created on first reference. A SELL the holding cannot cover at its
// place in the ledger is rejected with ErrInsufficientShares and nothing is written.
func (s *LedgerService) CreateEntry(ctx context.Context, req request.LedgerEntryRequest) (model.LedgerEntry, error) {
	if err := validation.ValidateLedgerEntry(req); err != nil {
		return model.LedgerEntry{}, err
	}
	operationDate, err := validation.ParseDate(req.OperationDate)
	if err != nil {
		return model.LedgerEntry{}, err
	}

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     req.AccountID,
		Type:          model.EntryType(req.Type),
		OperationDate: operationDate,
		BeforeCutoff:  req.BeforeCutoff,
		Amount:        req.Amount,
		Share:         req.Share,
		Nav:           req.Nav,
		CreatedAt:     time.Now().UTC(),
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		fundID, err := s.resolveTarget(ctx, tx, req)
		if err != nil {
			return err
		}
		entry.FundID = fundID

		before, err := s.foldPair(ctx, tx, entry.Pair())
		if err != nil {
			return err
		}

		if err := s.ledgerRepo.WithTx(tx).InsertEntry(ctx, &entry); err != nil {
			return err
		}

		return s.recalculateChecked(ctx, tx, entry.Pair(), before, entry.ID)
	})
	if err != nil {
		return model.LedgerEntry{}, err
	}

	metrics.LedgerMutations.WithLabelValues("create").Inc()
	s.log.Info().
		Str("entry_id", entry.ID).
		Str("account_id", entry.AccountID).
		Str("fund_id", entry.FundID).
		Str("type", string(entry.Type)).
		Msg("ledger entry created")
	return entry, nil
}

// ReplaceEntry overwrites every field of an entry except its creation time.
// The old pair and, when it changes, the new pair are both recalculated.
// The same oversell rule as CreateEntry applies to both pairs.
func (s *LedgerService) ReplaceEntry(ctx context.Context, entryID string, req request.LedgerEntryRequest) (model.LedgerEntry, error) {
	if err := validation.ValidateLedgerEntry(req); err != nil {
		return model.LedgerEntry{}, err
	}
	operationDate, err := validation.ParseDate(req.OperationDate)
	if err != nil {
		return model.LedgerEntry{}, err
	}

	var entry model.LedgerEntry
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		old, err := ledgerRepo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}

		entry = old
		entry.AccountID = req.AccountID
		entry.Type = model.EntryType(req.Type)
		entry.OperationDate = operationDate
		entry.BeforeCutoff = req.BeforeCutoff
		entry.Amount = req.Amount
		entry.Share = req.Share
		entry.Nav = req.Nav
		if entry.FundID, err = s.resolveTarget(ctx, tx, req); err != nil {
			return err
		}

		pairs := distinctPairs([]model.PairKey{old.Pair(), entry.Pair()})
		before := make(map[model.PairKey]FoldResult, len(pairs))
		for _, pair := range pairs {
			if before[pair], err = s.foldPair(ctx, tx, pair); err != nil {
				return err
			}
		}

		if err := ledgerRepo.ReplaceEntry(ctx, &entry); err != nil {
			return err
		}

		for _, pair := range pairs {
			if err := s.recalculateChecked(ctx, tx, pair, before[pair], entry.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.LedgerEntry{}, err
	}

	metrics.LedgerMutations.WithLabelValues("replace").Inc()
	s.log.Info().Str("entry_id", entry.ID).Msg("ledger entry replaced")
	return entry, nil
}

// DeleteEntry removes an entry and recalculates its position.
// Deletion is never rejected for leaving a later SELL uncovered; the fold clamps instead.
func (s *LedgerService) DeleteEntry(ctx context.Context, entryID string) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		entry, err := ledgerRepo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if err := ledgerRepo.DeleteEntry(ctx, entryID); err != nil {
			return err
		}

		_, _, err = s.positions.RecalculatePositionTx(ctx, tx, entry.AccountID, entry.FundID)
		return err
	})
	if err != nil {
		return err
	}

	metrics.LedgerMutations.WithLabelValues("delete").Inc()
	s.log.Info().Str("entry_id", entryID).Msg("ledger entry deleted")
	return nil
}

// BatchDeleteEntries removes several entries and recalculates each affected pair exactly once.
// Unknown IDs are ignored; an empty list is rejected with ErrEmptyIDList.
func (s *LedgerService) BatchDeleteEntries(ctx context.Context, req request.BatchDeleteRequest) (model.BatchDeleteResult, error) {
	if err := validation.ValidateBatchDelete(req); err != nil {
		return model.BatchDeleteResult{}, err
	}

	var result model.BatchDeleteResult
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		entries, err := ledgerRepo.GetEntriesByIDs(ctx, req.IDs)
		if err != nil {
			return err
		}

		if result.DeletedCount, err = ledgerRepo.DeleteEntries(ctx, req.IDs); err != nil {
			return err
		}

		keys := make([]model.PairKey, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Pair())
		}
		for _, pair := range distinctPairs(keys) {
			if _, _, err := s.positions.RecalculatePositionTx(ctx, tx, pair.AccountID, pair.FundID); err != nil {
				return err
			}
			result.Recalculated++
		}
		return nil
	})
	if err != nil {
		return model.BatchDeleteResult{}, err
	}

	metrics.LedgerMutations.WithLabelValues("batch_delete").Add(float64(result.DeletedCount))
	s.log.Info().
		Int("requested", len(req.IDs)).
		Int("deleted", result.DeletedCount).
		Int("recalculated", result.Recalculated).
		Msg("ledger entries batch deleted")
	return result, nil
}

// ClearPosition deletes the whole ledger behind a position, which removes the position itself.
// Returns the number of ledger entries deleted.
func (s *LedgerService) ClearPosition(ctx context.Context, positionID string) (int, error) {
	var deleted int
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		pos, err := s.positionRepo.WithTx(tx).GetPosition(ctx, positionID)
		if err != nil {
			return err
		}

		if deleted, err = s.ledgerRepo.WithTx(tx).DeleteEntriesForPair(ctx, pos.AccountID, pos.FundID); err != nil {
			return err
		}

		_, _, err = s.positions.RecalculatePositionTx(ctx, tx, pos.AccountID, pos.FundID)
		return err
	})
	if err != nil {
		return 0, err
	}

	metrics.LedgerMutations.WithLabelValues("clear").Inc()
	s.log.Info().Str("position_id", positionID).Int("deleted", deleted).Msg("position cleared")
	return deleted, nil
}

// resolveTarget checks the entry's account and returns the ID of its fund,
// creating the fund when it is referenced by an unknown code.
func (s *LedgerService) resolveTarget(ctx context.Context, tx *sql.Tx, req request.LedgerEntryRequest) (string, error) {
	account, err := s.accountRepo.WithTx(tx).GetAccount(ctx, req.AccountID)
	if err != nil {
		return "", err
	}
	if account.IsRoot() {
		return "", apperrors.ErrLedgerOnRootAccount
	}

	fundRepo := s.fundRepo.WithTx(tx)
	if req.FundID != "" {
		fund, err := fundRepo.GetFund(ctx, req.FundID)
		if err != nil {
			return "", err
		}
		return fund.ID, nil
	}

	fund, created, err := getOrCreateFund(ctx, fundRepo, req.FundCode, req.FundName, "")
	if err != nil {
		return "", err
	}
	if created {
		s.log.Info().Str("fund_id", fund.ID).Str("code", fund.Code).Msg("fund created on first reference")
	}
	return fund.ID, nil
}

// foldPair folds a pair's current ledger without writing anything.
func (s *LedgerService) foldPair(ctx context.Context, tx *sql.Tx, pair model.PairKey) (FoldResult, error) {
	entries, err := s.ledgerRepo.WithTx(tx).GetEntriesForPair(ctx, pair.AccountID, pair.FundID)
	if err != nil {
		return FoldResult{}, err
	}
	return FoldLedger(entries), nil
}

// recalculateChecked recalculates a pair and fails with ErrInsufficientShares
// when the written entry is anomalous, or when the write turned a previously
// clean entry into an anomaly. An entry that was already anomalous before the
// write may change kind without failing it.
func (s *LedgerService) recalculateChecked(ctx context.Context, tx *sql.Tx, pair model.PairKey, before FoldResult, writtenID string) error {
	_, after, err := s.positions.RecalculatePositionTx(ctx, tx, pair.AccountID, pair.FundID)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(before.Anomalies))
	for _, a := range before.Anomalies {
		known[a.EntryID] = true
	}
	for _, a := range after.Anomalies {
		if a.EntryID == writtenID || !known[a.EntryID] {
			return fmt.Errorf("%w: entry %s", apperrors.ErrInsufficientShares, a.EntryID)
		}
	}
	return nil
}

// distinctPairs drops duplicate keys and sorts the rest so recalculation order is stable.
func distinctPairs(keys []model.PairKey) []model.PairKey {
	seen := make(map[model.PairKey]bool, len(keys))
	pairs := make([]model.PairKey, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			pairs = append(pairs, k)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].AccountID != pairs[j].AccountID {
			return pairs[i].AccountID < pairs[j].AccountID
		}
		return pairs[i].FundID < pairs[j].FundID
	})
	return pairs
}
