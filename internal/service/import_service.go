package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/metrics"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/validation"
	"github.com/rs/zerolog"
)

const (
	importSharePlaces  = 4
	importNavPlaces    = 4
	importAmountPlaces = 2
)

// ImportService reconciles broker holdings into the ledger.
//
// Broker accounts become children of a single root account. Each holding is
// recorded as one BUY on its reported date, after which every touched
// position is recalculated once.
type ImportService struct {
	db          *sql.DB
	accountRepo *repository.AccountRepository
	fundRepo    *repository.FundRepository
	ledgerRepo  *repository.LedgerRepository
	positions   *PositionService
	parentName  string
	log         zerolog.Logger
}

// NewImportService creates a new ImportService. parentName is the root account
// that receives one child per broker account.
func NewImportService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	fundRepo *repository.FundRepository,
	ledgerRepo *repository.LedgerRepository,
	positions *PositionService,
	parentName string,
	log zerolog.Logger,
) *ImportService {
	return &ImportService{
		db:          db,
		accountRepo: accountRepo,
		fundRepo:    fundRepo,
		ledgerRepo:  ledgerRepo,
		positions:   positions,
		parentName:  parentName,
		log:         log.With().Str("component", "import").Logger(),
	}
}

// brokerAccount is a source account with the holdings fetched for it.
type brokerAccount struct {
	importer.Account
	holdings []importer.Holding
}

// Import pulls accounts and holdings from source and records them for ownerID.
//
// Without overwrite the import is idempotent: a holding is skipped when its
// account already has a BUY of the same fund on the same date. With overwrite
// each imported account's ledger is emptied first and rebuilt from the source.
// Holdings without a fund code are skipped. Share and NAV are truncated to 4
// places and amount to 2, toward zero.
//
// Everything is written in one transaction: a failure leaves the ledger untouched.
func (s *ImportService) Import(ctx context.Context, ownerID string, source importer.Source, overwrite bool) (model.ImportResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return model.ImportResult{}, &validation.Error{Fields: map[string]string{"ownerId": "ownerId is required"}}
	}

	accounts, err := s.fetch(ctx, source)
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToImport, err)
	}

	var result model.ImportResult
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		result, err = s.importAccounts(ctx, tx, ownerID, accounts, overwrite)
		return err
	})
	if err != nil {
		return model.ImportResult{}, err
	}

	metrics.LedgerMutations.WithLabelValues("import").Add(float64(result.HoldingsCreated))
	s.log.Info().
		Str("owner_id", ownerID).
		Bool("overwrite", overwrite).
		Int("accounts_created", result.AccountsCreated).
		Int("accounts_skipped", result.AccountsSkipped).
		Int("holdings_created", result.HoldingsCreated).
		Int("holdings_skipped", result.HoldingsSkipped).
		Msg("broker import finished")
	return result, nil
}

// fetch reads the whole source up front so no network call happens inside the transaction.
func (s *ImportService) fetch(ctx context.Context, source importer.Source) ([]brokerAccount, error) {
	accounts, err := source.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]brokerAccount, 0, len(accounts))
	for _, a := range accounts {
		holdings, err := source.FetchHoldings(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, brokerAccount{Account: a, holdings: holdings})
	}
	return out, nil
}

func (s *ImportService) importAccounts(ctx context.Context, tx *sql.Tx, ownerID string, accounts []brokerAccount, overwrite bool) (model.ImportResult, error) {
	var result model.ImportResult
	accountRepo := s.accountRepo.WithTx(tx)
	ledgerRepo := s.ledgerRepo.WithTx(tx)
	fundRepo := s.fundRepo.WithTx(tx)

	parent, _, err := s.getOrCreateAccount(ctx, accountRepo, ownerID, s.parentName, nil)
	if err != nil {
		return result, err
	}
	if !parent.IsRoot() {
		return result, fmt.Errorf("%w: import account %q is a child account", apperrors.ErrAccountDepthExceeded, s.parentName)
	}

	var touched []model.PairKey
	for _, ba := range accounts {
		name := strings.TrimSpace(ba.Name)
		if name == "" {
			result.HoldingsSkipped += len(ba.holdings)
			continue
		}

		child, created, err := s.getOrCreateAccount(ctx, accountRepo, ownerID, name, &parent.ID)
		if err != nil {
			return result, err
		}
		if created {
			result.AccountsCreated++
		} else {
			result.AccountsSkipped++
		}

		if child.IsRoot() {
			s.log.Warn().
				Str("account_id", child.ID).
				Str("name", child.Name).
				Msg("broker account name matches a root account, holdings skipped")
			result.HoldingsSkipped += len(ba.holdings)
			continue
		}

		if overwrite {
			pairs, err := ledgerRepo.ListPairs(ctx, []string{child.ID})
			if err != nil {
				return result, err
			}
			touched = append(touched, pairs...)
			if _, err := ledgerRepo.DeleteEntriesForAccount(ctx, child.ID); err != nil {
				return result, err
			}
		}

		for _, h := range ba.holdings {
			code := strings.TrimSpace(h.FundCode)
			if code == "" {
				result.HoldingsSkipped++
				continue
			}

			fund, _, err := getOrCreateFund(ctx, fundRepo, code, h.FundName, "")
			if err != nil {
				return result, err
			}

			if !overwrite {
				exists, err := ledgerRepo.EntryExists(ctx, child.ID, fund.ID, h.OperationDate.Time, model.EntryTypeBuy)
				if err != nil {
					return result, err
				}
				if exists {
					result.HoldingsSkipped++
					continue
				}
			}

			entry := model.LedgerEntry{
				ID:            uuid.New().String(),
				AccountID:     child.ID,
				FundID:        fund.ID,
				Type:          model.EntryTypeBuy,
				OperationDate: h.OperationDate.Time,
				BeforeCutoff:  true,
				Amount:        h.Amount.Truncate(importAmountPlaces),
				Share:         h.Share.Truncate(importSharePlaces),
				Nav:           h.Nav.Truncate(importNavPlaces),
				CreatedAt:     time.Now().UTC(),
			}
			if err := ledgerRepo.InsertEntry(ctx, &entry); err != nil {
				return result, err
			}
			touched = append(touched, entry.Pair())
			result.HoldingsCreated++
		}
	}

	for _, pair := range distinctPairs(touched) {
		if _, _, err := s.positions.RecalculatePositionTx(ctx, tx, pair.AccountID, pair.FundID); err != nil {
			return result, err
		}
		result.Recalculated++
	}
	return result, nil
}

// getOrCreateAccount looks an account up by name and creates it under parentID when missing.
func (s *ImportService) getOrCreateAccount(ctx context.Context, repo *repository.AccountRepository, ownerID, name string, parentID *string) (model.Account, bool, error) {
	account, err := repo.GetAccountByName(ctx, ownerID, name)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		return model.Account{}, false, err
	}

	now := time.Now().UTC()
	account = model.Account{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertAccount(ctx, &account); err != nil {
		return model.Account{}, false, err
	}
	return account, true, nil
}
