package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/validation"
	"github.com/rs/zerolog"
)

// AccountService maintains the two-level account tree and the per-owner default account.
type AccountService struct {
	db          *sql.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	log         zerolog.Logger
}

// NewAccountService creates a new AccountService with the provided repository dependencies.
func NewAccountService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	ledgerRepo *repository.LedgerRepository,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		db:          db,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		log:         log.With().Str("component", "account").Logger(),
	}
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	return s.accountRepo.GetAccount(ctx, accountID)
}

// GetDefaultAccount retrieves the owner's default account.
func (s *AccountService) GetDefaultAccount(ctx context.Context, ownerID string) (model.Account, error) {
	return s.accountRepo.GetDefaultAccount(ctx, ownerID)
}

// ListAccounts returns the owner's accounts as a tree: root accounts with their children.
// An empty ownerID lists every owner.
func (s *AccountService) ListAccounts(ctx context.Context, ownerID string) ([]model.AccountNode, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveAccounts, err)
	}
	return buildAccountTree(accounts), nil
}

// buildAccountTree groups children under their roots, keeping the input order.
func buildAccountTree(accounts []model.Account) []model.AccountNode {
	nodes := []model.AccountNode{}
	index := make(map[string]int)

	for _, a := range accounts {
		if a.IsRoot() {
			index[a.ID] = len(nodes)
			nodes = append(nodes, model.AccountNode{Account: a, Children: []model.Account{}})
		}
	}
	for _, a := range accounts {
		if a.IsRoot() {
			continue
		}
		if i, ok := index[*a.ParentID]; ok {
			nodes[i].Children = append(nodes[i].Children, a)
		}
	}
	return nodes
}

// CreateAccount creates a root or child account.
//
// Checks run in order before anything is written:
//  1. a default account cannot have a parent
//  2. the parent must exist, belong to the same owner, and be a root account
//  3. the name must be unique for the owner
//
// When IsDefault is set, every other default of the owner is cleared in the same transaction.
func (s *AccountService) CreateAccount(ctx context.Context, req request.CreateAccountRequest) (model.Account, error) {
	if err := validation.ValidateCreateAccount(req); err != nil {
		return model.Account{}, err
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:        uuid.New().String(),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		Name:      strings.TrimSpace(req.Name),
		ParentID:  req.ParentID,
		IsDefault: req.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		accountRepo := s.accountRepo.WithTx(tx)

		if err := s.checkHierarchy(ctx, tx, account, nil); err != nil {
			return err
		}
		if account.IsDefault {
			if err := accountRepo.ClearDefaults(ctx, account.OwnerID, account.ID); err != nil {
				return err
			}
		}
		return accountRepo.InsertAccount(ctx, &account)
	})
	if err != nil {
		return model.Account{}, err
	}

	s.log.Info().
		Str("account_id", account.ID).
		Str("owner_id", account.OwnerID).
		Bool("is_default", account.IsDefault).
		Bool("root", account.IsRoot()).
		Msg("account created")
	return account, nil
}

// UpdateAccount replaces an account's name, parent and default flag.
// The same checks as CreateAccount apply, plus the rules that keep the tree two levels deep:
// an account with children cannot move under a parent, and an account holding
// ledger entries cannot become a root account.
func (s *AccountService) UpdateAccount(ctx context.Context, accountID string, req request.UpdateAccountRequest) (model.Account, error) {
	if err := validation.ValidateUpdateAccount(req); err != nil {
		return model.Account{}, err
	}

	var account model.Account
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		accountRepo := s.accountRepo.WithTx(tx)

		existing, err := accountRepo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		account = existing
		account.Name = strings.TrimSpace(req.Name)
		account.ParentID = req.ParentID
		account.IsDefault = req.IsDefault
		account.UpdatedAt = time.Now().UTC()

		if err := s.checkHierarchy(ctx, tx, account, &existing); err != nil {
			return err
		}
		if account.IsDefault {
			if err := accountRepo.ClearDefaults(ctx, account.OwnerID, account.ID); err != nil {
				return err
			}
		}
		return accountRepo.UpdateAccount(ctx, &account)
	})
	if err != nil {
		return model.Account{}, err
	}

	s.log.Info().Str("account_id", account.ID).Bool("is_default", account.IsDefault).Msg("account updated")
	return account, nil
}

// checkHierarchy enforces the account invariants for a pending write.
// existing is nil on create.
func (s *AccountService) checkHierarchy(ctx context.Context, tx *sql.Tx, account model.Account, existing *model.Account) error {
	accountRepo := s.accountRepo.WithTx(tx)

	if account.IsDefault && account.ParentID != nil {
		return apperrors.ErrDefaultAccountHasParent
	}

	if account.ParentID != nil {
		if *account.ParentID == account.ID {
			return fmt.Errorf("%w: account cannot be its own parent", apperrors.ErrAccountDepthExceeded)
		}

		parent, err := accountRepo.GetAccount(ctx, *account.ParentID)
		if err != nil {
			return fmt.Errorf("parent %s: %w", *account.ParentID, err)
		}
		if parent.OwnerID != account.OwnerID {
			return apperrors.ErrAccountOwnerMismatch
		}
		if !parent.IsRoot() {
			return apperrors.ErrAccountDepthExceeded
		}

		if existing != nil && existing.IsRoot() {
			children, err := accountRepo.ListChildren(ctx, existing.ID)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return fmt.Errorf("%w: account has child accounts", apperrors.ErrAccountDepthExceeded)
			}
		}
	}

	other, err := accountRepo.GetAccountByName(ctx, account.OwnerID, account.Name)
	switch {
	case err == nil && other.ID != account.ID:
		return apperrors.ErrDuplicateAccountName
	case err != nil && !errors.Is(err, apperrors.ErrAccountNotFound):
		return err
	}

	if existing != nil && !existing.IsRoot() && account.IsRoot() {
		count, err := s.ledgerRepo.WithTx(tx).CountEntriesForAccount(ctx, existing.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrAccountHasLedger
		}
	}

	return nil
}

// DeleteAccount removes an account together with its children, ledger entries and positions.
// The owner's default account cannot be deleted.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		accountRepo := s.accountRepo.WithTx(tx)

		account, err := accountRepo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.IsDefault {
			return apperrors.ErrDefaultAccountDeletion
		}
		return accountRepo.DeleteAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("account_id", accountID).Msg("account deleted")
	return nil
}
