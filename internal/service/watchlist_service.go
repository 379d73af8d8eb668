package service

import (
	"context"
	"database/sql"
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

// WatchlistService maintains per-owner lists of funds to follow.
// Watchlists never touch the ledger or positions.
type WatchlistService struct {
	db            *sql.DB
	watchlistRepo *repository.WatchlistRepository
	fundRepo      *repository.FundRepository
	log           zerolog.Logger
}

// NewWatchlistService creates a new WatchlistService with the provided repository dependencies.
func NewWatchlistService(
	db *sql.DB,
	watchlistRepo *repository.WatchlistRepository,
	fundRepo *repository.FundRepository,
	log zerolog.Logger,
) *WatchlistService {
	return &WatchlistService{
		db:            db,
		watchlistRepo: watchlistRepo,
		fundRepo:      fundRepo,
		log:           log.With().Str("component", "watchlist").Logger(),
	}
}

// GetWatchlist retrieves a watchlist with its funds in display order.
func (s *WatchlistService) GetWatchlist(ctx context.Context, watchlistID string) (model.Watchlist, error) {
	w, err := s.watchlistRepo.GetWatchlist(ctx, watchlistID)
	if err != nil {
		return model.Watchlist{}, err
	}
	if w.Items, err = s.watchlistRepo.ListItems(ctx, watchlistID); err != nil {
		return model.Watchlist{}, err
	}
	return w, nil
}

// ListWatchlists returns the owner's watchlists with their funds, ordered by name.
// An empty ownerID lists every owner.
func (s *WatchlistService) ListWatchlists(ctx context.Context, ownerID string) ([]model.Watchlist, error) {
	lists, err := s.watchlistRepo.ListWatchlists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveWatchlist, err)
	}
	for i := range lists {
		if lists[i].Items, err = s.watchlistRepo.ListItems(ctx, lists[i].ID); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveWatchlist, err)
		}
	}
	return lists, nil
}

// CreateWatchlist creates an empty watchlist. Names are unique per owner.
func (s *WatchlistService) CreateWatchlist(ctx context.Context, req request.CreateWatchlistRequest) (model.Watchlist, error) {
	if err := validation.ValidateCreateWatchlist(req); err != nil {
		return model.Watchlist{}, err
	}

	w := model.Watchlist{
		ID:        uuid.New().String(),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now().UTC(),
		Items:     []model.WatchlistItem{},
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.watchlistRepo.WithTx(tx)

		exists, err := repo.NameExists(ctx, w.OwnerID, w.Name, w.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateWatchlistName
		}
		return repo.InsertWatchlist(ctx, &w)
	})
	if err != nil {
		return model.Watchlist{}, err
	}

	s.log.Info().Str("watchlist_id", w.ID).Str("owner_id", w.OwnerID).Msg("watchlist created")
	return w, nil
}

// RenameWatchlist changes a watchlist's name, keeping it unique for the owner.
func (s *WatchlistService) RenameWatchlist(ctx context.Context, watchlistID string, req request.RenameWatchlistRequest) (model.Watchlist, error) {
	if err := validation.ValidateRenameWatchlist(req); err != nil {
		return model.Watchlist{}, err
	}
	name := strings.TrimSpace(req.Name)

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.watchlistRepo.WithTx(tx)

		w, err := repo.GetWatchlist(ctx, watchlistID)
		if err != nil {
			return err
		}
		exists, err := repo.NameExists(ctx, w.OwnerID, name, w.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateWatchlistName
		}
		return repo.RenameWatchlist(ctx, watchlistID, name)
	})
	if err != nil {
		return model.Watchlist{}, err
	}
	return s.GetWatchlist(ctx, watchlistID)
}

// DeleteWatchlist removes a watchlist and its items. The funds stay.
func (s *WatchlistService) DeleteWatchlist(ctx context.Context, watchlistID string) error {
	if err := s.watchlistRepo.DeleteWatchlist(ctx, watchlistID); err != nil {
		return err
	}
	s.log.Info().Str("watchlist_id", watchlistID).Msg("watchlist deleted")
	return nil
}

// AddItem appends a fund to the end of the watchlist. The fund is taken by ID or
// resolved by code, created on first reference. A fund can be on a watchlist once.
func (s *WatchlistService) AddItem(ctx context.Context, watchlistID string, req request.AddWatchlistItemRequest) (model.Watchlist, error) {
	if err := validation.ValidateAddWatchlistItem(req); err != nil {
		return model.Watchlist{}, err
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.watchlistRepo.WithTx(tx)
		fundRepo := s.fundRepo.WithTx(tx)

		if _, err := repo.GetWatchlist(ctx, watchlistID); err != nil {
			return err
		}

		var fund model.Fund
		var err error
		if req.FundID != "" {
			fund, err = fundRepo.GetFund(ctx, req.FundID)
		} else {
			fund, _, err = getOrCreateFund(ctx, fundRepo, req.FundCode, req.FundName, "")
		}
		if err != nil {
			return err
		}

		exists, err := repo.ItemExists(ctx, watchlistID, fund.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateWatchlistItem
		}

		return repo.InsertItem(ctx, &model.WatchlistItem{
			ID:          uuid.New().String(),
			WatchlistID: watchlistID,
			FundID:      fund.ID,
			CreatedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return model.Watchlist{}, err
	}
	return s.GetWatchlist(ctx, watchlistID)
}

// RemoveItem takes a fund off the watchlist.
func (s *WatchlistService) RemoveItem(ctx context.Context, watchlistID, fundID string) (model.Watchlist, error) {
	if _, err := s.watchlistRepo.GetWatchlist(ctx, watchlistID); err != nil {
		return model.Watchlist{}, err
	}
	if err := s.watchlistRepo.DeleteItem(ctx, watchlistID, fundID); err != nil {
		return model.Watchlist{}, err
	}
	return s.GetWatchlist(ctx, watchlistID)
}

// Reorder sets the display order of the watchlist. The request must list every
// fund of the watchlist exactly once; the first fund gets order 0.
func (s *WatchlistService) Reorder(ctx context.Context, watchlistID string, req request.ReorderWatchlistRequest) (model.Watchlist, error) {
	if err := validation.ValidateReorderWatchlist(req); err != nil {
		return model.Watchlist{}, err
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.watchlistRepo.WithTx(tx)

		if _, err := repo.GetWatchlist(ctx, watchlistID); err != nil {
			return err
		}
		items, err := repo.ListItems(ctx, watchlistID)
		if err != nil {
			return err
		}

		onList := make(map[string]bool, len(items))
		for _, it := range items {
			onList[it.FundID] = true
		}
		if len(req.FundIDs) != len(items) {
			return apperrors.ErrWatchlistOrderMismatch
		}
		for _, id := range req.FundIDs {
			if !onList[id] {
				return fmt.Errorf("%w: %s", apperrors.ErrWatchlistOrderMismatch, id)
			}
		}

		for order, id := range req.FundIDs {
			if err := repo.SetItemOrder(ctx, watchlistID, id, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Watchlist{}, err
	}
	return s.GetWatchlist(ctx, watchlistID)
}
