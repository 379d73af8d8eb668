package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/service"
	"github.com/ndewijer/fundval-backend/internal/validation"
)

// WatchlistHandler handles HTTP requests for watchlist endpoints.
type WatchlistHandler struct {
	watchlistService *service.WatchlistService
}

// NewWatchlistHandler creates a new WatchlistHandler with the provided service dependency.
func NewWatchlistHandler(watchlistService *service.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		watchlistService: watchlistService,
	}
}

// ListWatchlists handles GET requests for watchlists.
//
// Endpoint: GET /api/watchlist?owner=
// Response: 200 OK with array of Watchlist including items
func (h *WatchlistHandler) ListWatchlists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.watchlistService.ListWatchlists(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve watchlists")
		return
	}

	response.RespondJSON(w, http.StatusOK, lists)
}

// GetWatchlist handles GET requests for a single watchlist.
//
// Endpoint: GET /api/watchlist/{uuid}
// Response: 200 OK with Watchlist
// Error: 404 Not Found if the watchlist does not exist
func (h *WatchlistHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := h.watchlistService.GetWatchlist(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve watchlist")
		return
	}

	response.RespondJSON(w, http.StatusOK, list)
}

// CreateWatchlist handles POST requests to create a watchlist.
//
// Endpoint: POST /api/watchlist
// Request Body: CreateWatchlistRequest (ownerId, name)
// Response: 201 Created with Watchlist
// Error: 400 Bad Request if validation fails
// Error: 409 Conflict if the owner already has a watchlist with this name
func (h *WatchlistHandler) CreateWatchlist(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateWatchlistRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	list, err := h.watchlistService.CreateWatchlist(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create watchlist")
		return
	}

	response.RespondJSON(w, http.StatusCreated, list)
}

// RenameWatchlist handles PUT requests renaming a watchlist.
//
// Endpoint: PUT /api/watchlist/{uuid}
// Request Body: RenameWatchlistRequest (name)
// Response: 200 OK with Watchlist
// Error: 409 Conflict if the owner already has a watchlist with this name
func (h *WatchlistHandler) RenameWatchlist(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.RenameWatchlistRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	list, err := h.watchlistService.RenameWatchlist(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to rename watchlist")
		return
	}

	response.RespondJSON(w, http.StatusOK, list)
}

// DeleteWatchlist handles DELETE requests. The funds on it are kept.
//
// Endpoint: DELETE /api/watchlist/{uuid}
// Response: 204 No Content
func (h *WatchlistHandler) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := h.watchlistService.DeleteWatchlist(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, err, "failed to delete watchlist")
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// AddItem handles POST requests adding a fund to a watchlist.
//
// Endpoint: POST /api/watchlist/{uuid}/item
// Request Body: AddWatchlistItemRequest (fundId or fundCode, fundName)
// Response: 201 Created with Watchlist
// Error: 409 Conflict if the fund is already on the watchlist
func (h *WatchlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.AddWatchlistItemRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	list, err := h.watchlistService.AddItem(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to add fund to watchlist")
		return
	}

	response.RespondJSON(w, http.StatusCreated, list)
}

// RemoveItem handles DELETE requests taking a fund off a watchlist.
//
// Endpoint: DELETE /api/watchlist/{uuid}/item/{fundId}
// Response: 200 OK with Watchlist
// Error: 404 Not Found if the watchlist does not exist or the fund is not on it
func (h *WatchlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundId")
	if err := validation.ValidateUUID(fundID); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid fund ID", err.Error())
		return
	}

	list, err := h.watchlistService.RemoveItem(r.Context(), chi.URLParam(r, "uuid"), fundID)
	if err != nil {
		respondServiceError(w, err, "failed to remove fund from watchlist")
		return
	}

	response.RespondJSON(w, http.StatusOK, list)
}

// Reorder handles PUT requests setting the display order of a watchlist.
//
// Endpoint: PUT /api/watchlist/{uuid}/reorder
// Request Body: ReorderWatchlistRequest (fundIds)
// Response: 200 OK with Watchlist
// Error: 400 Bad Request if fundIds is not a permutation of the watchlist's funds
func (h *WatchlistHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ReorderWatchlistRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	list, err := h.watchlistService.Reorder(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to reorder watchlist")
		return
	}

	response.RespondJSON(w, http.StatusOK, list)
}
