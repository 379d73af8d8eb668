package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/service"
	"github.com/ndewijer/fundval-backend/internal/validation"
)

// PositionHandler handles HTTP requests for position endpoints.
// Positions are read-only here; they change through the ledger or a recalculation.
type PositionHandler struct {
	positionService *service.PositionService
	ledgerService   *service.LedgerService
}

// NewPositionHandler creates a new PositionHandler with the provided service dependencies.
func NewPositionHandler(positionService *service.PositionService, ledgerService *service.LedgerService) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
		ledgerService:   ledgerService,
	}
}

// ClearResponse reports how many ledger entries a clear removed.
type ClearResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// ListPositions handles GET requests for positions with profit and loss.
// Filtering by a root account includes its children.
//
// Endpoint: GET /api/position?account={uuid}&owner={ownerId}
// Response: 200 OK with array of PositionResponse
// Error: 400 Bad Request if account is not a UUID
// Error: 404 Not Found if the account does not exist
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	filter := model.PositionFilter{
		AccountID: r.URL.Query().Get("account"),
		OwnerID:   r.URL.Query().Get("owner"),
	}
	if filter.AccountID != "" {
		if err := validation.ValidateUUID(filter.AccountID); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid account parameter", err.Error())
			return
		}
	}

	positions, err := h.positionService.ListPositions(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve positions")
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET requests for a single position.
//
// Endpoint: GET /api/position/{uuid}
// Response: 200 OK with PositionResponse
// Error: 404 Not Found if the position does not exist
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	position, err := h.positionService.GetPosition(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve position")
		return
	}

	response.RespondJSON(w, http.StatusOK, position)
}

// ClearPosition handles DELETE requests wiping every ledger entry behind a position.
//
// Endpoint: DELETE /api/position/{uuid}/clear
// Response: 200 OK with ClearResponse
// Error: 404 Not Found if the position does not exist
func (h *PositionHandler) ClearPosition(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.ledgerService.ClearPosition(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to clear position")
		return
	}

	response.RespondJSON(w, http.StatusOK, ClearResponse{DeletedCount: deleted})
}

// RecalculatePositions handles POST requests rebuilding positions from the ledger.
// The body is optional; without an accountId every position is rebuilt.
//
// Endpoint: POST /api/position/recalculate
// Request Body: RecalculateRequest (accountId, optional)
// Response: 200 OK with RecalculateSummary
// Error: 404 Not Found if the account does not exist
// Error: 500 Internal Server Error with the summary as details if any pair failed
func (h *PositionHandler) RecalculatePositions(w http.ResponseWriter, r *http.Request) {
	var req request.RecalculateRequest
	if r.ContentLength != 0 {
		var err error
		if req, err = parseJSON[request.RecalculateRequest](r); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if req.AccountID != nil {
		if err := validation.ValidateUUID(*req.AccountID); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid accountId", err.Error())
			return
		}
	}

	summary, err := h.positionService.RecalculateAllPositions(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecalculationIncomplete) {
			response.RespondError(w, http.StatusInternalServerError, apperrors.ErrRecalculationIncomplete.Error(), summary)
			return
		}
		respondServiceError(w, err, "failed to recalculate positions")
		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}
