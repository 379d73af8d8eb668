package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/service"
	"github.com/ndewijer/fundval-backend/internal/validation"
)

// OperationHandler handles HTTP requests for ledger entries ("operations").
// Every write recalculates the affected positions before it responds.
type OperationHandler struct {
	ledgerService *service.LedgerService
}

// NewOperationHandler creates a new OperationHandler with the provided service dependency.
func NewOperationHandler(ledgerService *service.LedgerService) *OperationHandler {
	return &OperationHandler{
		ledgerService: ledgerService,
	}
}

// ListOperations handles GET requests for ledger entries in replay order.
//
// Endpoint: GET /api/operation?account={uuid}&fund={uuid}&owner={ownerId}
// Response: 200 OK with array of LedgerEntryResponse
// Error: 400 Bad Request if account or fund is not a UUID
func (h *OperationHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.LedgerFilter{
		AccountID: q.Get("account"),
		FundID:    q.Get("fund"),
		OwnerID:   q.Get("owner"),
	}
	for name, id := range map[string]string{"account": filter.AccountID, "fund": filter.FundID} {
		if id == "" {
			continue
		}
		if err := validation.ValidateUUID(id); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid "+name+" parameter", err.Error())
			return
		}
	}

	entries, err := h.ledgerService.ListEntries(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve operations")
		return
	}

	response.RespondJSON(w, http.StatusOK, entries)
}

// GetOperation handles GET requests for a single ledger entry.
//
// Endpoint: GET /api/operation/{uuid}
// Response: 200 OK with LedgerEntry
// Error: 404 Not Found if the entry does not exist
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerService.GetEntry(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve operation")
		return
	}

	response.RespondJSON(w, http.StatusOK, entry)
}

// CreateOperation handles POST requests recording a buy or sell.
//
// Endpoint: POST /api/operation
// Request Body: LedgerEntryRequest
// Response: 201 Created with LedgerEntry
// Error: 400 Bad Request if validation fails, the account is a root account,
// or a sell exceeds the holding at its date
// Error: 404 Not Found if the account or fund does not exist
func (h *OperationHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.LedgerEntryRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledgerService.CreateEntry(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create operation")
		return
	}

	response.RespondJSON(w, http.StatusCreated, entry)
}

// UpdateOperation handles PUT requests replacing a ledger entry.
//
// Endpoint: PUT /api/operation/{uuid}
// Request Body: LedgerEntryRequest
// Response: 200 OK with LedgerEntry
// Error: 404 Not Found if the entry does not exist
func (h *OperationHandler) UpdateOperation(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.LedgerEntryRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledgerService.ReplaceEntry(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to update operation")
		return
	}

	response.RespondJSON(w, http.StatusOK, entry)
}

// DeleteOperation handles DELETE requests removing a ledger entry.
//
// Endpoint: DELETE /api/operation/{uuid}
// Response: 204 No Content
// Error: 404 Not Found if the entry does not exist
func (h *OperationHandler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerService.DeleteEntry(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, err, "failed to delete operation")
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// BatchDeleteOperations handles POST requests removing several ledger entries at once.
//
// Endpoint: POST /api/operation/batch-delete
// Request Body: BatchDeleteRequest (ids)
// Response: 200 OK with BatchDeleteResult
// Error: 400 Bad Request if the list is empty or holds an invalid UUID
func (h *OperationHandler) BatchDeleteOperations(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.BatchDeleteRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.ledgerService.BatchDeleteEntries(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to delete operations")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
