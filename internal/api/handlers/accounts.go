package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler with the provided service dependency.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// ListAccounts handles GET requests for the account tree.
//
// Endpoint: GET /api/account?owner={ownerId}
// Response: 200 OK with array of AccountNode (root accounts with their children)
// Error: 500 Internal Server Error if retrieval fails
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.ListAccounts(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve accounts")
		return
	}

	response.RespondJSON(w, http.StatusOK, accounts)
}

// GetDefaultAccount handles GET requests for an owner's default account.
//
// Endpoint: GET /api/account/default?owner={ownerId}
// Response: 200 OK with Account
// Error: 400 Bad Request if owner is missing
// Error: 404 Not Found if the owner has no default account
func (h *AccountHandler) GetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		response.RespondError(w, http.StatusBadRequest, "owner query parameter is required", "")
		return
	}

	account, err := h.accountService.GetDefaultAccount(r.Context(), owner)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve default account")
		return
	}

	response.RespondJSON(w, http.StatusOK, account)
}

// GetAccount handles GET requests for a single account.
//
// Endpoint: GET /api/account/{uuid}
// Response: 200 OK with Account
// Error: 404 Not Found if the account does not exist
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccount(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve account")
		return
	}

	response.RespondJSON(w, http.StatusOK, account)
}

// CreateAccount handles POST requests to create a root or child account.
//
// Endpoint: POST /api/account
// Request Body: CreateAccountRequest (ownerId, name, parentId, isDefault)
// Response: 201 Created with Account
// Error: 400 Bad Request if validation or a hierarchy rule fails
// Error: 409 Conflict if the name is taken
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateAccountRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create account")
		return
	}

	response.RespondJSON(w, http.StatusCreated, account)
}

// UpdateAccount handles PUT requests replacing an account's name, parent and default flag.
//
// Endpoint: PUT /api/account/{uuid}
// Request Body: UpdateAccountRequest
// Response: 200 OK with Account
// Error: 400 Bad Request if validation or a hierarchy rule fails
// Error: 404 Not Found if the account does not exist
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateAccountRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountService.UpdateAccount(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to update account")
		return
	}

	response.RespondJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE requests. Children, ledger entries and positions go with it.
//
// Endpoint: DELETE /api/account/{uuid}
// Response: 204 No Content
// Error: 400 Bad Request if the account is the owner's default
// Error: 404 Not Found if the account does not exist
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteAccount(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, err, "failed to delete account")
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}
