package handlers

import (
	"errors"
	"net/http"

	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/service"
)

// ImportHandler handles HTTP requests for broker imports.
type ImportHandler struct {
	importService *service.ImportService
	broker        importer.Source
}

// NewImportHandler creates a new ImportHandler. broker may be nil when no
// broker API is configured; pull imports then answer 503.
func NewImportHandler(importService *service.ImportService, broker importer.Source) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		broker:        broker,
	}
}

// ImportFeed handles POST requests importing an uploaded broker feed.
//
// Endpoint: POST /api/import?overwrite=true
// Request Body: ImportRequest (ownerId, accounts)
// Response: 200 OK with ImportResult
// Error: 400 Bad Request if the body or feed is malformed
func (h *ImportHandler) ImportFeed(w http.ResponseWriter, r *http.Request) {
	overwrite, err := parseBoolQuery(r, "overwrite")
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid overwrite parameter", err.Error())
		return
	}

	req, err := parseJSON[request.ImportRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Feed.Validate(); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid import feed", err.Error())
		return
	}

	result, err := h.importService.Import(r.Context(), req.OwnerID, &req.Feed, overwrite)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToImport.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// ImportBroker handles POST requests pulling holdings from the configured broker API.
//
// Endpoint: POST /api/import/broker?owner={ownerId}&overwrite=true
// Response: 200 OK with ImportResult
// Error: 502 Bad Gateway if the broker cannot be read
// Error: 503 Service Unavailable if no broker API is configured
func (h *ImportHandler) ImportBroker(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		response.RespondError(w, http.StatusServiceUnavailable, "broker import is not configured", "")
		return
	}

	overwrite, err := parseBoolQuery(r, "overwrite")
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid overwrite parameter", err.Error())
		return
	}

	result, err := h.importService.Import(r.Context(), r.URL.Query().Get("owner"), h.broker, overwrite)
	if err != nil {
		if errors.Is(err, apperrors.ErrFailedToImport) {
			response.RespondError(w, http.StatusBadGateway, apperrors.ErrFailedToImport.Error(), err.Error())
			return
		}
		respondServiceError(w, err, apperrors.ErrFailedToImport.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
