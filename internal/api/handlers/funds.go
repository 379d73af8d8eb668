package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/service"
)

// FundHandler handles HTTP requests for fund endpoints.
type FundHandler struct {
	fundService *service.FundService
}

// NewFundHandler creates a new FundHandler with the provided service dependency.
func NewFundHandler(fundService *service.FundService) *FundHandler {
	return &FundHandler{
		fundService: fundService,
	}
}

// ListFunds handles GET requests for every fund.
//
// Endpoint: GET /api/fund
// Response: 200 OK with array of Fund
func (h *FundHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.fundService.ListFunds(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to retrieve funds")
		return
	}

	response.RespondJSON(w, http.StatusOK, funds)
}

// GetFund handles GET requests for a single fund.
//
// Endpoint: GET /api/fund/{uuid}
// Response: 200 OK with Fund
// Error: 404 Not Found if the fund does not exist
func (h *FundHandler) GetFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundService.GetFund(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve fund")
		return
	}

	response.RespondJSON(w, http.StatusOK, fund)
}

// GetOrCreateFund handles POST requests resolving a fund by code.
//
// Endpoint: POST /api/fund
// Request Body: GetOrCreateFundRequest (code, name, type)
// Response: 201 Created with Fund when the fund is new, 200 OK when it already existed
// Error: 400 Bad Request if validation fails
func (h *FundHandler) GetOrCreateFund(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.GetOrCreateFundRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	fund, created, err := h.fundService.GetOrCreateFund(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create fund")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.RespondJSON(w, status, fund)
}

// UpdateNav handles PUT requests recording a confirmed NAV.
//
// Endpoint: PUT /api/fund/{uuid}/nav
// Request Body: UpdateNavRequest (nav, date)
// Response: 200 OK with Fund
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if the fund does not exist
func (h *FundHandler) UpdateNav(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateNavRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	fund, err := h.fundService.UpdateNav(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to update fund nav")
		return
	}

	response.RespondJSON(w, http.StatusOK, fund)
}

// UpdateEstimate handles PUT requests caching an intraday estimate.
//
// Endpoint: PUT /api/fund/{uuid}/estimate
// Request Body: UpdateEstimateRequest (nav, growth, time, optional source)
// Response: 200 OK with Fund
func (h *FundHandler) UpdateEstimate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateEstimateRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	fund, err := h.fundService.UpdateEstimate(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to update fund estimate")
		return
	}

	response.RespondJSON(w, http.StatusOK, fund)
}

// ListNavHistory handles GET requests for a fund's published NAVs.
//
// Endpoint: GET /api/fund/{uuid}/nav-history?start=YYYY-MM-DD&end=YYYY-MM-DD
// Response: 200 OK with array of NavHistory, newest first
// Error: 400 Bad Request if a date bound is malformed
// Error: 404 Not Found if the fund does not exist
func (h *FundHandler) ListNavHistory(w http.ResponseWriter, r *http.Request) {
	var filter model.NavHistoryFilter
	var err error
	if filter.Start, err = parseDateQuery(r, "start"); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid start parameter", err.Error())
		return
	}
	if filter.End, err = parseDateQuery(r, "end"); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid end parameter", err.Error())
		return
	}

	navs, err := h.fundService.ListNavHistory(r.Context(), chi.URLParam(r, "uuid"), filter)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve nav history")
		return
	}

	response.RespondJSON(w, http.StatusOK, navs)
}

// ImportNavHistory handles POST requests uploading published NAVs.
//
// Endpoint: POST /api/fund/{uuid}/nav-history
// Request Body: ImportNavHistoryRequest (items)
// Response: 200 OK with NavHistoryImportResult
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if the fund does not exist
func (h *FundHandler) ImportNavHistory(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ImportNavHistoryRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.fundService.ImportNavHistory(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, err, "failed to import nav history")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// GetAccuracy handles GET requests for a fund's estimate accuracy.
//
// Endpoint: GET /api/fund/{uuid}/accuracy
// Response: 200 OK with AccuracyReport
// Error: 404 Not Found if the fund does not exist
func (h *FundHandler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	report, err := h.fundService.GetAccuracy(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve estimate accuracy")
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// AuditAccuracy handles POST requests scoring one day's estimate snapshots.
//
// Endpoint: POST /api/fund/accuracy/audit?date=YYYY-MM-DD
// Response: 200 OK with AccuracyAuditResult. The date defaults to today (UTC).
// Error: 400 Bad Request if the date is malformed
func (h *FundHandler) AuditAccuracy(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date parameter", err.Error())
		return
	}
	day := time.Now().UTC()
	if date != nil {
		day = *date
	}

	result, err := h.fundService.AuditAccuracy(r.Context(), day)
	if err != nil {
		respondServiceError(w, err, "failed to audit estimate accuracy")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
