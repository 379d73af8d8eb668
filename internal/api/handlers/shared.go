// Package handlers adapts HTTP requests to the service layer.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/validation"
)

// maxBodyBytes caps request bodies. Broker feeds are the largest payload.
const maxBodyBytes = 10 << 20

// parseJSON decodes the request body into T, rejecting unknown fields.
func parseJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, errors.New("request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// parseBoolQuery reads an optional boolean query parameter. Missing means false.
func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return v, nil
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. Missing means nil.
func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := validation.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be in YYYY-MM-DD format", key)
	}
	return &d, nil
}

// respondServiceError maps a service error onto an HTTP status.
//
//   - field validation errors: 400 with the failing fields as details
//   - not found: 404
//   - duplicate account name, watchlist name or watchlist fund: 409
//   - other business rule violations: 400
//   - anything else: 500 with message
func respondServiceError(w http.ResponseWriter, err error, message string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
	case apperrors.IsNotFound(err):
		response.RespondError(w, http.StatusNotFound, notFoundMessage(err), err.Error())
	case errors.Is(err, apperrors.ErrDuplicateAccountName), errors.Is(err, apperrors.ErrDuplicateEntry),
		errors.Is(err, apperrors.ErrDuplicateWatchlistName), errors.Is(err, apperrors.ErrDuplicateWatchlistItem):
		response.RespondError(w, http.StatusConflict, message, err.Error())
	case apperrors.IsValidation(err):
		response.RespondError(w, http.StatusBadRequest, message, err.Error())
	default:
		response.RespondError(w, http.StatusInternalServerError, message, err.Error())
	}
}

// notFoundMessage returns the sentinel text of a not-found error.
func notFoundMessage(err error) string {
	for _, target := range []error{
		apperrors.ErrAccountNotFound,
		apperrors.ErrFundNotFound,
		apperrors.ErrLedgerEntryNotFound,
		apperrors.ErrPositionNotFound,
		apperrors.ErrDefaultAccountNotFound,
		apperrors.ErrWatchlistNotFound,
		apperrors.ErrWatchlistItemNotFound,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "not found"
}
