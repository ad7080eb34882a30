// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/vigil/internal/sources"
	"github.com/tomtom215/vigil/internal/triage"
	"github.com/tomtom215/vigil/internal/validation"
)

// Error codes shared by the handlers.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeSearch      = "SEARCH_FAILED"
	codeUnavailable = "SERVICE_UNAVAILABLE"
	codeScanRunning = "SCAN_RUNNING"
	codeTimeout     = "REQUEST_TIMEOUT"
	codeInternal    = "INTERNAL_ERROR"
)

// respondTaskError maps an error from a triage task to a response.
func respondTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, triage.ErrInvalidAccount),
		errors.Is(err, triage.ErrInvalidDays),
		errors.Is(err, triage.ErrInvalidLookup):
		respondError(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
	case errors.Is(err, triage.ErrNoTracer):
		respondError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Network tracing is not configured", nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, codeTimeout, "Request timed out", err)
	case errors.Is(err, context.Canceled):
		// The client is gone; nobody reads this.
		respondError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Request cancelled", nil)
	case errors.Is(err, sources.ErrCircuitOpen):
		respondError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Log search is temporarily unavailable", err)
	default:
		respondError(w, r, http.StatusBadGateway, codeSearch, "Log search failed", err)
	}
}

// respondValidation sends a VALIDATION_ERROR for a failed validation.
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondAPIError(w, r, http.StatusBadRequest, &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}
