// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/sources"
	"github.com/tomtom215/vigil/internal/triage"
	"github.com/tomtom215/vigil/internal/validation"
)

// startScanRequest selects the accounts active in the last AccountHours and
// scores them against HistoryHours of records.
type startScanRequest struct {
	AccountHours int `json:"account_hours" validate:"required,min=1,max=720"`
	HistoryHours int `json:"history_hours" validate:"required,gtefield=AccountHours,max=2160"`
}

// scanStatus describes a tracked or archived scan.
type scanStatus struct {
	ID           string           `json:"id"`
	Done         bool             `json:"done"`
	Progress     float64          `json:"progress"`
	Count        int              `json:"count"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	AccountRange sources.TimeSpan `json:"account_range"`
	HistoryRange sources.TimeSpan `json:"history_range"`
	Archived     bool             `json:"archived"`
}

func statusOfTask(st *triage.ScanTask) scanStatus {
	s := scanStatus{
		ID:           st.ID(),
		Done:         st.Done(),
		Progress:     st.Progress(),
		StartedAt:    st.Started(),
		AccountRange: st.AccountRange,
		HistoryRange: st.HistoryRange,
	}
	if finished, ok := st.Finished(); ok {
		s.FinishedAt = &finished
		accounts, err := st.Wait()
		if err != nil {
			s.Error = err.Error()
		} else {
			s.Count = len(accounts)
		}
	}
	return s
}

func statusOfSummary(sum archive.Summary) scanStatus {
	finished := sum.FinishedAt
	return scanStatus{
		ID:           sum.ID,
		Done:         true,
		Progress:     1,
		Count:        sum.Flagged,
		StartedAt:    sum.StartedAt,
		FinishedAt:   &finished,
		AccountRange: sum.AccountRange,
		HistoryRange: sum.HistoryRange,
		Archived:     true,
	}
}

// StartScan starts a scan and answers 202 with its ID. The scan keeps
// running after the request ends.
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	now := time.Now()
	accountRange := sources.Last(time.Duration(req.AccountHours)*time.Hour, now)
	historyRange := sources.Last(time.Duration(req.HistoryHours)*time.Hour, now)

	st := h.svc.RunScan(context.WithoutCancel(r.Context()), accountRange, historyRange)
	logging.Ctx(r.Context()).Info().
		Str("scan_id", st.ID()).
		Int("account_hours", req.AccountHours).
		Int("history_hours", req.HistoryHours).
		Msg("Scan requested")

	w.Header().Set("Location", "/api/v1/scans/"+st.ID())
	respondJSON(w, r, http.StatusAccepted, map[string]string{"id": st.ID()})
}

// ListScans lists archived scans, newest first.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondJSON(w, r, http.StatusOK, []scanStatus{})
		return
	}
	summaries, err := h.archive.List(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to list scans", err)
		return
	}
	out := make([]scanStatus, len(summaries))
	for i, sum := range summaries {
		out[i] = statusOfSummary(sum)
	}
	respondJSON(w, r, http.StatusOK, out)
}

// ScanStatus reports a scan's progress, falling back to the archive for
// scans no longer tracked in memory.
func (h *Handler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}
	if st, ok := h.svc.Scan(id); ok {
		respondJSON(w, r, http.StatusOK, statusOfTask(st))
		return
	}
	scan, ok := h.loadArchived(w, r, id)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, statusOfSummary(scan.Summary()))
}

// ScanAccounts returns the ranked accounts of a finished scan.
func (h *Handler) ScanAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}

	var accounts []*detection.Account
	if st, tracked := h.svc.Scan(id); tracked {
		if !st.Done() {
			respondAPIError(w, r, http.StatusConflict, &APIError{
				Code:    codeScanRunning,
				Message: "Scan is still running",
				Details: map[string]any{"progress": st.Progress()},
			})
			return
		}
		var err error
		if accounts, err = st.Wait(); err != nil {
			respondError(w, r, http.StatusBadGateway, "SCAN_FAILED", "Scan failed", err)
			return
		}
	} else {
		scan, ok := h.loadArchived(w, r, id)
		if !ok {
			return
		}
		accounts = scan.Accounts
	}

	if accounts == nil {
		accounts = []*detection.Account{}
	}
	respondJSON(w, r, http.StatusOK, accounts)
}

func scanID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if verr := validation.ValidateVar("id", id, "uuid"); verr != nil {
		respondValidation(w, r, verr)
		return "", false
	}
	return id, true
}

// loadArchived loads a scan from the archive, writing a 404 when it is
// missing or there is no archive.
func (h *Handler) loadArchived(w http.ResponseWriter, r *http.Request, id string) (archive.Scan, bool) {
	if h.archive == nil {
		respondError(w, r, http.StatusNotFound, codeNotFound, "Scan not found", nil)
		return archive.Scan{}, false
	}
	scan, err := h.archive.Load(r.Context(), id)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		respondError(w, r, http.StatusNotFound, codeNotFound, "Scan not found", nil)
		return archive.Scan{}, false
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to load scan", err)
		return archive.Scan{}, false
	}
	return scan, true
}
