// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/record"
	"github.com/tomtom215/vigil/internal/validation"
)

// maxLookupDays bounds the history of a single-account lookup.
const maxLookupDays = 90

// LookupAccount scores one account over the last ?days= days (default from
// configuration) and returns it with its flags and directory metadata.
func (h *Handler) LookupAccount(w http.ResponseWriter, r *http.Request) {
	name, ok := accountName(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}

	account, err := h.svc.LookupAccount(r.Context(), name, days).WaitContext(r.Context())
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, account)
}

// AccountLogins returns one account's parsed records over the last ?days=
// days without scoring them.
func (h *Handler) AccountLogins(w http.ResponseWriter, r *http.Request) {
	name, ok := accountName(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}

	logins, err := h.svc.MoreLogins(r.Context(), name, days).WaitContext(r.Context())
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	if logins == nil {
		logins = []record.LoginRecord{}
	}
	respondJSON(w, r, http.StatusOK, logins)
}

// AccountVPN returns one account's recent VPN sessions with correlation
// marks.
func (h *Handler) AccountVPN(w http.ResponseWriter, r *http.Request) {
	name, ok := accountName(w, r)
	if !ok {
		return
	}

	sessions, err := h.svc.VPNHistory(r.Context(), name).WaitContext(r.Context())
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []record.VpnRecord{}
	}
	respondJSON(w, r, http.StatusOK, sessions)
}

// MarkInvestigated excludes an account from scans for the next 24 hours.
func (h *Handler) MarkInvestigated(w http.ResponseWriter, r *http.Request) {
	h.setInvestigated(w, r, true)
}

// ClearInvestigated removes an account's investigated marker.
func (h *Handler) ClearInvestigated(w http.ResponseWriter, r *http.Request) {
	h.setInvestigated(w, r, false)
}

func (h *Handler) setInvestigated(w http.ResponseWriter, r *http.Request, mark bool) {
	name, ok := accountName(w, r)
	if !ok {
		return
	}
	h.svc.MarkInvestigated(r.Context(), name, mark)
	logging.Ctx(r.Context()).Info().Str("account", name).Bool("investigated", mark).Msg("Investigation marker updated")
	respondJSON(w, r, http.StatusOK, map[string]any{
		"account":      name,
		"investigated": h.svc.Investigated(r.Context(), name),
	})
}

// accountName reads and validates the {name} path parameter. Names are
// case-insensitive and stored lowercase.
func accountName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.ToLower(chi.URLParam(r, "name"))
	if verr := validation.ValidateVar("name", name, "account"); verr != nil {
		respondValidation(w, r, verr)
		return "", false
	}
	return name, true
}

func (h *Handler) daysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	days, ok := getIntParam(r, "days", h.lookupDays)
	if !ok {
		respondError(w, r, http.StatusBadRequest, codeValidation, "days must be an integer", nil)
		return 0, false
	}
	if verr := validation.ValidateVar("days", days, "min=1,max="+strconv.Itoa(maxLookupDays)); verr != nil {
		respondValidation(w, r, verr)
		return 0, false
	}
	return days, true
}
