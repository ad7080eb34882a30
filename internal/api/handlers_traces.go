// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vigil/internal/factcache"
	"github.com/tomtom215/vigil/internal/validation"
)

type threatResponse struct {
	IP     string                `json:"ip"`
	Clean  bool                  `json:"clean"`
	Threat factcache.ThreatFlags `json:"threat"`
}

// IPThreat returns the reputation of an IPv4 address, from the fact cache
// when known and the threat provider otherwise.
func (h *Handler) IPThreat(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ip")
	if verr := validation.ValidateVar("ip", raw, "ipv4addr"); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	ip := netip.MustParseAddr(raw)

	flags, ok := h.svc.IPThreat(r.Context(), ip)
	if !ok {
		respondError(w, r, http.StatusNotFound, codeNotFound, "No reputation data for address", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, threatResponse{
		IP:     ip.String(),
		Clean:  flags.Clean(),
		Threat: flags,
	})
}

type traceRequest struct {
	Lookup string `json:"lookup" validate:"required,max=64"`
}

// StartTrace correlates a MAC address, IPv4 address or account name with
// the other two and returns the result once every round has finished.
func (h *Handler) StartTrace(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.svc.Trace(r.Context(), req.Lookup)
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	result, err := task.WaitContext(r.Context())
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}
