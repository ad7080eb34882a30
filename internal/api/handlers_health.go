// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probes. It succeeds whenever the process can
// serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probes and reports which optional features
// are available.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		respondError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Service not initialized", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"ready":         true,
		"directory":     h.svc.HasDirectory(),
		"archive":       h.archive != nil,
		"scan_progress": h.svc.Progress(),
	})
}
