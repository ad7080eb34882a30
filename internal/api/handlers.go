// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"time"

	"github.com/tomtom215/vigil/internal/archive"
	"github.com/tomtom215/vigil/internal/triage"
)

// ScanArchive reads completed scans. *archive.Store implements it.
type ScanArchive interface {
	Load(ctx context.Context, id string) (archive.Scan, error)
	List(ctx context.Context) ([]archive.Summary, error)
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: liveness and readiness probes
//   - handlers_scans.go: starting scans and reading their results
//   - handlers_accounts.go: account lookups and investigation markers
//   - handlers_traces.go: IP reputation and network traces
//   - handlers_settings.go: scalar settings
type Handler struct {
	svc        *triage.Service
	archive    ScanArchive // optional
	lookupDays int
	startTime  time.Time
}

// defaultLookupDays is used when no lookup window is configured.
const defaultLookupDays = 3

// NewHandler creates the API handler. scans may be nil, in which case only
// scans still tracked in memory can be read back. lookupDays is the default
// window of account lookups.
func NewHandler(svc *triage.Service, scans ScanArchive, lookupDays int) *Handler {
	if lookupDays <= 0 {
		lookupDays = defaultLookupDays
	}
	return &Handler{
		svc:        svc,
		archive:    scans,
		lookupDays: lookupDays,
		startTime:  time.Now(),
	}
}
