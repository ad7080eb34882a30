// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package services adapts Vigil's long-running components to suture.Service.
//
// Each wrapper has a context-aware Serve that returns ctx.Err() on shutdown
// and a String that names it in supervisor logs:
//
//   - HTTPServerService runs an *http.Server and shuts it down gracefully
//   - ScheduledScanService runs a scan every interval
package services
