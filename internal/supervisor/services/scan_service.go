// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/vigil/internal/logging"
)

// ScanFunc runs one scan to completion and reports how many accounts it
// flagged.
type ScanFunc func(ctx context.Context) (flagged int, err error)

// ScheduledScanService runs a scan every interval. Scans never overlap:
// ticks that arrive while a scan is running are dropped.
type ScheduledScanService struct {
	scan     ScanFunc
	interval time.Duration
	name     string
}

// NewScheduledScanService creates the scheduler. A non-positive interval
// disables it.
func NewScheduledScanService(scan ScanFunc, interval time.Duration) *ScheduledScanService {
	return &ScheduledScanService{
		scan:     scan,
		interval: interval,
		name:     "scheduled-scan",
	}
}

// Serve implements suture.Service. A failed scan is logged and the next one
// runs on schedule; only shutdown ends Serve.
func (s *ScheduledScanService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		logging.Info().Msg("Scheduled scans disabled")
		return suture.ErrDoNotRestart
	}

	logging.Info().Dur("interval", s.interval).Msg("Scheduled scans enabled")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ScheduledScanService) runOnce(ctx context.Context) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	start := time.Now()

	flagged, err := s.scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Scheduled scan failed")
		return
	}
	logging.Ctx(ctx).Info().Int("flagged", flagged).Dur("elapsed", time.Since(start)).Msg("Scheduled scan finished")
}

// String names the service in supervisor logs.
func (s *ScheduledScanService) String() string {
	return s.name
}
