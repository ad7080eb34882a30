// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package sources

import (
	"errors"
	"fmt"
	"time"
)

// searchTimeLayout is how the log search API expects earliest and latest
// bounds, in the server's local time.
const searchTimeLayout = "2006-01-02T15:04:05"

// TimeSpan is a closed interval of wall-clock time.
type TimeSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Last returns the span of length d ending at now.
func Last(d time.Duration, now time.Time) TimeSpan {
	return TimeSpan{Start: now.Add(-d), End: now}
}

// Validate reports an inverted or empty span.
func (s TimeSpan) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return errors.New("time span bounds must be set")
	}
	if s.End.Before(s.Start) {
		return fmt.Errorf("time span ends (%s) before it starts (%s)", s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	return nil
}

func (s TimeSpan) earliest() string { return s.Start.Local().Format(searchTimeLayout) }
func (s TimeSpan) latest() string   { return s.End.Local().Format(searchTimeLayout) }
