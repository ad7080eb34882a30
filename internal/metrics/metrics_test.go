// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	hitsBefore := testutil.ToFloat64(CacheHits.WithLabelValues("test_fact"))
	missesBefore := testutil.ToFloat64(CacheMisses.WithLabelValues("test_fact"))

	RecordCacheLookup("test_fact", true)
	RecordCacheLookup("test_fact", true)
	RecordCacheLookup("test_fact", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_fact")) - hitsBefore; got != 2 {
		t.Errorf("hits delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_fact")) - missesBefore; got != 1 {
		t.Errorf("misses delta = %v, want 1", got)
	}
}

func TestRecordSourceRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(SourceRequests.WithLabelValues("test_source", "success"))
	failBefore := testutil.ToFloat64(SourceRequests.WithLabelValues("test_source", "failure"))

	RecordSourceRequest("test_source", 10*time.Millisecond, nil)
	RecordSourceRequest("test_source", 20*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(SourceRequests.WithLabelValues("test_source", "success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SourceRequests.WithLabelValues("test_source", "failure")) - failBefore; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}

func TestRecordPass(t *testing.T) {
	before := testutil.ToFloat64(PassOutcomes.WithLabelValues("2", "dropped"))
	RecordPass(2, 5, 3)
	if got := testutil.ToFloat64(PassOutcomes.WithLabelValues("2", "dropped")) - before; got != 5 {
		t.Errorf("dropped delta = %v, want 5", got)
	}
}

func TestRecordScan(t *testing.T) {
	errsBefore := testutil.ToFloat64(ScanErrors)

	RecordScan(time.Second, 7, nil)
	if got := testutil.ToFloat64(FlaggedAccounts); got != 7 {
		t.Errorf("flagged = %v, want 7", got)
	}

	RecordScan(time.Second, 0, errors.New("search down"))
	if got := testutil.ToFloat64(ScanErrors) - errsBefore; got != 1 {
		t.Errorf("scan errors delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(FlaggedAccounts); got != 7 {
		t.Errorf("failed scan should not reset flagged gauge, got %v", got)
	}
}

func TestCircuitStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := circuitStateValue(tt.state); got != tt.want {
			t.Errorf("circuitStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}

	RecordCircuitTransition("test_breaker", "closed", "open")
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test_breaker")); got != 2 {
		t.Errorf("breaker gauge = %v, want 2", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("active delta = %v, want 1", got)
	}
}
