// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package metrics defines the Prometheus instrumentation exported at
// /metrics. All collectors register with the default registry at init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Parsing
	RecordsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_records_parsed_total",
			Help: "Raw log lines parsed, by record kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: login, vpn; outcome: accepted, rejected
	)

	// Scoring pipeline
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_scan_duration_seconds",
			Help:    "Duration of complete scans in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_scan_errors_total",
			Help: "Total number of scans that failed to fetch records",
		},
	)

	PassOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_pass_outcomes_total",
			Help: "Accounts dropped or kept by each scoring pass",
		},
		[]string{"pass", "outcome"}, // pass: 1, 2, 3; outcome: dropped, kept
	)

	FlaggedAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_flagged_accounts",
			Help: "Accounts flagged by the most recent scan",
		},
	)

	ScanProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_scan_progress_ratio",
			Help: "Progress of the running scan between 0 and 1",
		},
	)

	// Fact cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cache_hits_total",
			Help: "Fact cache hits by fact kind",
		},
		[]string{"fact"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cache_misses_total",
			Help: "Fact cache misses by fact kind",
		},
		[]string{"fact"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cache_errors_total",
			Help: "Fact cache storage errors by operation",
		},
		[]string{"operation"},
	)

	CacheRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_cache_rebuilds_total",
			Help: "Times the cache file was discarded as unreadable or mismatched",
		},
	)

	// External sources
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_source_requests_total",
			Help: "Requests to external sources by source and result",
		},
		[]string{"source", "result"}, // result: success, failure, rejected, too_large
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_source_request_duration_seconds",
			Help:    "External source request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"source"},
	)

	FailedLookups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_failed_lookups",
			Help: "Addresses remembered as failed external lookups",
		},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSourceRequest records one call to an external source.
func RecordSourceRequest(source string, duration time.Duration, err error) {
	SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		SourceRequests.WithLabelValues(source, "failure").Inc()
		return
	}
	SourceRequests.WithLabelValues(source, "success").Inc()
}

// RecordCacheLookup records a fact cache hit or miss.
func RecordCacheLookup(fact string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(fact).Inc()
	} else {
		CacheMisses.WithLabelValues(fact).Inc()
	}
}

// RecordPass records how many accounts a scoring pass dropped and kept.
func RecordPass(pass int, dropped, kept int) {
	label := strconv.Itoa(pass)
	PassOutcomes.WithLabelValues(label, "dropped").Add(float64(dropped))
	PassOutcomes.WithLabelValues(label, "kept").Add(float64(kept))
}

// RecordScan records a finished scan.
func RecordScan(duration time.Duration, flagged int, err error) {
	if err != nil {
		ScanErrors.Inc()
		return
	}
	ScanDuration.Observe(duration.Seconds())
	FlaggedAccounts.Set(float64(flagged))
}

// circuitStateValue maps a breaker state name to the gauge encoding.
func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitTransition records a breaker state change.
func RecordCircuitTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(circuitStateValue(to))
}
