// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// maxErrorBodySize limits how much of an error response is kept for the
// error message.
const maxErrorBodySize = 4 * 1024

var (
	// ErrNotFound is returned when the source has no answer for the key.
	ErrNotFound = errors.New("not found")

	// ErrNoMatch is returned by correlation searches whose results contain
	// nothing usable.
	ErrNoMatch = errors.New("no match")

	// ErrCircuitOpen is returned while a source's circuit breaker rejects
	// requests.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNotConfigured is returned by clients without an endpoint.
	ErrNotConfigured = errors.New("source not configured")

	// ErrResponseTooLarge is returned when a response that must be read in
	// full exceeds the configured size limit.
	ErrResponseTooLarge = errors.New("response exceeds size limit")
)

// StatusError is an unexpected HTTP status from a source.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.Code, e.Body)
}

// endpoint is the transport shared by every source client: a rate limit, a
// circuit breaker and a bounded body read.
type endpoint struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func newEndpoint(name string, timeout time.Duration, perSecond float64) *endpoint {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &endpoint{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		cb:      newBreaker(name),
	}
}

// newBreaker opens after 60% failures over at least 10 requests in a minute
// and probes again after two minutes. Missing keys are not failures.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Str("source", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.RecordCircuitTransition(name, from.String(), to.String())
		},
	})
}

// do sends req through the limiter and breaker and returns at most
// maxBytes+1 bytes of a 200 response body, so callers can tell a body that
// fits from one that was cut off.
func (e *endpoint) do(ctx context.Context, req *http.Request, maxBytes int64) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", e.name, err)
	}

	start := time.Now()
	body, err := e.cb.Execute(func() ([]byte, error) {
		return e.roundTrip(req, maxBytes)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.SourceRequests.WithLabelValues(e.name, "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", e.name, ErrCircuitOpen)
	}
	metrics.RecordSourceRequest(e.name, time.Since(start), err)
	return body, err
}

func (e *endpoint) roundTrip(req *http.Request, maxBytes int64) ([]byte, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", e.name, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Str("source", e.name).Msg("Failed to close response body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", e.name, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &StatusError{Source: e.name, Code: resp.StatusCode, Body: string(msg)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", e.name, err)
	}
	return body, nil
}
