// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package sources holds the HTTP clients for Vigil's external collaborators.

Clients:
  - LogSearchClient: Splunk export searches returning raw record lines, plus
    the IP/MAC/account correlation searches used by traces
  - IPInfoClient: ipinfo.io address geolocation
  - IPDataClient: ipdata.co address reputation
  - DirectoryClient: account creation time and home address

Every client shares the same transport: a token bucket rate limiter
(golang.org/x/time/rate), a circuit breaker (sony/gobreaker) reporting to
the vigil_circuit_breaker_* metrics, and a bounded body read. Errors are
returned to the caller, which treats them as missing enrichment. A 404 is
ErrNotFound and does not count against the breaker.
*/
package sources
