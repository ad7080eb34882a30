// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package api provides the HTTP REST API for Vigil.

Every endpoint lives under /api/v1 and answers with the standard envelope:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "..."}
	}

Errors use status "error" and an error object with a machine-readable code
such as VALIDATION_ERROR, NOT_FOUND or SEARCH_FAILED.

Endpoints:

	POST   /api/v1/scans                       start a scan, 202 with its id
	GET    /api/v1/scans                       archived scan summaries
	GET    /api/v1/scans/{id}                  scan status
	GET    /api/v1/scans/{id}/accounts         flagged accounts of a finished scan
	GET    /api/v1/accounts/{name}?days=       score one account
	GET    /api/v1/accounts/{name}/logins?days= raw records of one account
	GET    /api/v1/accounts/{name}/vpn         correlated VPN sessions
	PUT    /api/v1/accounts/{name}/investigated
	DELETE /api/v1/accounts/{name}/investigated
	GET    /api/v1/ips/{ip}/threat             IP reputation
	POST   /api/v1/traces                      correlate a MAC, IP or account
	GET    /api/v1/settings/{key}
	PUT    /api/v1/settings/{key}
	GET    /api/v1/health/live
	GET    /api/v1/health/ready
	GET    /metrics                            Prometheus metrics

Middleware runs in this order: request ID and logging context, real IP,
panic recovery, CORS, then per-group rate limiting (go-chi/httprate),
security headers and Prometheus request metrics.

Scans outlive the request that starts them. Lookups and traces are bounded
by the request context and abandoned when the client goes away.
*/
package api
