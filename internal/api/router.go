// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handlers to chi routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to answer OPTIONS preflight requests.
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, codeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Route("/scans", func(r chi.Router) {
			r.Post("/", router.handler.StartScan)
			r.Get("/", router.handler.ListScans)
			r.Get("/{id}", router.handler.ScanStatus)
			r.Get("/{id}/accounts", router.handler.ScanAccounts)
		})

		r.Route("/accounts/{name}", func(r chi.Router) {
			r.Get("/", router.handler.LookupAccount)
			r.Get("/logins", router.handler.AccountLogins)
			r.Get("/vpn", router.handler.AccountVPN)
			r.Put("/investigated", router.handler.MarkInvestigated)
			r.Delete("/investigated", router.handler.ClearInvestigated)
		})

		r.Get("/ips/{ip}/threat", router.handler.IPThreat)
		r.Post("/traces", router.handler.StartTrace)

		r.Get("/settings/{key}", router.handler.GetSetting)
		r.Put("/settings/{key}", router.handler.PutSetting)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
