// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into the chi route tree.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw}
}

// Setup builds the full route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SecurityHeaders())
		r.Use(RequestMetrics())

		// Scan ingestion is server-to-server traffic from the redirect
		// frontend; it gets its own permissive limiter.
		r.With(rt.middleware.RateLimitIngest()).Post("/scans", rt.handler.RecordScan)

		r.Group(func(r chi.Router) {
			r.Use(rt.middleware.RateLimit())

			r.Get("/dashboard", rt.handler.Dashboard)
			r.Get("/analytics/geographic", rt.handler.AnalyticsGeographic)

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", rt.handler.ListAlerts)
				r.Get("/{id}", rt.handler.GetAlert)
				r.Post("/{id}/resolve", rt.handler.ResolveAlert)
				r.Post("/{id}/unresolve", rt.handler.UnresolveAlert)
			})
		})
	})

	r.Get("/healthz", rt.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
