// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
)

// MiddlewareConfig holds CORS and rate-limit settings for the router.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	RateLimitDisabled  bool
}

// DefaultMiddlewareConfig returns secure defaults. CORS origins start
// empty and must be configured explicitly.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// Middleware provides chi-compatible middleware factories built on the
// go-chi/cors and go-chi/httprate implementations.
type Middleware struct {
	config *MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory.
func NewMiddleware(config *MiddlewareConfig) *Middleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	return &Middleware{config: config, cors: corsHandler}
}

// CORS returns the CORS middleware. It must be global so OPTIONS
// preflight requests are handled on every route.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByRealIP(m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// RateLimitIngest returns a more permissive limiter for the scan
// ingestion endpoint, which is called server-to-server by the redirect
// frontend on every verification.
func (m *Middleware) RateLimitIngest() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByRealIP(m.config.RateLimitRequests*10, m.config.RateLimitWindow)
}

// SecurityHeaders adds standard security headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMetrics records request count and duration per route pattern.
func RequestMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}
			metrics.ObserveAPIRequest(r.Method, endpoint, ww.statusCode, time.Since(start))
		})
	}
}

// statusResponseWriter wraps http.ResponseWriter to capture the status
// code.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
