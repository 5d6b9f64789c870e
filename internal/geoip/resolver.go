// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package geoip

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Danproc/QR-Verify-sub002/internal/logging"
	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// Cache is the persistence interface for geolocation caching. Both hits
// and failed lookups are cached; failed lookups carry the Unknown country
// so dead IPs are not retried on every scan.
type Cache interface {
	GetGeolocation(ctx context.Context, ipAddress string) (*models.Geolocation, error)
	UpsertGeolocation(ctx context.Context, geo *models.Geolocation) error
}

// Resolver resolves client IPs to locations with caching, provider
// fallback, a bounded per-call timeout, and a circuit breaker around the
// external services.
//
// Resolve never returns an error for lookup failures: the contract with
// the ingestion path is that geolocation degrades to "no geographic
// signal", it does not block scan recording.
type Resolver struct {
	providers     []Provider
	cache         Cache
	breaker       *gobreaker.CircuitBreaker[*models.Geolocation]
	lookupTimeout time.Duration
}

// NewResolver creates a resolver trying providers in order. lookupTimeout
// bounds a single external resolution attempt (design target <=5s).
func NewResolver(cache Cache, lookupTimeout time.Duration, providers ...Provider) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}

	const breakerName = "geoip-providers"
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.Geolocation](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open after a 60% failure rate over at least 10 requests.
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geoip circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Resolver{
		providers:     providers,
		cache:         cache,
		breaker:       cb,
		lookupTimeout: lookupTimeout,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Resolve returns the best-effort location for an IP. The three outcomes
// are deterministic:
//
//   - private/loopback IP: synthetic "Local Development" location
//   - successful lookup (cache or provider): populated fields
//   - every source failed: "Unknown" location, nil error
func (r *Resolver) Resolve(ctx context.Context, ipAddress string) *models.Geolocation {
	start := time.Now()
	defer func() {
		metrics.GeoIPLookupDuration.Observe(time.Since(start).Seconds())
	}()

	ipAddress = NormalizeIP(ipAddress)

	if IsPrivateIP(ipAddress) {
		metrics.GeoIPLookups.WithLabelValues("local").Inc()
		geo := NewLocalGeolocation(ipAddress)
		r.cacheResult(ctx, geo)
		return geo
	}

	if geo := r.tryCache(ctx, ipAddress); geo != nil {
		metrics.GeoIPLookups.WithLabelValues("cache").Inc()
		return geo
	}

	geo, err := r.tryProviders(ctx, ipAddress)
	if err != nil {
		logging.Warn().Str("ip", ipAddress).Err(err).Msg("geolocation failed, using unknown location")
		metrics.GeoIPLookups.WithLabelValues("unknown").Inc()
		geo = NewUnknownGeolocation(ipAddress)
	}

	r.cacheResult(ctx, geo)
	return geo
}

func (r *Resolver) tryCache(ctx context.Context, ipAddress string) *models.Geolocation {
	if r.cache == nil {
		return nil
	}
	geo, err := r.cache.GetGeolocation(ctx, ipAddress)
	if err != nil {
		logging.Warn().Str("ip", ipAddress).Err(err).Msg("geolocation cache read failed")
		return nil
	}
	return geo
}

func (r *Resolver) tryProviders(parent context.Context, ipAddress string) (*models.Geolocation, error) {
	return r.breaker.Execute(func() (*models.Geolocation, error) {
		ctx, cancel := context.WithTimeout(parent, r.lookupTimeout)
		defer cancel()

		var lastErr error
		for _, provider := range r.providers {
			if !provider.IsAvailable() {
				continue
			}

			geo, err := provider.Lookup(ctx, ipAddress)
			if err != nil {
				logging.Debug().Str("provider", provider.Name()).Str("ip", ipAddress).Err(err).Msg("geoip provider failed")
				lastErr = err
				continue
			}

			metrics.GeoIPLookups.WithLabelValues(provider.Name()).Inc()
			return geo, nil
		}

		if lastErr != nil {
			return nil, fmt.Errorf("all geoip providers failed for %s: %w", ipAddress, lastErr)
		}
		return nil, fmt.Errorf("no geoip providers available")
	})
}

func (r *Resolver) cacheResult(ctx context.Context, geo *models.Geolocation) {
	if r.cache == nil {
		return
	}
	if err := r.cache.UpsertGeolocation(ctx, geo); err != nil {
		logging.Warn().Str("ip", geo.IPAddress).Err(err).Msg("failed to cache geolocation")
	}
}
