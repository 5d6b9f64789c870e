// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Command server runs the QR-Verify scan verification backend: scan
// ingestion with fraud scoring, alerting, and the analytics API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/api"
	"github.com/Danproc/QR-Verify-sub002/internal/config"
	"github.com/Danproc/QR-Verify-sub002/internal/detection"
	"github.com/Danproc/QR-Verify-sub002/internal/geoip"
	"github.com/Danproc/QR-Verify-sub002/internal/logging"
	"github.com/Danproc/QR-Verify-sub002/internal/store"
	"github.com/Danproc/QR-Verify-sub002/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting QR-Verify server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := store.Open(openCtx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	// Geolocation: MaxMind when credentials are configured, ip-api.com
	// as the free fallback. The resolver tries providers in order.
	providers := []geoip.Provider{
		geoip.NewMaxMindProvider(cfg.GeoIP.MaxMindAccountID, cfg.GeoIP.MaxMindLicenseKey),
		geoip.NewIPAPIProvider(cfg.GeoIP.IPAPIRequestsPerMinute),
	}
	resolver := geoip.NewResolver(st, cfg.GeoIP.LookupTimeout, providers...)

	scorer := detection.NewScorer(detection.Thresholds{
		HistoryWindow:        cfg.Detection.HistoryWindow,
		SuspiciousThreshold:  cfg.Detection.SuspiciousThreshold,
		MaxPlausibleSpeedKmH: cfg.Detection.MaxPlausibleSpeedKmH,
		DistantKm:            cfg.Detection.DistantKm,
		DistantWithinHours:   cfg.Detection.DistantWithinHours,
		SameIPWindow:         cfg.Detection.SameIPWindow,
		BurstWindow:          cfg.Detection.BurstWindow,
		MinDistinctLocations: cfg.Detection.MinDistinctLocations,
		MaxLocationRepeats:   cfg.Detection.MaxLocationRepeats,
		MaxNightScans:        cfg.Detection.MaxNightScans,
	})

	webhook := detection.NewWebhookNotifier(detection.WebhookConfig{
		WebhookURL:  cfg.Notify.WebhookURL,
		Headers:     cfg.Notify.Headers,
		Enabled:     cfg.Notify.Enabled,
		RateLimitMs: cfg.Notify.RateLimitMs,
	})
	alerts := detection.NewAlertManager(st, webhook)

	engine := detection.NewEngine(st, resolver, scorer, alerts)

	handler := api.NewHandler(engine, st)
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}))

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("build supervisor tree: %w", err)
	}

	tree.AddAPIService(api.NewServer(cfg.Server, router.Setup()))
	tree.AddJobService(store.NewRetentionSweeper(st, cfg.Retention))

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop before shutdown timeout")
		}
	}

	logging.Info().Msg("Server stopped")
	return nil
}
