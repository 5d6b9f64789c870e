// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package config loads and validates the engine configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the detection engine.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	GeoIP     GeoIPConfig     `koanf:"geoip"`
	Detection DetectionConfig `koanf:"detection"`
	Notify    NotifyConfig    `koanf:"notify"`
	Retention RetentionConfig `koanf:"retention"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file path; ":memory:" for an in-memory store.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	// Threads limits DuckDB worker threads; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// GeoIPConfig configures geolocation resolution.
type GeoIPConfig struct {
	// LookupTimeout bounds one provider call. Resolution falls back to an
	// unknown location on timeout; it never blocks the scan path longer
	// than this.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`

	// MaxMind GeoLite2 web service credentials. When set, MaxMind is
	// preferred over the free ip-api.com fallback.
	MaxMindAccountID  string `koanf:"maxmind_account_id"`
	MaxMindLicenseKey string `koanf:"maxmind_license_key"`

	// IPAPIRequestsPerMinute caps calls to ip-api.com (free tier: 45/min).
	IPAPIRequestsPerMinute int `koanf:"ipapi_requests_per_minute" validate:"min=1"`
}

// DetectionConfig carries the scoring thresholds. The defaults mirror the
// values the product shipped with; several are deliberately sensitive
// (recall over precision) and are expected to be recalibrated against real
// traffic. Keep them overridable rather than hard-coded.
type DetectionConfig struct {
	// HistoryWindow is how far back scan history is pulled for scoring.
	HistoryWindow time.Duration `koanf:"history_window"`

	// SuspiciousThreshold is the minimum total score marking a scan
	// suspicious and eligible for an alert.
	SuspiciousThreshold int `koanf:"suspicious_threshold" validate:"min=1"`

	// MaxPlausibleSpeedKmH is the impossible-travel ceiling (commercial
	// flight speed).
	MaxPlausibleSpeedKmH float64 `koanf:"max_plausible_speed_kmh" validate:"gt=0"`

	// DistantKm / DistantWithinHours define the distant-locations check.
	DistantKm          float64       `koanf:"distant_km" validate:"gt=0"`
	DistantWithinHours float64       `koanf:"distant_within_hours" validate:"gt=0"`
	SameIPWindow       time.Duration `koanf:"same_ip_window"`
	BurstWindow        time.Duration `koanf:"burst_window"`

	// MinDistinctLocations triggers multiple_locations at this many
	// distinct (city, region, country) tuples in the window.
	MinDistinctLocations int `koanf:"min_distinct_locations" validate:"min=2"`

	// MaxLocationRepeats triggers repeated_location_scanning when a single
	// tuple recurs more than this many times.
	MaxLocationRepeats int `koanf:"max_location_repeats" validate:"min=1"`

	// MaxNightScans triggers unusual_hours when more than this many scans
	// in the window fall in the [02:00, 06:00) local band.
	MaxNightScans int `koanf:"max_night_scans" validate:"min=0"`
}

// NotifyConfig configures the webhook notifier invoked on high-severity
// alerts.
type NotifyConfig struct {
	Enabled     bool              `koanf:"enabled"`
	WebhookURL  string            `koanf:"webhook_url" validate:"omitempty,url"`
	Headers     map[string]string `koanf:"headers"`
	RateLimitMs int               `koanf:"rate_limit_ms" validate:"min=0"`
}

// RetentionConfig configures the scan-event retention sweeper.
type RetentionConfig struct {
	// MaxEventAge is the retention horizon for scan events; 0 disables the
	// sweeper entirely. Alerts are never swept.
	MaxEventAge   time.Duration `koanf:"max_event_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/qrverify.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		GeoIP: GeoIPConfig{
			LookupTimeout:          5 * time.Second,
			IPAPIRequestsPerMinute: 45,
		},
		Detection: DetectionConfig{
			HistoryWindow:        7 * 24 * time.Hour,
			SuspiciousThreshold:  10,
			MaxPlausibleSpeedKmH: 900,
			DistantKm:            500,
			DistantWithinHours:   24,
			SameIPWindow:         time.Hour,
			BurstWindow:          5 * time.Minute,
			MinDistinctLocations: 5,
			MaxLocationRepeats:   10,
			MaxNightScans:        3,
		},
		Notify: NotifyConfig{
			Enabled:     false,
			RateLimitMs: 500,
		},
		Retention: RetentionConfig{
			MaxEventAge:   365 * 24 * time.Hour,
			SweepInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GeoIP.LookupTimeout <= 0 {
		return fmt.Errorf("geoip.lookup_timeout must be positive")
	}
	if c.Detection.HistoryWindow <= 0 {
		return fmt.Errorf("detection.history_window must be positive")
	}
	if c.Detection.SameIPWindow > c.Detection.HistoryWindow {
		return fmt.Errorf("detection.same_ip_window cannot exceed history_window")
	}
	if c.Detection.BurstWindow > c.Detection.SameIPWindow {
		return fmt.Errorf("detection.burst_window cannot exceed same_ip_window")
	}
	if c.Retention.MaxEventAge > 0 && c.Retention.MaxEventAge < c.Detection.HistoryWindow {
		return fmt.Errorf("retention.max_event_age cannot be shorter than detection.history_window")
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled is true")
	}

	return nil
}
