// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package metrics provides Prometheus instrumentation for the detection
// pipeline: scan ingestion, heuristic flags, alerting, geolocation
// resolution, and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan ingestion
	ScansRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_events_recorded_total",
			Help: "Total number of scan events persisted",
		},
	)

	ScansSuspicious = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_events_suspicious_total",
			Help: "Total number of scan events marked suspicious",
		},
	)

	ScanProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_processing_duration_seconds",
			Help:    "End-to-end duration of scan recording (geoip + scoring + persistence)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Heuristic flags
	FlagsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_flags_raised_total",
			Help: "Total flags raised, labelled by flag type",
		},
		[]string{"flag_type"},
	)

	// Alerts
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_alerts_created_total",
			Help: "Total security alerts created, labelled by type and severity",
		},
		[]string{"alert_type", "severity"},
	)

	AlertWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_alert_write_errors_total",
			Help: "Alert inserts that failed after a successful scan write",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_notifications_total",
			Help: "Notification attempts, labelled by notifier and outcome",
		},
		[]string{"notifier", "outcome"},
	)

	// Geolocation
	GeoIPLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoip_lookups_total",
			Help: "Geolocation lookups, labelled by source (cache, provider name, local, unknown)",
		},
		[]string{"source"},
	)

	GeoIPLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoip_lookup_duration_seconds",
			Help:    "Duration of geolocation resolution",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoip_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	RetentionEventsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_events_deleted_total",
			Help: "Scan events removed by the retention sweeper",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveDBQuery records a database query's duration and outcome.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveAPIRequest records one API request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
