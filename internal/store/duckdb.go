// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package store is the DuckDB persistence layer: scan events, security
// alerts, the geolocation cache, and the analytics read models built
// over them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/Danproc/QR-Verify-sub002/internal/config"
	"github.com/Danproc/QR-Verify-sub002/internal/logging"
)

// Store wraps the DuckDB connection. All queries go through one pool;
// DuckDB serializes writers internally.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and initializes the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads)
	if cfg.MaxMemory != "" {
		connStr += "&max_memory=" + cfg.MaxMemory
	}

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("Database opened")
	return s, nil
}

// NewWithDB wraps an existing connection. Used by tests with an
// in-memory database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close checkpoints and closes the database.
func (s *Store) Close() error {
	if _, err := s.db.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint before close")
	}
	return s.db.Close()
}

// InitSchema creates tables and indexes if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scan_events (
			id TEXT PRIMARY KEY,
			code_key TEXT NOT NULL,
			strain_ref TEXT,
			owner_ref TEXT,
			client_ip TEXT NOT NULL,
			user_agent TEXT,
			referer TEXT,
			country TEXT,
			region TEXT,
			city TEXT,
			latitude DOUBLE DEFAULT 0,
			longitude DOUBLE DEFAULT 0,
			timezone TEXT,
			isp TEXT,
			risk_score INTEGER NOT NULL DEFAULT 0,
			flags JSON,
			is_suspicious BOOLEAN NOT NULL DEFAULT false,
			scanned_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS security_alerts (
			id TEXT PRIMARY KEY,
			code_key TEXT NOT NULL,
			batch_label TEXT,
			owner_ref TEXT,
			strain_ref TEXT,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			flags JSON,
			location_summary TEXT,
			resolved BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS geolocations (
			ip_address TEXT PRIMARY KEY,
			country TEXT,
			region TEXT,
			city TEXT,
			latitude DOUBLE DEFAULT 0,
			longitude DOUBLE DEFAULT 0,
			timezone TEXT,
			isp TEXT,
			last_updated TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_scans_code_time ON scan_events(code_key, scanned_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scan_events(scanned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_owner ON scan_events(owner_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_suspicious ON scan_events(is_suspicious)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_code_key ON security_alerts(code_key)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_owner ON security_alerts(owner_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON security_alerts(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON security_alerts(resolved)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON security_alerts(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	// Checkpoint after DDL to flush the WAL; prevents replay issues on
	// restart.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return nil
}

// buildPlaceholders creates a comma-separated string of ? placeholders.
func buildPlaceholders(count int) string {
	if count == 0 {
		return ""
	}
	placeholders := "?"
	for i := 1; i < count; i++ {
		placeholders += ", ?"
	}
	return placeholders
}
