// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

const scanEventColumns = `id, code_key, COALESCE(strain_ref, ''),
	COALESCE(owner_ref, ''), client_ip,
	COALESCE(user_agent, ''), COALESCE(referer, ''),
	COALESCE(country, ''), COALESCE(region, ''), COALESCE(city, ''),
	COALESCE(latitude, 0), COALESCE(longitude, 0),
	COALESCE(timezone, ''), COALESCE(isp, ''),
	risk_score, flags, is_suspicious, scanned_at`

// InsertScanEvent persists one scan event. Events are append-only.
func (s *Store) InsertScanEvent(ctx context.Context, event *models.ScanEvent) error {
	start := time.Now()

	// Cast flags to []byte: the driver rejects json.Marshaler values but
	// accepts raw bytes for JSON columns. A nil slice reaches DuckDB as
	// an empty string, which its JSON type rejects, so flag-less events
	// store an empty array.
	flags := []byte("[]")
	if len(event.Flags) > 0 {
		b, err := json.Marshal(event.Flags)
		if err != nil {
			return fmt.Errorf("failed to marshal flags: %w", err)
		}
		flags = b
	}

	query := `INSERT INTO scan_events
		(id, code_key, strain_ref, owner_ref, client_ip, user_agent, referer,
		 country, region, city, latitude, longitude, timezone, isp,
		 risk_score, flags, is_suspicious, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.CodeKey,
		event.StrainRef,
		event.OwnerRef,
		event.ClientIP,
		event.UserAgent,
		event.Referer,
		event.Location.Country,
		event.Location.Region,
		event.Location.City,
		event.Location.Latitude,
		event.Location.Longitude,
		event.Location.Timezone,
		event.Location.ISP,
		event.RiskScore,
		flags,
		event.IsSuspicious,
		event.ScannedAt,
	)
	metrics.ObserveDBQuery("insert", "scan_events", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert scan event: %w", err)
	}

	return nil
}

// EventsForCode returns scan events for one code since the given time,
// oldest first. The result never includes events newer than now; the
// caller compares the incoming scan against it.
func (s *Store) EventsForCode(ctx context.Context, codeKey string, since time.Time) ([]models.ScanEvent, error) {
	start := time.Now()

	query := `SELECT ` + scanEventColumns + `
		FROM scan_events
		WHERE code_key = ? AND scanned_at >= ?
		ORDER BY scanned_at ASC`

	rows, err := s.db.QueryContext(ctx, query, codeKey, since)
	metrics.ObserveDBQuery("select", "scan_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteEventsBefore removes scan events older than the cutoff and
// returns how many were deleted. Alerts are never deleted.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_events WHERE scanned_at < ?`, cutoff)
	metrics.ObserveDBQuery("delete", "scan_events", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired scan events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]models.ScanEvent, error) {
	var events []models.ScanEvent
	for rows.Next() {
		var ev models.ScanEvent
		if err := scanEventRow(rows, &ev); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEventRow(scanner interface {
	Scan(dest ...interface{}) error
}, ev *models.ScanEvent) error {
	var flags interface{} // DuckDB returns JSON columns as map/slice values

	if err := scanner.Scan(
		&ev.ID,
		&ev.CodeKey,
		&ev.StrainRef,
		&ev.OwnerRef,
		&ev.ClientIP,
		&ev.UserAgent,
		&ev.Referer,
		&ev.Location.Country,
		&ev.Location.Region,
		&ev.Location.City,
		&ev.Location.Latitude,
		&ev.Location.Longitude,
		&ev.Location.Timezone,
		&ev.Location.ISP,
		&ev.RiskScore,
		&flags,
		&ev.IsSuspicious,
		&ev.ScannedAt,
	); err != nil {
		return err
	}

	ev.Flags = decodeFlags(flags)
	return nil
}

// decodeFlags converts a JSON column value back into typed flags. The
// driver hands JSON back as a string, []byte or decoded value depending
// on version.
func decodeFlags(v interface{}) []models.Flag {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		raw = b
	}

	var flags []models.Flag
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil
	}
	return flags
}
