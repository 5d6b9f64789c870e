// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// GetGeolocation returns the cached resolution for an IP, or nil when
// the IP has never been resolved. Failed lookups are cached too, as
// "Unknown" rows.
func (s *Store) GetGeolocation(ctx context.Context, ip string) (*models.Geolocation, error) {
	start := time.Now()

	query := `SELECT ip_address, COALESCE(country, ''), COALESCE(region, ''),
		COALESCE(city, ''), COALESCE(latitude, 0), COALESCE(longitude, 0),
		COALESCE(timezone, ''), COALESCE(isp, ''), last_updated
		FROM geolocations WHERE ip_address = ?`

	geo := &models.Geolocation{}
	err := s.db.QueryRowContext(ctx, query, ip).Scan(
		&geo.IPAddress,
		&geo.Country,
		&geo.Region,
		&geo.City,
		&geo.Latitude,
		&geo.Longitude,
		&geo.Timezone,
		&geo.ISP,
		&geo.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	metrics.ObserveDBQuery("select", "geolocations", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get geolocation: %w", err)
	}

	return geo, nil
}

// UpsertGeolocation inserts or refreshes a cached resolution.
func (s *Store) UpsertGeolocation(ctx context.Context, geo *models.Geolocation) error {
	start := time.Now()

	query := `INSERT INTO geolocations
		(ip_address, country, region, city, latitude, longitude, timezone, isp, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip_address) DO UPDATE SET
			country = excluded.country,
			region = excluded.region,
			city = excluded.city,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			isp = excluded.isp,
			last_updated = excluded.last_updated`

	_, err := s.db.ExecContext(ctx, query,
		geo.IPAddress,
		geo.Country,
		geo.Region,
		geo.City,
		geo.Latitude,
		geo.Longitude,
		geo.Timezone,
		geo.ISP,
		geo.LastUpdated,
	)
	metrics.ObserveDBQuery("upsert", "geolocations", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert geolocation: %w", err)
	}

	return nil
}
