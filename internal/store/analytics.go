// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// AnalyticsScope bounds the read models to one owner's data over a
// trailing window. Empty OwnerRef and StrainRef mean no tenant filter;
// a zero Window means unbounded time.
type AnalyticsScope struct {
	OwnerRef  string
	StrainRef string
	Window    time.Duration
}

// where builds the scoping predicate against timeCol. timeCol is an
// internal constant, never user input.
func (sc AnalyticsScope) where(timeCol string) (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}

	if sc.Window > 0 {
		clause += " AND " + timeCol + " >= ?"
		args = append(args, time.Now().Add(-sc.Window))
	}
	if sc.OwnerRef != "" {
		clause += " AND owner_ref = ?"
		args = append(args, sc.OwnerRef)
	}
	if sc.StrainRef != "" {
		clause += " AND strain_ref = ?"
		args = append(args, sc.StrainRef)
	}
	return clause, args
}

// Dashboard assembles the dashboard read model: alert summary, recent
// alerts, daily scan counts and country distribution, all bounded by
// the scope.
func (s *Store) Dashboard(ctx context.Context, scope AnalyticsScope, recentAlerts int) (*models.Dashboard, error) {
	summary, err := s.AlertSummary(ctx, scope)
	if err != nil {
		return nil, err
	}

	filter := models.AlertFilter{
		OwnerRef:  scope.OwnerRef,
		StrainRef: scope.StrainRef,
		Limit:     recentAlerts,
	}
	if scope.Window > 0 {
		since := time.Now().Add(-scope.Window)
		filter.StartDate = &since
	}
	alerts, err := s.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}

	byDay, err := s.scansByDay(ctx, scope)
	if err != nil {
		return nil, err
	}

	geo, err := s.countryDistribution(ctx, scope, 0)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{
		AlertSummary:    *summary,
		RecentAlerts:    alerts,
		ScansByDay:      byDay,
		GeoDistribution: geo,
	}, nil
}

// GeographicAnalytics assembles the geographic read model within the
// scope: heat-map points, country distribution, per-code spread and
// regional penetration shares.
func (s *Store) GeographicAnalytics(ctx context.Context, scope AnalyticsScope) (*models.GeographicAnalytics, error) {
	points, err := s.heatMapPoints(ctx, scope)
	if err != nil {
		return nil, err
	}

	countries, err := s.countryDistribution(ctx, scope, 0)
	if err != nil {
		return nil, err
	}

	codes, err := s.codeDistribution(ctx, scope)
	if err != nil {
		return nil, err
	}

	regions, err := s.regionalPenetration(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &models.GeographicAnalytics{
		HeatMapPoints:       points,
		CountryDistribution: countries,
		CodeDistribution:    codes,
		RegionalPenetration: regions,
	}, nil
}

func (s *Store) scansByDay(ctx context.Context, scope AnalyticsScope) ([]models.DailyScanStats, error) {
	where, args := scope.where("scanned_at")
	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE_TRUNC('day', scanned_at) AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE is_suspicious)
		FROM scan_events`+where+`
		GROUP BY day
		ORDER BY day ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily scan stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyScanStats
	for rows.Next() {
		var d models.DailyScanStats
		if err := rows.Scan(&d.Day, &d.Scans, &d.Suspicious); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats row: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

func (s *Store) countryDistribution(ctx context.Context, scope AnalyticsScope, limit int) ([]models.CountryCount, error) {
	where, args := scope.where("scanned_at")
	query := `
		SELECT country, COUNT(*)
		FROM scan_events` + where + `
		  AND country IS NOT NULL AND country != ''
		GROUP BY country
		ORDER BY COUNT(*) DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query country distribution: %w", err)
	}
	defer rows.Close()

	var counts []models.CountryCount
	for rows.Next() {
		var c models.CountryCount
		if err := rows.Scan(&c.Country, &c.Scans); err != nil {
			return nil, fmt.Errorf("failed to scan country row: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// heatMapPoints buckets coordinates to two decimal places (about 1km)
// so the map renders aggregate weights instead of raw rows. The (0,0)
// unknown-location sentinel is excluded.
func (s *Store) heatMapPoints(ctx context.Context, scope AnalyticsScope) ([]models.HeatMapPoint, error) {
	where, args := scope.where("scanned_at")
	rows, err := s.db.QueryContext(ctx, `
		SELECT ROUND(latitude, 2), ROUND(longitude, 2), COUNT(*)
		FROM scan_events`+where+`
		  AND (ABS(latitude) > 0.0000001 OR ABS(longitude) > 0.0000001)
		GROUP BY ROUND(latitude, 2), ROUND(longitude, 2)
		ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query heat map points: %w", err)
	}
	defer rows.Close()

	var points []models.HeatMapPoint
	for rows.Next() {
		var p models.HeatMapPoint
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan heat map row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) codeDistribution(ctx context.Context, scope AnalyticsScope) ([]models.CodeSpread, error) {
	where, args := scope.where("scanned_at")
	rows, err := s.db.QueryContext(ctx, `
		SELECT code_key,
		       COUNT(*),
		       COUNT(DISTINCT city || '|' || region || '|' || country),
		       COUNT(DISTINCT country) FILTER (WHERE country != '' AND country != 'Unknown')
		FROM scan_events`+where+`
		GROUP BY code_key
		ORDER BY COUNT(DISTINCT city || '|' || region || '|' || country) DESC
		LIMIT 100`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query code distribution: %w", err)
	}
	defer rows.Close()

	var spreads []models.CodeSpread
	for rows.Next() {
		var c models.CodeSpread
		if err := rows.Scan(&c.CodeKey, &c.Scans, &c.DistinctLocations, &c.DistinctCountries); err != nil {
			return nil, fmt.Errorf("failed to scan code spread row: %w", err)
		}
		spreads = append(spreads, c)
	}
	return spreads, rows.Err()
}

func (s *Store) regionalPenetration(ctx context.Context, scope AnalyticsScope) ([]models.RegionPenetration, error) {
	where, args := scope.where("scanned_at")
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, region, COUNT(*),
		       COUNT(*) * 1.0 / SUM(COUNT(*)) OVER ()
		FROM scan_events`+where+`
		  AND country != '' AND country != 'Unknown'
		GROUP BY country, region
		ORDER BY COUNT(*) DESC
		LIMIT 100`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query regional penetration: %w", err)
	}
	defer rows.Close()

	var regions []models.RegionPenetration
	for rows.Next() {
		var r models.RegionPenetration
		if err := rows.Scan(&r.Country, &r.Region, &r.Scans, &r.Share); err != nil {
			return nil, fmt.Errorf("failed to scan region row: %w", err)
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}
