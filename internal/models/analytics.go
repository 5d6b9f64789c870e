// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package models

import "time"

// Dashboard is the read model consumed by the reporting UI collaborator.
type Dashboard struct {
	AlertSummary    AlertSummary     `json:"alert_summary"`
	RecentAlerts    []SecurityAlert  `json:"recent_alerts"`
	ScansByDay      []DailyScanStats `json:"scanning_patterns_by_day"`
	GeoDistribution []CountryCount   `json:"geographic_distribution"`
}

// DailyScanStats is one day of scanning activity.
type DailyScanStats struct {
	Day        time.Time `json:"day"`
	Scans      int       `json:"scans"`
	Suspicious int       `json:"suspicious"`
}

// CountryCount is a per-country scan total.
type CountryCount struct {
	Country string `json:"country"`
	Scans   int    `json:"scans"`
}

// GeographicAnalytics is the geographic read model for the reporting UI.
type GeographicAnalytics struct {
	HeatMapPoints        []HeatMapPoint      `json:"heat_map_points"`
	CountryDistribution  []CountryCount      `json:"country_distribution"`
	CodeDistribution     []CodeSpread        `json:"per_code_distribution_tracking"`
	RegionalPenetration  []RegionPenetration `json:"regional_market_penetration"`
}

// HeatMapPoint is a weighted coordinate for map rendering. Points carrying
// the unknown-location sentinel are excluded at query time.
type HeatMapPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Weight    int     `json:"weight"`
}

// CodeSpread tracks how widely a single code has been scanned.
type CodeSpread struct {
	CodeKey           string `json:"code_key"`
	Scans             int    `json:"scans"`
	DistinctLocations int    `json:"distinct_locations"`
	DistinctCountries int    `json:"distinct_countries"`
}

// RegionPenetration is a (country, region) share of total scans.
type RegionPenetration struct {
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Scans   int     `json:"scans"`
	Share   float64 `json:"share"`
}

// APIResponse is the standard JSON envelope for all API endpoints.
type APIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
