// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// FlagType identifies which heuristic check produced a flag.
type FlagType string

const (
	// Geographic family.
	FlagImpossibleTravel  FlagType = "impossible_travel"
	FlagDistantLocations  FlagType = "distant_locations"
	FlagMultipleCountries FlagType = "multiple_countries"
	FlagMultipleLocations FlagType = "multiple_locations"

	// Scanning-rate family.
	FlagRapidScanningIP FlagType = "rapid_scanning_ip"
	FlagBurstScanning   FlagType = "burst_scanning"

	// Location-repetition family.
	FlagRepeatedLocationScanning FlagType = "repeated_location_scanning"

	// Network-origin family.
	FlagPrivateIP     FlagType = "private_ip"
	FlagLocalhostScan FlagType = "localhost_scan"

	// Time-of-day family.
	FlagUnusualHours FlagType = "unusual_hours"
)

// Severity indicates the severity level of a flag or alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities so callers can compare them.
// low < medium < high < critical.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Flag is one typed, human-readable reason a heuristic contributed to a
// scan's risk score. Details carries a schema-per-type payload (one of the
// *Details structs below) so consumers know each flag's fields statically.
type Flag struct {
	Type     FlagType        `json:"type"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// TravelDetails is the payload for impossible_travel, distant_locations and
// multiple_countries flags. Coordinates refer to the historical event the
// incoming scan was compared against.
type TravelDetails struct {
	DistanceKm    float64   `json:"distance_km"`
	ElapsedHours  float64   `json:"elapsed_hours"`
	ImpliedSpeedK float64   `json:"implied_speed_kmh,omitempty"`
	FromLatitude  float64   `json:"from_latitude"`
	FromLongitude float64   `json:"from_longitude"`
	FromCountry   string    `json:"from_country,omitempty"`
	FromTimestamp time.Time `json:"from_timestamp"`
	ToLatitude    float64   `json:"to_latitude"`
	ToLongitude   float64   `json:"to_longitude"`
	ToCountry     string    `json:"to_country,omitempty"`
}

// RateDetails is the payload for rapid_scanning_ip and burst_scanning flags.
type RateDetails struct {
	Count    int    `json:"count"`
	WindowMs int64  `json:"window_ms"`
	ClientIP string `json:"client_ip,omitempty"`
}

// LocationSpreadDetails is the payload for multiple_locations and
// repeated_location_scanning flags.
type LocationSpreadDetails struct {
	DistinctLocations int    `json:"distinct_locations,omitempty"`
	RepeatCount       int    `json:"repeat_count,omitempty"`
	Location          string `json:"location,omitempty"`
}

// NetworkDetails is the payload for private_ip and localhost_scan flags.
type NetworkDetails struct {
	ClientIP string `json:"client_ip"`
	Range    string `json:"range,omitempty"`
}

// HoursDetails is the payload for unusual_hours flags.
type HoursDetails struct {
	NightScans int `json:"night_scans"`
	WindowFrom int `json:"window_from_hour"`
	WindowTo   int `json:"window_to_hour"`
}

// NewFlag builds a flag with a typed details payload. Marshal failures are
// impossible for the fixed detail structs, so the details are dropped
// rather than propagated as an error.
func NewFlag(t FlagType, sev Severity, msg string, details any) Flag {
	f := Flag{Type: t, Severity: sev, Message: msg}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			f.Details = raw
		}
	}
	return f
}
