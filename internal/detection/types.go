// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package detection scores incoming scan events against the recent scan
// history of the same code and raises security alerts when the combined
// risk crosses the suspicion threshold.
//
// Heuristics are pure functions over (thresholds, history, incoming
// event). They never touch the database or the network, which keeps
// them trivially testable and safe to run concurrently for independent
// codes.
package detection

import (
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// Score contributions per flag type. Contributions are additive and
// order-independent: the final risk score is the same regardless of the
// order heuristics run in.
const (
	ScoreImpossibleTravel  = 25
	ScoreDistantLocations  = 15
	ScoreMultipleCountries = 10
	ScoreRapidSameIP       = 20
	ScoreBurstScanning     = 15
	ScoreMultipleLocations = 20
	ScoreRepeatedLocation  = 10
	ScorePrivateIP         = 5
	ScoreLocalhostScan     = 5
	ScoreUnusualHours      = 10
)

// Thresholds holds every tunable cutoff the heuristics consult. Values
// come from configuration; DefaultThresholds matches the shipped
// config defaults.
type Thresholds struct {
	// HistoryWindow bounds how far back scan history is loaded when
	// scoring a new event.
	HistoryWindow time.Duration

	// SuspiciousThreshold is the minimum risk score at which a scan is
	// marked suspicious and an alert is created.
	SuspiciousThreshold int

	// MaxPlausibleSpeedKmH is the travel-speed ceiling between two
	// scans of the same code. Roughly commercial airliner cruise speed.
	MaxPlausibleSpeedKmH float64

	// DistantKm and DistantWithinHours bound the "far apart, close in
	// time" check that fires below the impossible-travel ceiling.
	DistantKm          float64
	DistantWithinHours float64

	// SameIPWindow is the lookback for repeat scans from one client IP.
	SameIPWindow time.Duration

	// BurstWindow is the lookback for repeat scans from any IP.
	BurstWindow time.Duration

	// MinDistinctLocations is the distinct (city, region, country)
	// count at which a code is considered geographically scattered.
	MinDistinctLocations int

	// MaxLocationRepeats is the per-location scan count above which
	// repeated scanning from one place is flagged.
	MaxLocationRepeats int

	// MaxNightScans is the count of scans in the local 02:00-06:00
	// window above which the unusual-hours flag fires.
	MaxNightScans int
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
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
	}
}

// HeuristicFunc evaluates one family of checks. history holds prior
// events for the same code, newest last, and never includes incoming.
// The returned score is the sum of the contributions of the returned
// flags.
type HeuristicFunc func(t Thresholds, history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag)

// Heuristic pairs a stable name with its check function. The name shows
// up in logs and metrics only, never in stored flags.
type Heuristic struct {
	Name  string
	Check HeuristicFunc
}

// defaultHeuristics returns the full registry in evaluation order.
// Order only affects the order of flags on the event, not the score.
func defaultHeuristics() []Heuristic {
	return []Heuristic{
		{Name: "geographic", Check: checkGeographic},
		{Name: "rapid_scanning", Check: checkRapidScanning},
		{Name: "location_spread", Check: checkLocationSpread},
		{Name: "network_origin", Check: checkNetworkOrigin},
		{Name: "unusual_hours", Check: checkUnusualHours},
	}
}
