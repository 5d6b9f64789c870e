// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package models

import (
	"math"
	"time"
)

// CoordinateEpsilon is the threshold for treating coordinates as the (0,0)
// "unknown location" sentinel. 1e-7 degrees is about 1.1cm at the equator,
// well below the accuracy of any IP geolocation, while avoiding direct
// float equality comparison.
const CoordinateEpsilon = 1e-7

// IsUnknownLocation returns true if the coordinates represent the unknown
// location sentinel. Uses epsilon comparison instead of direct float
// equality to sidestep IEEE 754 representation issues.
func IsUnknownLocation(lat, lon float64) bool {
	return math.Abs(lat) < CoordinateEpsilon && math.Abs(lon) < CoordinateEpsilon
}

// Location is the resolved geographic context of a scan. Every field is
// optional: geolocation may fail, in which case Country is "Unknown" and
// the coordinates carry the (0,0) sentinel.
type Location struct {
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	ISP       string  `json:"isp,omitempty"`
}

// HasCoordinates reports whether the location carries usable coordinates.
func (l Location) HasCoordinates() bool {
	return !IsUnknownLocation(l.Latitude, l.Longitude)
}

// ScanEvent is one verification attempt against a physical product's code.
// Rows are append-only: a ScanEvent is created exactly once at ingestion
// with its risk metadata and never mutated afterwards.
type ScanEvent struct {
	ID        string   `json:"id"`
	CodeKey   string   `json:"code_key"`
	StrainRef string   `json:"strain_ref,omitempty"`
	OwnerRef  string   `json:"owner_ref,omitempty"`
	ClientIP  string   `json:"client_ip"`
	UserAgent string   `json:"user_agent,omitempty"`
	Referer   string   `json:"referer,omitempty"`
	Location  Location `json:"location"`

	// Risk metadata, computed once at ingestion time.
	RiskScore    int       `json:"risk_score"`
	Flags        []Flag    `json:"flags,omitempty"`
	IsSuspicious bool      `json:"is_suspicious"`
	ScannedAt    time.Time `json:"scanned_at"`
}

// Geolocation is a cached IP-to-location resolution. One row per IP
// address; failed lookups are cached with Country "Unknown" so the same
// dead IP is not retried on every scan.
type Geolocation struct {
	IPAddress   string    `json:"ip_address"`
	Country     string    `json:"country"`
	Region      string    `json:"region,omitempty"`
	City        string    `json:"city,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timezone    string    `json:"timezone,omitempty"`
	ISP         string    `json:"isp,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// ToLocation converts a cached geolocation row into a scan Location.
func (g *Geolocation) ToLocation() Location {
	return Location{
		Country:   g.Country,
		Region:    g.Region,
		City:      g.City,
		Latitude:  g.Latitude,
		Longitude: g.Longitude,
		Timezone:  g.Timezone,
		ISP:       g.ISP,
	}
}
