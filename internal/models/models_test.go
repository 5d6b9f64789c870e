// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestIsUnknownLocation(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{name: "exact zero", lat: 0, lon: 0, want: true},
		{name: "within epsilon", lat: 1e-8, lon: -1e-8, want: true},
		{name: "real coordinates", lat: 30.2672, lon: -97.7431, want: false},
		{name: "zero latitude only", lat: 0, lon: -97.7431, want: false},
		{name: "equator point", lat: 0, lon: 6.73, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnknownLocation(tt.lat, tt.lon); got != tt.want {
				t.Errorf("IsUnknownLocation(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	ordered := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if SeverityRank(ordered[i-1]) >= SeverityRank(ordered[i]) {
			t.Errorf("rank(%s) >= rank(%s)", ordered[i-1], ordered[i])
		}
	}
	if SeverityRank("bogus") != -1 {
		t.Errorf("unknown severity rank = %d, want -1", SeverityRank("bogus"))
	}
}

func TestNewFlagDetailsRoundTrip(t *testing.T) {
	f := NewFlag(FlagRapidScanningIP, SeverityHigh, "too many scans", RateDetails{
		Count:    3,
		WindowMs: 3600000,
		ClientIP: "203.0.113.10",
	})

	if f.Type != FlagRapidScanningIP || f.Severity != SeverityHigh {
		t.Errorf("flag = %+v", f)
	}

	var details RateDetails
	if err := json.Unmarshal(f.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Count != 3 || details.ClientIP != "203.0.113.10" {
		t.Errorf("details = %+v", details)
	}
}

func TestNewFlagNilDetails(t *testing.T) {
	f := NewFlag(FlagPrivateIP, SeverityLow, "private range", nil)
	if f.Details != nil {
		t.Errorf("details = %s, want none", f.Details)
	}
}

func TestGeolocationToLocation(t *testing.T) {
	geo := Geolocation{
		IPAddress: "203.0.113.10",
		Country:   "United States",
		Region:    "Texas",
		City:      "Austin",
		Latitude:  30.2672,
		Longitude: -97.7431,
		Timezone:  "America/Chicago",
		ISP:       "Example ISP",
	}

	loc := geo.ToLocation()
	if loc.Country != "United States" || loc.City != "Austin" || loc.Timezone != "America/Chicago" {
		t.Errorf("location = %+v", loc)
	}
	if !loc.HasCoordinates() {
		t.Error("location should carry coordinates")
	}
}
