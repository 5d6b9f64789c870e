// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"math"
	"strings"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance in kilometers between
// two coordinate pairs. Identical points return 0.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// formatLocation renders a location for alert and flag messages,
// skipping blank components: "Austin, Texas, United States".
func formatLocation(loc models.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.Region, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, ", ")
}

// round1 rounds to one decimal place for human-readable distances and
// speeds in flag details.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
