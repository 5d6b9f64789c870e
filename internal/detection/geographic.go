// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"
	"math"

	"github.com/Danproc/QR-Verify-sub002/internal/geoip"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// minElapsedHours floors the elapsed time in the speed computation so
// two scans in the same second imply a finite speed instead of
// dividing by zero.
const minElapsedHours = 0.1

// checkGeographic compares the incoming scan against every prior event
// individually. Each prior event can contribute up to three flags:
// impossible travel (speed above the plausibility ceiling), distant
// locations (far apart, close in time, below the ceiling) and a country
// change. A code scanned from three different continents in a day
// accumulates contributions from each comparison.
func checkGeographic(t Thresholds, history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	if !incoming.Location.HasCoordinates() && !knownCountry(incoming.Location.Country) {
		return 0, nil
	}

	score := 0
	var flags []models.Flag

	for i := range history {
		prior := &history[i]

		elapsed := incoming.ScannedAt.Sub(prior.ScannedAt).Hours()
		if elapsed < 0 {
			// Clock skew between ingestion hosts. Skip rather than
			// flag travel backwards in time.
			continue
		}

		if incoming.Location.HasCoordinates() && prior.Location.HasCoordinates() {
			dist := haversineKm(
				prior.Location.Latitude, prior.Location.Longitude,
				incoming.Location.Latitude, incoming.Location.Longitude,
			)
			speed := dist / math.Max(elapsed, minElapsedHours)

			if speed > t.MaxPlausibleSpeedKmH {
				score += ScoreImpossibleTravel
				flags = append(flags, models.NewFlag(
					models.FlagImpossibleTravel,
					models.SeverityHigh,
					fmt.Sprintf("Scan implies travel of %.0f km in %.1f hours (%.0f km/h) from %s",
						dist, elapsed, speed, formatLocation(prior.Location)),
					models.TravelDetails{
						DistanceKm:    round1(dist),
						ElapsedHours:  round1(elapsed),
						ImpliedSpeedK: round1(speed),
						FromLatitude:  prior.Location.Latitude,
						FromLongitude: prior.Location.Longitude,
						FromCountry:   prior.Location.Country,
						FromTimestamp: prior.ScannedAt,
						ToLatitude:    incoming.Location.Latitude,
						ToLongitude:   incoming.Location.Longitude,
						ToCountry:     incoming.Location.Country,
					},
				))
			}

			if dist > t.DistantKm && elapsed < t.DistantWithinHours {
				score += ScoreDistantLocations
				flags = append(flags, models.NewFlag(
					models.FlagDistantLocations,
					models.SeverityMedium,
					fmt.Sprintf("Scanned %.0f km from %s within %.1f hours",
						dist, formatLocation(prior.Location), elapsed),
					models.TravelDetails{
						DistanceKm:    round1(dist),
						ElapsedHours:  round1(elapsed),
						FromLatitude:  prior.Location.Latitude,
						FromLongitude: prior.Location.Longitude,
						FromCountry:   prior.Location.Country,
						FromTimestamp: prior.ScannedAt,
						ToLatitude:    incoming.Location.Latitude,
						ToLongitude:   incoming.Location.Longitude,
						ToCountry:     incoming.Location.Country,
					},
				))
			}
		}

		if knownCountry(incoming.Location.Country) && knownCountry(prior.Location.Country) &&
			incoming.Location.Country != prior.Location.Country {
			score += ScoreMultipleCountries
			flags = append(flags, models.NewFlag(
				models.FlagMultipleCountries,
				models.SeverityMedium,
				fmt.Sprintf("Code previously scanned in %s, now in %s",
					prior.Location.Country, incoming.Location.Country),
				models.TravelDetails{
					ElapsedHours:  round1(elapsed),
					FromCountry:   prior.Location.Country,
					FromTimestamp: prior.ScannedAt,
					FromLatitude:  prior.Location.Latitude,
					FromLongitude: prior.Location.Longitude,
					ToCountry:     incoming.Location.Country,
					ToLatitude:    incoming.Location.Latitude,
					ToLongitude:   incoming.Location.Longitude,
				},
			))
		}
	}

	return score, flags
}

// knownCountry reports whether a country string carries real geographic
// information, as opposed to the lookup-failure and private-range
// sentinels.
func knownCountry(c string) bool {
	return c != "" && c != geoip.UnknownCountry && c != geoip.LocalCountry
}
