// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"
	"sort"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// checkLocationSpread builds a frequency table of (city, region,
// country) tuples over the window including the incoming scan. Many
// distinct locations suggests the code was cloned and distributed; one
// location repeated past the ceiling suggests a re-scan loop.
func checkLocationSpread(t Thresholds, history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	counts := make(map[string]int, len(history)+1)
	labels := make(map[string]models.Location, len(history)+1)

	tally := func(loc models.Location) {
		if loc.City == "" && loc.Region == "" && loc.Country == "" {
			return
		}
		key := loc.City + "\x00" + loc.Region + "\x00" + loc.Country
		counts[key]++
		labels[key] = loc
	}

	for i := range history {
		tally(history[i].Location)
	}
	tally(incoming.Location)

	score := 0
	var flags []models.Flag

	if len(counts) >= t.MinDistinctLocations {
		score += ScoreMultipleLocations
		flags = append(flags, models.NewFlag(
			models.FlagMultipleLocations,
			models.SeverityHigh,
			fmt.Sprintf("Code scanned from %d distinct locations in the history window", len(counts)),
			models.LocationSpreadDetails{DistinctLocations: len(counts)},
		))
	}

	// Stable flag order regardless of map iteration.
	var repeated []string
	for key, n := range counts {
		if n > t.MaxLocationRepeats {
			repeated = append(repeated, key)
		}
	}
	sort.Strings(repeated)

	for _, key := range repeated {
		score += ScoreRepeatedLocation
		flags = append(flags, models.NewFlag(
			models.FlagRepeatedLocationScanning,
			models.SeverityMedium,
			fmt.Sprintf("Code scanned %d times from %s", counts[key], formatLocation(labels[key])),
			models.LocationSpreadDetails{
				RepeatCount: counts[key],
				Location:    formatLocation(labels[key]),
			},
		))
	}

	return score, flags
}
