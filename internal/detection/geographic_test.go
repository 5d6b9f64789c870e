// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"testing"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// event is a test helper building a scan event at a coordinate and time.
func event(lat, lon float64, country string, at time.Time) models.ScanEvent {
	return models.ScanEvent{
		CodeKey:   "code-1",
		ClientIP:  "203.0.113.10",
		Location:  models.Location{Latitude: lat, Longitude: lon, Country: country},
		ScannedAt: at,
	}
}

func flagTypes(flags []models.Flag) map[models.FlagType]int {
	out := make(map[models.FlagType]int)
	for _, f := range flags {
		out[f.Type]++
	}
	return out
}

func TestCheckGeographic(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	tests := []struct {
		name      string
		history   []models.ScanEvent
		incoming  models.ScanEvent
		wantScore int
		wantFlags []models.FlagType
	}{
		{
			name:      "no history",
			history:   nil,
			incoming:  event(40.7128, -74.0060, "United States", base),
			wantScore: 0,
		},
		{
			name: "same location twice",
			history: []models.ScanEvent{
				event(40.7128, -74.0060, "United States", base.Add(-2*time.Hour)),
			},
			incoming:  event(40.7128, -74.0060, "United States", base),
			wantScore: 0,
		},
		{
			name: "coast to coast in one hour",
			history: []models.ScanEvent{
				event(34.0522, -118.2437, "United States", base.Add(-time.Hour)),
			},
			incoming: event(40.7128, -74.0060, "United States", base),
			// ~3936 km/h clears the speed ceiling and the distant
			// check fires as well.
			wantScore: ScoreImpossibleTravel + ScoreDistantLocations,
			wantFlags: []models.FlagType{models.FlagImpossibleTravel, models.FlagDistantLocations},
		},
		{
			name: "distant but plausible drive",
			history: []models.ScanEvent{
				event(34.0522, -118.2437, "United States", base.Add(-10*time.Hour)),
			},
			incoming: event(36.1699, -115.1398, "United States", base),
			// Los Angeles to Las Vegas, ~370 km in 10h: under both
			// the distance and speed cutoffs.
			wantScore: 0,
		},
		{
			name: "far apart within a day under the speed ceiling",
			history: []models.ScanEvent{
				event(48.8566, 2.3522, "France", base.Add(-20*time.Hour)),
			},
			incoming: event(43.2965, 5.3698, "France", base),
			// Paris to Marseille, ~660 km in 20h = 33 km/h.
			wantScore: ScoreDistantLocations,
			wantFlags: []models.FlagType{models.FlagDistantLocations},
		},
		{
			name: "country change without coordinates",
			history: []models.ScanEvent{
				event(0, 0, "United States", base.Add(-48*time.Hour)),
			},
			incoming:  event(0, 0, "Germany", base),
			wantScore: ScoreMultipleCountries,
			wantFlags: []models.FlagType{models.FlagMultipleCountries},
		},
		{
			name: "unknown country sentinel never counts as a change",
			history: []models.ScanEvent{
				event(0, 0, "Unknown", base.Add(-time.Hour)),
			},
			incoming:  event(0, 0, "Germany", base),
			wantScore: 0,
		},
		{
			name: "local development sentinel never counts as a change",
			history: []models.ScanEvent{
				event(0, 0, "Local Development", base.Add(-time.Hour)),
			},
			incoming:  event(0, 0, "Germany", base),
			wantScore: 0,
		},
		{
			name: "prior event newer than incoming is skipped",
			history: []models.ScanEvent{
				event(34.0522, -118.2437, "United States", base.Add(time.Hour)),
			},
			incoming:  event(40.7128, -74.0060, "United States", base),
			wantScore: 0,
		},
		{
			name: "each prior event contributes independently",
			history: []models.ScanEvent{
				event(34.0522, -118.2437, "United States", base.Add(-time.Hour)),
				event(51.5074, -0.1278, "United Kingdom", base.Add(-2*time.Hour)),
			},
			incoming: event(40.7128, -74.0060, "United States", base),
			// Both priors imply impossible travel and distant
			// locations; the London prior adds a country change.
			wantScore: 2*ScoreImpossibleTravel + 2*ScoreDistantLocations + ScoreMultipleCountries,
			wantFlags: []models.FlagType{
				models.FlagImpossibleTravel, models.FlagDistantLocations,
				models.FlagImpossibleTravel, models.FlagDistantLocations,
				models.FlagMultipleCountries,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, flags := checkGeographic(th, tt.history, &tt.incoming)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d (flags: %+v)", score, tt.wantScore, flags)
			}
			got := flagTypes(flags)
			want := make(map[models.FlagType]int)
			for _, ft := range tt.wantFlags {
				want[ft]++
			}
			for ft, n := range want {
				if got[ft] != n {
					t.Errorf("flag %s count = %d, want %d", ft, got[ft], n)
				}
			}
			if len(flags) != len(tt.wantFlags) {
				t.Errorf("flag count = %d, want %d", len(flags), len(tt.wantFlags))
			}
		})
	}
}

func TestCheckGeographicSameSecondFloorsSpeed(t *testing.T) {
	th := DefaultThresholds()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	history := []models.ScanEvent{event(34.0522, -118.2437, "United States", at)}
	incoming := event(40.7128, -74.0060, "United States", at)

	score, flags := checkGeographic(th, history, &incoming)

	// Zero elapsed is floored, not a division by zero; ~3936 km in the
	// floored 0.1h is still far beyond plausible travel.
	if score != ScoreImpossibleTravel+ScoreDistantLocations {
		t.Fatalf("score = %d, want %d", score, ScoreImpossibleTravel+ScoreDistantLocations)
	}
	if flagTypes(flags)[models.FlagImpossibleTravel] != 1 {
		t.Errorf("expected impossible travel flag, got %+v", flags)
	}
}
