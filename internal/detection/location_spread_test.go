// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

func unmarshalFlagDetails(f models.Flag, into any) error {
	return json.Unmarshal(f.Details, into)
}

func locatedScan(city, region, country string, at time.Time) models.ScanEvent {
	return models.ScanEvent{
		CodeKey:   "code-1",
		Location:  models.Location{City: city, Region: region, Country: country},
		ScannedAt: at,
	}
}

func TestCheckLocationSpread(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	t.Run("few locations is clean", func(t *testing.T) {
		history := []models.ScanEvent{
			locatedScan("Austin", "Texas", "United States", base.Add(-time.Hour)),
			locatedScan("Dallas", "Texas", "United States", base.Add(-2*time.Hour)),
		}
		incoming := locatedScan("Houston", "Texas", "United States", base)

		score, flags := checkLocationSpread(th, history, &incoming)
		if score != 0 || len(flags) != 0 {
			t.Errorf("score = %d flags = %+v, want clean", score, flags)
		}
	})

	t.Run("five distinct locations including incoming", func(t *testing.T) {
		history := []models.ScanEvent{
			locatedScan("Austin", "Texas", "United States", base.Add(-time.Hour)),
			locatedScan("Dallas", "Texas", "United States", base.Add(-2*time.Hour)),
			locatedScan("Denver", "Colorado", "United States", base.Add(-3*time.Hour)),
			locatedScan("Miami", "Florida", "United States", base.Add(-4*time.Hour)),
		}
		incoming := locatedScan("Seattle", "Washington", "United States", base)

		score, flags := checkLocationSpread(th, history, &incoming)
		if score != ScoreMultipleLocations {
			t.Errorf("score = %d, want %d", score, ScoreMultipleLocations)
		}
		if flagTypes(flags)[models.FlagMultipleLocations] != 1 {
			t.Errorf("expected multiple_locations flag, got %+v", flags)
		}
	})

	t.Run("same city in different regions counts as distinct", func(t *testing.T) {
		history := []models.ScanEvent{
			locatedScan("Springfield", "Illinois", "United States", base.Add(-time.Hour)),
			locatedScan("Springfield", "Missouri", "United States", base.Add(-2*time.Hour)),
			locatedScan("Springfield", "Ohio", "United States", base.Add(-3*time.Hour)),
			locatedScan("Springfield", "Oregon", "United States", base.Add(-4*time.Hour)),
		}
		incoming := locatedScan("Springfield", "Massachusetts", "United States", base)

		score, _ := checkLocationSpread(th, history, &incoming)
		if score != ScoreMultipleLocations {
			t.Errorf("score = %d, want %d", score, ScoreMultipleLocations)
		}
	})

	t.Run("one location repeated past the ceiling", func(t *testing.T) {
		var history []models.ScanEvent
		for i := 0; i < 10; i++ {
			history = append(history, locatedScan("Austin", "Texas", "United States",
				base.Add(-time.Duration(i+1)*time.Hour)))
		}
		incoming := locatedScan("Austin", "Texas", "United States", base)

		score, flags := checkLocationSpread(th, history, &incoming)
		if score != ScoreRepeatedLocation {
			t.Errorf("score = %d, want %d", score, ScoreRepeatedLocation)
		}
		if flagTypes(flags)[models.FlagRepeatedLocationScanning] != 1 {
			t.Errorf("expected repeated_location_scanning flag, got %+v", flags)
		}
	})

	t.Run("each over-repeated location flags separately", func(t *testing.T) {
		var history []models.ScanEvent
		for i := 0; i < 11; i++ {
			history = append(history, locatedScan("Austin", "Texas", "United States",
				base.Add(-time.Duration(i+1)*time.Minute)))
		}
		for i := 0; i < 11; i++ {
			history = append(history, locatedScan("Dallas", "Texas", "United States",
				base.Add(-time.Duration(i+20)*time.Minute)))
		}
		incoming := locatedScan("Houston", "Texas", "United States", base)

		score, flags := checkLocationSpread(th, history, &incoming)
		want := 2 * ScoreRepeatedLocation
		if score != want {
			t.Errorf("score = %d, want %d (flags: %+v)", score, want, flags)
		}
		if flagTypes(flags)[models.FlagRepeatedLocationScanning] != 2 {
			t.Errorf("expected two repeated_location_scanning flags, got %+v", flags)
		}
	})

	t.Run("repeated location flags come out in a stable order", func(t *testing.T) {
		var history []models.ScanEvent
		for _, city := range []string{"Dallas", "Austin", "Houston"} {
			for i := 0; i < 11; i++ {
				history = append(history, locatedScan(city, "Texas", "United States",
					base.Add(-time.Duration(len(history)+1)*time.Minute)))
			}
		}
		incoming := locatedScan("El Paso", "Texas", "United States", base)

		var first []string
		for run := 0; run < 5; run++ {
			_, flags := checkLocationSpread(th, history, &incoming)
			var order []string
			for _, f := range flags {
				if f.Type == models.FlagRepeatedLocationScanning {
					var d models.LocationSpreadDetails
					if err := unmarshalFlagDetails(f, &d); err != nil {
						t.Fatalf("decode details: %v", err)
					}
					order = append(order, d.Location)
				}
			}
			if len(order) != 3 {
				t.Fatalf("run %d: got %d repeated flags, want 3", run, len(order))
			}
			if run == 0 {
				first = order
				continue
			}
			for i := range order {
				if order[i] != first[i] {
					t.Fatalf("run %d: flag order %v differs from %v", run, order, first)
				}
			}
		}
	})

	t.Run("unresolved locations are not counted", func(t *testing.T) {
		var history []models.ScanEvent
		for i := 0; i < 20; i++ {
			history = append(history, models.ScanEvent{
				CodeKey:   "code-1",
				ScannedAt: base.Add(-time.Duration(i+1) * time.Minute),
			})
		}
		incoming := models.ScanEvent{CodeKey: "code-1", ScannedAt: base}

		score, flags := checkLocationSpread(th, history, &incoming)
		if score != 0 || len(flags) != 0 {
			t.Errorf("score = %d flags = %+v, want clean", score, flags)
		}
	})
}

func TestCheckLocationSpreadManyDistinct(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	var history []models.ScanEvent
	for i := 0; i < 12; i++ {
		history = append(history, locatedScan(
			fmt.Sprintf("City %d", i), "Region", "United States",
			base.Add(-time.Duration(i+1)*time.Hour)))
	}
	incoming := locatedScan("City 99", "Region", "United States", base)

	score, flags := checkLocationSpread(th, history, &incoming)
	if score != ScoreMultipleLocations {
		t.Errorf("score = %d, want %d", score, ScoreMultipleLocations)
	}

	var details models.LocationSpreadDetails
	for _, f := range flags {
		if f.Type == models.FlagMultipleLocations {
			if err := unmarshalFlagDetails(f, &details); err != nil {
				t.Fatalf("decode details: %v", err)
			}
		}
	}
	if details.DistinctLocations != 13 {
		t.Errorf("distinct locations = %d, want 13", details.DistinctLocations)
	}
}
