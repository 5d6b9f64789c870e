// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

func scanAt(ip string, at time.Time) models.ScanEvent {
	return models.ScanEvent{CodeKey: "code-1", ClientIP: ip, ScannedAt: at}
}

func TestCheckRapidScanning(t *testing.T) {
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
			incoming:  scanAt("203.0.113.10", base),
			wantScore: 0,
		},
		{
			name: "same ip thirty minutes ago",
			history: []models.ScanEvent{
				scanAt("203.0.113.10", base.Add(-30*time.Minute)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: ScoreRapidSameIP,
			wantFlags: []models.FlagType{models.FlagRapidScanningIP},
		},
		{
			name: "same ip two minutes ago fires both windows",
			history: []models.ScanEvent{
				scanAt("203.0.113.10", base.Add(-2*time.Minute)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: ScoreRapidSameIP + ScoreBurstScanning,
			wantFlags: []models.FlagType{models.FlagRapidScanningIP, models.FlagBurstScanning},
		},
		{
			name: "different ip two minutes ago is a burst only",
			history: []models.ScanEvent{
				scanAt("198.51.100.7", base.Add(-2*time.Minute)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: ScoreBurstScanning,
			wantFlags: []models.FlagType{models.FlagBurstScanning},
		},
		{
			name: "different ip thirty minutes ago is clean",
			history: []models.ScanEvent{
				scanAt("198.51.100.7", base.Add(-30*time.Minute)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: 0,
		},
		{
			name: "same ip outside the hour window is clean",
			history: []models.ScanEvent{
				scanAt("203.0.113.10", base.Add(-2*time.Hour)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: 0,
		},
		{
			name: "scores do not stack per prior event",
			history: []models.ScanEvent{
				scanAt("203.0.113.10", base.Add(-10*time.Minute)),
				scanAt("203.0.113.10", base.Add(-20*time.Minute)),
				scanAt("203.0.113.10", base.Add(-40*time.Minute)),
			},
			incoming:  scanAt("203.0.113.10", base),
			wantScore: ScoreRapidSameIP,
			wantFlags: []models.FlagType{models.FlagRapidScanningIP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, flags := checkRapidScanning(th, tt.history, &tt.incoming)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d (flags: %+v)", score, tt.wantScore, flags)
			}
			if len(flags) != len(tt.wantFlags) {
				t.Fatalf("flag count = %d, want %d", len(flags), len(tt.wantFlags))
			}
			got := flagTypes(flags)
			for _, ft := range tt.wantFlags {
				if got[ft] == 0 {
					t.Errorf("missing flag %s", ft)
				}
			}
		})
	}
}

func TestCheckRapidScanningCountsInMessage(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	history := []models.ScanEvent{
		scanAt("203.0.113.10", base.Add(-5*time.Minute)),
		scanAt("203.0.113.10", base.Add(-10*time.Minute)),
	}
	incoming := scanAt("203.0.113.10", base)

	_, flags := checkRapidScanning(th, history, &incoming)

	for _, f := range flags {
		if f.Type == models.FlagRapidScanningIP {
			var details models.RateDetails
			if err := json.Unmarshal(f.Details, &details); err != nil {
				t.Fatalf("decode details: %v", err)
			}
			// Count includes the incoming scan.
			if details.Count != 3 {
				t.Errorf("rate count = %d, want 3", details.Count)
			}
			return
		}
	}
	t.Fatal("rapid_scanning_ip flag not raised")
}
