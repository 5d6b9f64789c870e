// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// checkRapidScanning flags repeat scans that are too close together to
// be organic. Same-IP repeats within an hour read as one client
// hammering the code; any-IP repeats within five minutes read as a
// distributed burst.
func checkRapidScanning(t Thresholds, history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	if len(history) == 0 {
		return 0, nil
	}

	sameIP := 0
	burst := 0
	for i := range history {
		prior := &history[i]
		age := incoming.ScannedAt.Sub(prior.ScannedAt)
		if age < 0 {
			continue
		}
		if age <= t.SameIPWindow && prior.ClientIP == incoming.ClientIP {
			sameIP++
		}
		if age <= t.BurstWindow {
			burst++
		}
	}

	score := 0
	var flags []models.Flag

	if sameIP >= 1 {
		score += ScoreRapidSameIP
		flags = append(flags, models.NewFlag(
			models.FlagRapidScanningIP,
			models.SeverityHigh,
			fmt.Sprintf("IP %s scanned this code %d time(s) in the last hour", incoming.ClientIP, sameIP+1),
			models.RateDetails{
				Count:    sameIP + 1,
				WindowMs: t.SameIPWindow.Milliseconds(),
				ClientIP: incoming.ClientIP,
			},
		))
	}

	if burst >= 1 {
		score += ScoreBurstScanning
		flags = append(flags, models.NewFlag(
			models.FlagBurstScanning,
			models.SeverityMedium,
			fmt.Sprintf("Code scanned %d time(s) in the last %s across all clients", burst+1, t.BurstWindow),
			models.RateDetails{
				Count:    burst + 1,
				WindowMs: t.BurstWindow.Milliseconds(),
			},
		))
	}

	return score, flags
}
