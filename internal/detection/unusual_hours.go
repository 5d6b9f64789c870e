// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// Local-time night window, half-open: [02:00, 06:00).
const (
	nightStartHour = 2
	nightEndHour   = 6
)

// checkUnusualHours counts scans landing in the local 02:00-06:00
// window across the history plus the incoming scan. Each event is
// converted with its own resolved timezone; events without one are
// counted in UTC.
func checkUnusualHours(t Thresholds, history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	night := 0
	for i := range history {
		if isNightScan(history[i].ScannedAt, history[i].Location.Timezone) {
			night++
		}
	}
	if isNightScan(incoming.ScannedAt, incoming.Location.Timezone) {
		night++
	}

	if night <= t.MaxNightScans {
		return 0, nil
	}

	return ScoreUnusualHours, []models.Flag{models.NewFlag(
		models.FlagUnusualHours,
		models.SeverityMedium,
		fmt.Sprintf("%d scans between 02:00 and 06:00 local time in the history window", night),
		models.HoursDetails{NightScans: night, WindowFrom: nightStartHour, WindowTo: nightEndHour},
	)}
}

func isNightScan(ts time.Time, tz string) bool {
	local := ts.UTC()
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			local = ts.In(loc)
		}
	}
	h := local.Hour()
	return h >= nightStartHour && h < nightEndHour
}
