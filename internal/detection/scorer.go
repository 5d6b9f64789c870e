// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// Scorer runs the heuristic registry over a scan and its history.
// A Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
	heuristics []Heuristic
}

// NewScorer builds a scorer with the default heuristic registry.
func NewScorer(t Thresholds) *Scorer {
	return &Scorer{
		thresholds: t,
		heuristics: defaultHeuristics(),
	}
}

// Thresholds returns the cutoffs this scorer was built with.
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score evaluates every heuristic and returns the summed risk score and
// the flags that produced it. history must not include incoming. The
// result depends only on the inputs.
func (s *Scorer) Score(history []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	total := 0
	var flags []models.Flag

	for _, h := range s.heuristics {
		score, hFlags := h.Check(s.thresholds, history, incoming)
		total += score
		flags = append(flags, hFlags...)
	}

	for _, f := range flags {
		metrics.FlagsRaised.WithLabelValues(string(f.Type)).Inc()
	}

	return total, flags
}

// Suspicious reports whether a score crosses the alerting threshold.
func (s *Scorer) Suspicious(score int) bool {
	return score >= s.thresholds.SuspiciousThreshold
}
