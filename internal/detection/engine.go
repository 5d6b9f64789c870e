// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Danproc/QR-Verify-sub002/internal/logging"
	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// maxHeaderLen caps stored user agent and referer strings.
const maxHeaderLen = 512

// EventStore persists scan events and serves scoring history.
type EventStore interface {
	InsertScanEvent(ctx context.Context, event *models.ScanEvent) error
	EventsForCode(ctx context.Context, codeKey string, since time.Time) ([]models.ScanEvent, error)
}

// LocationResolver resolves a client IP to a geolocation. Resolution
// never fails: unresolvable IPs come back as the "Unknown" location.
type LocationResolver interface {
	Resolve(ctx context.Context, ip string) *models.Geolocation
}

// ScanRequest is one verification attempt handed to the engine by the
// scan ingestion surface. The code fields are denormalized by the
// caller, which has already looked the code up.
type ScanRequest struct {
	CodeKey    string
	StrainRef  string
	BatchLabel string
	OwnerRef   string
	ClientIP   string
	UserAgent  string
	Referer    string

	// ScannedAt is optional; zero means now. Tests and backfills set it.
	ScannedAt time.Time
}

// Engine orchestrates scan recording: geolocation, risk scoring,
// persistence and alerting. Safe for concurrent use; scans of
// independent codes do not contend.
type Engine struct {
	store    EventStore
	resolver LocationResolver
	scorer   *Scorer
	alerts   *AlertManager
	now      func() time.Time
}

// NewEngine wires the engine. alerts may be nil in read-only tooling,
// in which case suspicious scans are recorded but never alerted on.
func NewEngine(store EventStore, resolver LocationResolver, scorer *Scorer, alerts *AlertManager) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		scorer:   scorer,
		alerts:   alerts,
		now:      time.Now,
	}
}

// RecordScan ingests one scan: resolves its location, scores it against
// the code's recent history, persists it, and raises an alert if it
// crossed the suspicion threshold.
//
// Only the event insert can fail the call. Geolocation failures degrade
// to the "Unknown" location, history-read failures degrade to scoring
// against an empty history, and alert or notification failures are
// logged and swallowed: a scan event is never lost because a downstream
// concern misbehaved.
func (e *Engine) RecordScan(ctx context.Context, req ScanRequest) (*models.ScanEvent, error) {
	start := time.Now()
	defer func() {
		metrics.ScanProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	scannedAt := req.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = e.now().UTC()
	}

	geo := e.resolver.Resolve(ctx, req.ClientIP)

	event := &models.ScanEvent{
		ID:        uuid.NewString(),
		CodeKey:   req.CodeKey,
		StrainRef: req.StrainRef,
		OwnerRef:  req.OwnerRef,
		ClientIP:  req.ClientIP,
		UserAgent: sanitizeHeader(req.UserAgent),
		Referer:   sanitizeHeader(req.Referer),
		Location:  geo.ToLocation(),
		ScannedAt: scannedAt,
	}

	history, err := e.store.EventsForCode(ctx, req.CodeKey, scannedAt.Add(-e.scorer.Thresholds().HistoryWindow))
	if err != nil {
		// Score against nothing rather than refuse the scan.
		logging.Warn().
			Err(err).
			Str("code_key", req.CodeKey).
			Msg("Failed to load scan history, scoring without it")
		history = nil
	}

	score, flags := e.scorer.Score(history, event)
	event.RiskScore = score
	event.Flags = flags
	event.IsSuspicious = e.scorer.Suspicious(score)

	if err := e.store.InsertScanEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("record scan for code %s: %w", req.CodeKey, err)
	}

	metrics.ScansRecorded.Inc()
	logging.Debug().
		Str("scan_id", event.ID).
		Str("code_key", event.CodeKey).
		Int("risk_score", event.RiskScore).
		Int("flags", len(event.Flags)).
		Bool("suspicious", event.IsSuspicious).
		Msg("Scan recorded")

	if event.IsSuspicious {
		metrics.ScansSuspicious.Inc()
		if e.alerts != nil {
			code := CodeInfo{
				BatchLabel: req.BatchLabel,
				OwnerRef:   req.OwnerRef,
				StrainRef:  req.StrainRef,
			}
			if _, err := e.alerts.HandleSuspiciousScan(ctx, event, code); err != nil {
				logging.Error().
					Err(err).
					Str("scan_id", event.ID).
					Str("code_key", event.CodeKey).
					Msg("Failed to persist security alert")
			}
		}
	}

	return event, nil
}

// sanitizeHeader strips control characters and truncates client-supplied
// header values before they reach storage or logs.
func sanitizeHeader(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxHeaderLen {
		s = s[:maxHeaderLen]
	}
	return s
}
