// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Danproc/QR-Verify-sub002/internal/logging"
	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// CodeInfo carries the display fields denormalized onto alerts so they
// survive deletion of the underlying code.
type CodeInfo struct {
	BatchLabel string
	OwnerRef   string
	StrainRef  string
}

// AlertStore persists security alerts.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.SecurityAlert) error
}

// Notifier pushes an alert to an external channel. Implementations must
// be safe for concurrent use.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *models.SecurityAlert) error
}

// Severity band boundaries over the risk score.
const (
	severityMediumScore   = 15
	severityHighScore     = 30
	severityCriticalScore = 50
)

// SeverityForScore maps a risk score to an alert severity band:
// below 15 low, 15-29 medium, 30-49 high, 50 and above critical.
func SeverityForScore(score int) models.Severity {
	switch {
	case score >= severityCriticalScore:
		return models.SeverityCritical
	case score >= severityHighScore:
		return models.SeverityHigh
	case score >= severityMediumScore:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ClassifyType derives the alert type from which flag families fired,
// in precedence order: geographic anomalies read as counterfeiting,
// rate anomalies as bot activity, repeated-location scanning as code
// duplication, anything else as general suspicion.
func ClassifyType(flags []models.Flag) models.AlertType {
	has := make(map[models.FlagType]bool, len(flags))
	for _, f := range flags {
		has[f.Type] = true
	}

	switch {
	case has[models.FlagImpossibleTravel] || has[models.FlagDistantLocations] ||
		has[models.FlagMultipleCountries] || has[models.FlagMultipleLocations]:
		return models.AlertCounterfeitSuspected
	case has[models.FlagRapidScanningIP] || has[models.FlagBurstScanning]:
		return models.AlertBotActivity
	case has[models.FlagRepeatedLocationScanning]:
		return models.AlertDuplicationSuspected
	default:
		return models.AlertGeneralSuspicious
	}
}

// AlertManager turns suspicious scans into persisted alerts and fans
// them out to notifiers.
type AlertManager struct {
	store     AlertStore
	notifiers []Notifier

	// notifyTimeout bounds each notifier send, which runs detached
	// from the scan request.
	notifyTimeout time.Duration
}

// NewAlertManager builds an alert manager. Disabled notifiers are
// filtered out up front.
func NewAlertManager(store AlertStore, notifiers ...Notifier) *AlertManager {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil && n.Enabled() {
			active = append(active, n)
		}
	}
	return &AlertManager{
		store:         store,
		notifiers:     active,
		notifyTimeout: 10 * time.Second,
	}
}

// HandleSuspiciousScan creates and persists an alert for a scan already
// marked suspicious, then notifies asynchronously. The returned error
// covers persistence only; the caller records the scan regardless.
func (m *AlertManager) HandleSuspiciousScan(ctx context.Context, event *models.ScanEvent, code CodeInfo) (*models.SecurityAlert, error) {
	alert := &models.SecurityAlert{
		ID:              uuid.NewString(),
		CodeKey:         event.CodeKey,
		BatchLabel:      code.BatchLabel,
		OwnerRef:        code.OwnerRef,
		StrainRef:       code.StrainRef,
		AlertType:       ClassifyType(event.Flags),
		Severity:        SeverityForScore(event.RiskScore),
		RiskScore:       event.RiskScore,
		Flags:           event.Flags,
		LocationSummary: formatLocation(event.Location),
		// Alert timestamps align with the scan that triggered them, not
		// with when the insert happened.
		CreatedAt: event.ScannedAt,
	}

	if err := m.store.InsertAlert(ctx, alert); err != nil {
		metrics.AlertWriteErrors.Inc()
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	metrics.AlertsCreated.WithLabelValues(string(alert.AlertType), string(alert.Severity)).Inc()

	logging.Warn().
		Str("alert_id", alert.ID).
		Str("code_key", alert.CodeKey).
		Str("alert_type", string(alert.AlertType)).
		Str("severity", string(alert.Severity)).
		Int("risk_score", alert.RiskScore).
		Str("location", alert.LocationSummary).
		Msg("Security alert created")

	// Notification fires on high severity only. Critical alerts do not
	// notify today; they are expected to be reviewed via the dashboard.
	if alert.Severity == models.SeverityHigh {
		m.notifyAsync(alert)
	}

	return alert, nil
}

func (m *AlertManager) notifyAsync(alert *models.SecurityAlert) {
	for _, n := range m.notifiers {
		go func(n Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
			defer cancel()

			if err := n.Send(ctx, alert); err != nil {
				metrics.NotificationsSent.WithLabelValues(n.Name(), "error").Inc()
				logging.Error().
					Err(err).
					Str("notifier", n.Name()).
					Str("alert_id", alert.ID).
					Msg("Alert notification failed")
				return
			}
			metrics.NotificationsSent.WithLabelValues(n.Name(), "ok").Inc()
		}(n)
	}
}
