// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

type mockAlertStore struct {
	mu     sync.Mutex
	alerts []*models.SecurityAlert
	err    error
}

func (m *mockAlertStore) InsertAlert(_ context.Context, alert *models.SecurityAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

type mockNotifier struct {
	name    string
	enabled bool
	err     error
	sent    chan *models.SecurityAlert
}

func newMockNotifier(name string, enabled bool) *mockNotifier {
	return &mockNotifier{name: name, enabled: enabled, sent: make(chan *models.SecurityAlert, 8)}
}

func (m *mockNotifier) Name() string    { return m.name }
func (m *mockNotifier) Enabled() bool   { return m.enabled }
func (m *mockNotifier) Send(_ context.Context, alert *models.SecurityAlert) error {
	m.sent <- alert
	return m.err
}

func waitForNotification(t *testing.T, n *mockNotifier) *models.SecurityAlert {
	t.Helper()
	select {
	case alert := <-n.sent:
		return alert
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func assertNoNotification(t *testing.T, n *mockNotifier) {
	t.Helper()
	select {
	case alert := <-n.sent:
		t.Fatalf("unexpected notification for alert %s (severity %s)", alert.ID, alert.Severity)
	case <-time.After(100 * time.Millisecond):
	}
}

func suspiciousEvent(score int, flags ...models.Flag) *models.ScanEvent {
	return &models.ScanEvent{
		ID:           "scan-1",
		CodeKey:      "code-1",
		ClientIP:     "203.0.113.10",
		Location:     models.Location{City: "Austin", Region: "Texas", Country: "United States"},
		RiskScore:    score,
		Flags:        flags,
		IsSuspicious: true,
		ScannedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score int
		want  models.Severity
	}{
		{0, models.SeverityLow},
		{10, models.SeverityLow},
		{14, models.SeverityLow},
		{15, models.SeverityMedium},
		{29, models.SeverityMedium},
		{30, models.SeverityHigh},
		{49, models.SeverityHigh},
		{50, models.SeverityCritical},
		{120, models.SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityForScore(tt.score); got != tt.want {
			t.Errorf("SeverityForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestClassifyType(t *testing.T) {
	flag := func(ft models.FlagType) models.Flag {
		return models.Flag{Type: ft, Severity: models.SeverityMedium}
	}

	tests := []struct {
		name  string
		flags []models.Flag
		want  models.AlertType
	}{
		{
			name:  "impossible travel reads as counterfeiting",
			flags: []models.Flag{flag(models.FlagImpossibleTravel)},
			want:  models.AlertCounterfeitSuspected,
		},
		{
			name:  "multiple locations reads as counterfeiting",
			flags: []models.Flag{flag(models.FlagMultipleLocations)},
			want:  models.AlertCounterfeitSuspected,
		},
		{
			name:  "rate flags read as bot activity",
			flags: []models.Flag{flag(models.FlagBurstScanning)},
			want:  models.AlertBotActivity,
		},
		{
			name:  "repeated location reads as duplication",
			flags: []models.Flag{flag(models.FlagRepeatedLocationScanning)},
			want:  models.AlertDuplicationSuspected,
		},
		{
			name:  "geographic beats rate when both fire",
			flags: []models.Flag{flag(models.FlagRapidScanningIP), flag(models.FlagDistantLocations)},
			want:  models.AlertCounterfeitSuspected,
		},
		{
			name:  "rate beats repeated location",
			flags: []models.Flag{flag(models.FlagRepeatedLocationScanning), flag(models.FlagRapidScanningIP)},
			want:  models.AlertBotActivity,
		},
		{
			name:  "network flags alone are general suspicion",
			flags: []models.Flag{flag(models.FlagPrivateIP), flag(models.FlagUnusualHours)},
			want:  models.AlertGeneralSuspicious,
		},
		{
			name:  "no flags",
			flags: nil,
			want:  models.AlertGeneralSuspicious,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyType(tt.flags); got != tt.want {
				t.Errorf("ClassifyType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHandleSuspiciousScanPersistsAlert(t *testing.T) {
	store := &mockAlertStore{}
	m := NewAlertManager(store)

	event := suspiciousEvent(35, models.Flag{Type: models.FlagImpossibleTravel, Severity: models.SeverityHigh})
	code := CodeInfo{BatchLabel: "Batch 42", OwnerRef: "owner-7", StrainRef: "strain-3"}

	alert, err := m.HandleSuspiciousScan(context.Background(), event, code)
	if err != nil {
		t.Fatalf("HandleSuspiciousScan: %v", err)
	}

	if len(store.alerts) != 1 {
		t.Fatalf("stored %d alerts, want 1", len(store.alerts))
	}
	got := store.alerts[0]
	if got.ID == "" {
		t.Error("alert ID not assigned")
	}
	if got.CodeKey != "code-1" || got.BatchLabel != "Batch 42" || got.OwnerRef != "owner-7" || got.StrainRef != "strain-3" {
		t.Errorf("denormalized fields wrong: %+v", got)
	}
	if got.AlertType != models.AlertCounterfeitSuspected {
		t.Errorf("alert type = %s, want counterfeit_suspected", got.AlertType)
	}
	if got.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", got.Severity)
	}
	if got.LocationSummary != "Austin, Texas, United States" {
		t.Errorf("location summary = %q", got.LocationSummary)
	}
	if !got.CreatedAt.Equal(event.ScannedAt) {
		t.Errorf("CreatedAt = %s, want scan time %s", got.CreatedAt, event.ScannedAt)
	}
	if alert != got {
		t.Error("returned alert is not the stored alert")
	}
}

func TestHandleSuspiciousScanNotifiesHighOnly(t *testing.T) {
	tests := []struct {
		name       string
		score      int
		wantNotify bool
	}{
		{name: "low severity stays quiet", score: 12, wantNotify: false},
		{name: "medium severity stays quiet", score: 20, wantNotify: false},
		{name: "high severity notifies", score: 35, wantNotify: true},
		{name: "critical severity stays quiet", score: 75, wantNotify: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := newMockNotifier("mock", true)
			m := NewAlertManager(&mockAlertStore{}, notifier)

			event := suspiciousEvent(tt.score, models.Flag{Type: models.FlagImpossibleTravel, Severity: models.SeverityHigh})
			if _, err := m.HandleSuspiciousScan(context.Background(), event, CodeInfo{}); err != nil {
				t.Fatalf("HandleSuspiciousScan: %v", err)
			}

			if tt.wantNotify {
				alert := waitForNotification(t, notifier)
				if alert.Severity != models.SeverityHigh {
					t.Errorf("notified severity = %s, want high", alert.Severity)
				}
			} else {
				assertNoNotification(t, notifier)
			}
		})
	}
}

func TestHandleSuspiciousScanStoreError(t *testing.T) {
	notifier := newMockNotifier("mock", true)
	store := &mockAlertStore{err: errors.New("disk full")}
	m := NewAlertManager(store, notifier)

	event := suspiciousEvent(35, models.Flag{Type: models.FlagImpossibleTravel, Severity: models.SeverityHigh})
	alert, err := m.HandleSuspiciousScan(context.Background(), event, CodeInfo{})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if alert != nil {
		t.Error("alert returned despite store failure")
	}
	// No notification goes out for an alert that was never persisted.
	assertNoNotification(t, notifier)
}

func TestNewAlertManagerFiltersDisabledNotifiers(t *testing.T) {
	enabled := newMockNotifier("on", true)
	disabled := newMockNotifier("off", false)
	m := NewAlertManager(&mockAlertStore{}, disabled, enabled, nil)

	event := suspiciousEvent(35, models.Flag{Type: models.FlagImpossibleTravel, Severity: models.SeverityHigh})
	if _, err := m.HandleSuspiciousScan(context.Background(), event, CodeInfo{}); err != nil {
		t.Fatalf("HandleSuspiciousScan: %v", err)
	}

	waitForNotification(t, enabled)
	assertNoNotification(t, disabled)
}
