// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

func testAlert() *models.SecurityAlert {
	return &models.SecurityAlert{
		ID:        "alert-1",
		CodeKey:   "code-1",
		AlertType: models.AlertCounterfeitSuspected,
		Severity:  models.SeverityHigh,
		RiskScore: 40,
		CreatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifierSend(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{
		WebhookURL:  server.URL,
		Enabled:     true,
		RateLimitMs: 1,
		Headers:     map[string]string{"Authorization": "Bearer token-1"},
	})

	if err := n.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.EventType != "security_alert" || payload.Source != "qr-verify" {
		t.Errorf("payload envelope = %q/%q", payload.EventType, payload.Source)
	}
	if payload.Alert == nil || payload.Alert.ID != "alert-1" {
		t.Errorf("payload alert = %+v", payload.Alert)
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestWebhookNotifierServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: true, RateLimitMs: 1})
	if err := n.Send(context.Background(), testAlert()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestWebhookNotifierDisabled(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: false})
	if n.Enabled() {
		t.Error("notifier should report disabled")
	}
	if err := n.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("disabled send should be a no-op: %v", err)
	}
	if called {
		t.Error("disabled notifier hit the endpoint")
	}
}

func TestWebhookNotifierEnabledRequiresURL(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{Enabled: true})
	if n.Enabled() {
		t.Error("notifier without a URL should report disabled")
	}
}

func TestWebhookNotifierRateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: true, RateLimitMs: 5000})
	if err := n.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("first send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := n.Send(ctx, testAlert()); err == nil {
		t.Fatal("expected context deadline while waiting out the rate limit")
	}
}
