// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// WebhookNotifier posts alerts to a generic webhook endpoint.
type WebhookNotifier struct {
	webhookURL string
	headers    map[string]string
	client     *http.Client
	enabled    bool
	mu         sync.RWMutex

	// Rate limiting
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	WebhookURL  string            `json:"webhook_url"`
	Headers     map[string]string `json:"headers,omitempty"` // Custom headers (e.g., auth)
	Enabled     bool              `json:"enabled"`
	RateLimitMs int               `json:"rate_limit_ms"`
}

// WebhookPayload is the JSON body posted to the endpoint.
type WebhookPayload struct {
	Alert     *models.SecurityAlert `json:"alert"`
	EventType string                `json:"event_type"` // security_alert
	Timestamp time.Time             `json:"timestamp"`
	Source    string                `json:"source"` // qr-verify
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	rateLimit := time.Duration(config.RateLimitMs) * time.Millisecond
	if rateLimit == 0 {
		rateLimit = 500 * time.Millisecond
	}

	headers := make(map[string]string)
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		webhookURL: config.WebhookURL,
		headers:    headers,
		enabled:    config.Enabled,
		rateLimit:  rateLimit,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled returns whether this notifier can deliver.
func (n *WebhookNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.webhookURL != ""
}

// SetEnabled enables or disables the notifier.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send delivers an alert to the webhook endpoint, honoring the
// configured minimum interval between sends.
func (n *WebhookNotifier) Send(ctx context.Context, alert *models.SecurityAlert) error {
	n.mu.RLock()
	if !n.enabled || n.webhookURL == "" {
		n.mu.RUnlock()
		return nil
	}
	webhookURL := n.webhookURL
	headers := make(map[string]string)
	for k, v := range n.headers {
		headers[k] = v
	}
	rateLimit := n.rateLimit
	lastSent := n.lastSent
	n.mu.RUnlock()

	if time.Since(lastSent) < rateLimit {
		waitTime := rateLimit - time.Since(lastSent)
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload := WebhookPayload{
		Alert:     alert,
		EventType: "security_alert",
		Timestamp: time.Now(),
		Source:    "qr-verify",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	n.mu.Lock()
	n.lastSent = time.Now()
	n.mu.Unlock()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
