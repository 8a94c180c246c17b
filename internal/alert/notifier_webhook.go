// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/swamppop/tailwatch/internal/models"
)

// WebhookNotifier sends alerts to a generic webhook endpoint.
type WebhookNotifier struct {
	webhookURL string
	headers    map[string]string
	client     *http.Client
	enabled    bool

	mu        sync.Mutex
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL         string            `koanf:"url"`
	Headers     map[string]string `koanf:"headers"` // custom headers (e.g. auth)
	Enabled     bool              `koanf:"enabled"`
	RateLimitMs int               `koanf:"rate_limit_ms"`
}

// WebhookPayload is the JSON payload posted to the webhook endpoint.
type WebhookPayload struct {
	Alert     *models.Alert `json:"alert"`
	EventType string        `json:"event_type"` // detection_alert
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // tailwatch
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	rateLimit := time.Duration(cfg.RateLimitMs) * time.Millisecond
	if rateLimit == 0 {
		rateLimit = 500 * time.Millisecond
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		webhookURL: cfg.URL,
		headers:    headers,
		enabled:    cfg.Enabled,
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

// Enabled returns whether this notifier is enabled.
func (n *WebhookNotifier) Enabled() bool {
	return n.enabled && n.webhookURL != ""
}

// Send delivers an alert to the webhook endpoint.
func (n *WebhookNotifier) Send(ctx context.Context, a *models.Alert) error {
	if !n.Enabled() {
		return nil
	}

	if err := n.waitRateLimit(ctx); err != nil {
		return err
	}

	payload := WebhookPayload{
		Alert:     a,
		EventType: "detection_alert",
		Timestamp: time.Now(),
		Source:    "tailwatch",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// waitRateLimit enforces the minimum spacing between deliveries, honoring
// context cancellation.
func (n *WebhookNotifier) waitRateLimit(ctx context.Context) error {
	n.mu.Lock()
	wait := n.rateLimit - time.Since(n.lastSent)
	n.lastSent = time.Now().Add(wait)
	n.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
