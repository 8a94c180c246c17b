// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package alert emits detection alerts through registered notifiers, with
// per-class cooldown gating so a recurring subject does not spam the
// operator every cycle.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/metrics"
	"github.com/swamppop/tailwatch/internal/models"
)

// Notifier sends alerts to an external channel.
type Notifier interface {
	// Send delivers an alert. May block; the dispatcher calls it from a
	// short-lived goroutine and never propagates its error.
	Send(ctx context.Context, a *models.Alert) error

	// Name returns the notifier name (e.g. "webhook").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Config configures the dispatcher.
type Config struct {
	// Cooldowns is the minimum interval between alerts for the same
	// (class, subject) pair, per class.
	Cooldowns map[models.AlertClass]time.Duration `koanf:"cooldowns"`
}

// DefaultConfig returns the default per-class cooldowns.
func DefaultConfig() Config {
	return Config{
		Cooldowns: map[models.AlertClass]time.Duration{
			models.AlertClassDrone:       30 * time.Second,
			models.AlertClassBehavioral:  60 * time.Second,
			models.AlertClassPersistence: 60 * time.Second,
			models.AlertClassProbe:       60 * time.Second,
		},
	}
}

// Dispatcher gates alerts behind per-subject cooldowns and fans fired
// alerts out to notifiers without blocking the detection cycle.
//
// The cooldown map is mutated only from the engine's single processing
// path; only the delivery fan-out is concurrent.
type Dispatcher struct {
	cooldowns map[models.AlertClass]time.Duration
	lastFired map[models.CooldownKey]time.Time
	notifiers []Notifier

	wg sync.WaitGroup

	// now is swappable for tests.
	now func() time.Time
}

// NewDispatcher creates a dispatcher with the given notifiers.
func NewDispatcher(cfg Config, notifiers ...Notifier) *Dispatcher {
	cooldowns := make(map[models.AlertClass]time.Duration, len(cfg.Cooldowns))
	for k, v := range cfg.Cooldowns {
		cooldowns[k] = v
	}
	return &Dispatcher{
		cooldowns: cooldowns,
		lastFired: make(map[models.CooldownKey]time.Time),
		notifiers: notifiers,
		now:       time.Now,
	}
}

// Fire emits the alert unless its (class, subject) pair fired within the
// class cooldown. Returns true if the alert was emitted, false if it was
// suppressed. Suppression is a silent no-op apart from a metrics tick.
func (d *Dispatcher) Fire(ctx context.Context, a *models.Alert) bool {
	key := a.Key()
	now := d.now()

	if last, ok := d.lastFired[key]; ok {
		if cooldown := d.cooldowns[a.Class]; now.Sub(last) < cooldown {
			metrics.AlertsSuppressed.WithLabelValues(string(a.Class)).Inc()
			return false
		}
	}
	d.lastFired[key] = now

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	metrics.AlertsFired.WithLabelValues(string(a.Class), string(a.Severity)).Inc()
	logging.Warn().
		Str("class", string(a.Class)).
		Str("subject", a.Subject).
		Str("severity", string(a.Severity)).
		Msg(a.Message)

	d.notify(ctx, a)
	return true
}

// notify fans the alert out to all enabled notifiers. Failures are logged
// and never propagated; a failed delivery must not stop detection.
func (d *Dispatcher) notify(ctx context.Context, a *models.Alert) {
	for _, n := range d.notifiers {
		if !n.Enabled() {
			continue
		}
		d.wg.Add(1)
		go func(n Notifier, a *models.Alert) {
			defer d.wg.Done()
			if err := n.Send(ctx, a); err != nil {
				logging.Error().Err(err).
					Str("notifier", n.Name()).
					Str("class", string(a.Class)).
					Str("subject", a.Subject).
					Msg("failed to send alert")
			}
		}(n, a)
	}
}

// Flush blocks until all in-flight deliveries complete or the context is
// done. Called during graceful shutdown.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
