// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package config loads and validates the tailwatch configuration.
// Precedence: environment variables > config file > struct defaults.
package config

import (
	"fmt"

	"github.com/swamppop/tailwatch/internal/alert"
	"github.com/swamppop/tailwatch/internal/behavior"
	"github.com/swamppop/tailwatch/internal/engine"
	"github.com/swamppop/tailwatch/internal/feed"
	"github.com/swamppop/tailwatch/internal/history"
	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/tracking"
	"github.com/swamppop/tailwatch/internal/watchdog"
)

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// DetectionConfig holds the matcher options not owned by another section.
type DetectionConfig struct {
	// ExtraDronePrefixes maps additional 3-octet hardware prefixes to
	// manufacturer names, merged over the built-in table.
	ExtraDronePrefixes map[string]string `koanf:"extra_drone_prefixes"`
}

// Config is the root configuration.
type Config struct {
	Logging   logging.Config      `koanf:"logging"`
	Kismet    feed.KismetConfig   `koanf:"kismet"`
	Tracking  tracking.Config     `koanf:"tracking"`
	Behavior  behavior.Config     `koanf:"behavior"`
	Detection DetectionConfig     `koanf:"detection"`
	Alerts    alert.Config        `koanf:"alerts"`
	Webhook   alert.WebhookConfig `koanf:"webhook"`
	Watchdog  watchdog.Config     `koanf:"watchdog"`
	Engine    engine.Config       `koanf:"engine"`
	History   history.Config      `koanf:"history"`
	Metrics   MetricsConfig       `koanf:"metrics"`
}

func defaultConfig() *Config {
	return &Config{
		Logging:  logging.DefaultConfig(),
		Kismet:   feed.DefaultKismetConfig(),
		Tracking: tracking.DefaultConfig(),
		Behavior: behavior.DefaultConfig(),
		Alerts:   alert.DefaultConfig(),
		Watchdog: watchdog.DefaultConfig(),
		Engine:   engine.DefaultConfig(),
		History:  history.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9220",
		},
	}
}

// Validate refuses startup on configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateBehavior(); err != nil {
		return err
	}
	if err := c.validateAlerts(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url must be set when the webhook is enabled")
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.ScoreThreshold <= 0 {
		return fmt.Errorf("tracking.score_threshold must be positive, got %d", c.Tracking.ScoreThreshold)
	}
	var sum int
	for i, w := range c.Tracking.Weights {
		if w < 0 {
			return fmt.Errorf("tracking.weights[%d] must not be negative, got %d", i, w)
		}
		sum += w
	}
	if sum < c.Tracking.ScoreThreshold {
		return fmt.Errorf("tracking.score_threshold %d is unreachable with weights summing to %d", c.Tracking.ScoreThreshold, sum)
	}
	return nil
}

func (c *Config) validateBehavior() error {
	b := &c.Behavior
	if b.ConfidenceThreshold <= 0 || b.ConfidenceThreshold > 1 {
		return fmt.Errorf("behavior.confidence_threshold must be in (0, 1], got %g", b.ConfidenceThreshold)
	}
	if b.MinAppearances < 1 {
		return fmt.Errorf("behavior.min_appearances must be at least 1, got %d", b.MinAppearances)
	}
	weights := []struct {
		name  string
		value float64
	}{
		{"high_mobility", b.PatternWeights.HighMobility},
		{"signal_variance", b.PatternWeights.SignalVariance},
		{"hovering", b.PatternWeights.Hovering},
		{"brief_appearance", b.PatternWeights.BriefPresence},
		{"no_association", b.PatternWeights.NoAssociation},
		{"high_signal", b.PatternWeights.HighSignal},
		{"high_probe_frequency", b.PatternWeights.ProbeFrequency},
		{"channel_hopping", b.PatternWeights.ChannelHopping},
		{"no_clients", b.PatternWeights.NoClients},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("behavior.weights.%s must be in [0, 1], got %g", w.name, w.value)
		}
	}
	if b.MobilitySpeed <= 0 || b.HoverRadius <= 0 || b.SignalStdDev <= 0 {
		return fmt.Errorf("behavior pattern thresholds must be positive")
	}
	if b.CleanupMaxAge <= 0 {
		return fmt.Errorf("behavior.cleanup_max_age must be positive, got %s", b.CleanupMaxAge)
	}
	return nil
}

func (c *Config) validateAlerts() error {
	for class, d := range c.Alerts.Cooldowns {
		if d < 0 {
			return fmt.Errorf("alerts.cooldowns.%s must not be negative, got %s", class, d)
		}
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	w := &c.Watchdog
	if w.FreshnessWindow <= 0 {
		return fmt.Errorf("watchdog.freshness_window must be positive, got %s", w.FreshnessWindow)
	}
	if w.AutoRestart {
		if w.MaxRestartAttempts < 1 {
			return fmt.Errorf("watchdog.max_restart_attempts must be at least 1 when auto-restart is enabled, got %d", w.MaxRestartAttempts)
		}
		if w.RestartCooldown <= 0 {
			return fmt.Errorf("watchdog.restart_cooldown must be positive when auto-restart is enabled, got %s", w.RestartCooldown)
		}
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := &c.Engine
	if e.Interval <= 0 {
		return fmt.Errorf("engine.interval must be positive, got %s", e.Interval)
	}
	if e.Lookback <= 0 {
		return fmt.Errorf("engine.lookback must be positive, got %s", e.Lookback)
	}
	if e.RotateEvery < 1 {
		return fmt.Errorf("engine.rotate_every must be at least 1, got %d", e.RotateEvery)
	}
	if e.WatchdogEvery < 0 {
		return fmt.Errorf("engine.watchdog_every must not be negative, got %d", e.WatchdogEvery)
	}
	return nil
}
