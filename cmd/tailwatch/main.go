// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package main is the entry point for the tailwatch daemon.
//
// Tailwatch watches a Kismet capture database for signs of wireless
// surveillance: known drone hardware, drone-like flight behavior, and
// devices or probed network names that keep reappearing across rolling
// time windows. It also supervises the capture process itself, restarting
// it within bounded limits when it dies or stops producing data.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (env > config file > defaults)
//  2. Logging: zerolog, json or console format
//  3. Kismet feed: newest capture database, opened read-only
//  4. Detection components: tracker, matcher, analyzer, dispatcher, watchdog
//  5. History sink: BadgerDB detection archive (optional)
//  6. Supervisor tree: detection engine + Prometheus metrics listener
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the in-flight detection
// cycle completes, pending alert deliveries are flushed, and the feed and
// history database are closed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/swamppop/tailwatch/internal/alert"
	"github.com/swamppop/tailwatch/internal/behavior"
	"github.com/swamppop/tailwatch/internal/config"
	"github.com/swamppop/tailwatch/internal/engine"
	"github.com/swamppop/tailwatch/internal/feed"
	"github.com/swamppop/tailwatch/internal/history"
	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/oui"
	"github.com/swamppop/tailwatch/internal/supervisor"
	"github.com/swamppop/tailwatch/internal/tracking"
	"github.com/swamppop/tailwatch/internal/watchdog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("kismet_log_dir", cfg.Kismet.LogDir).
		Dur("interval", cfg.Engine.Interval).
		Bool("auto_restart", cfg.Watchdog.AutoRestart).
		Msg("Starting tailwatch")

	devFeed, err := feed.OpenKismet(cfg.Kismet)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open kismet capture database")
	}

	var sink history.Sink = history.NopSink{}
	if cfg.History.Enabled {
		badgerSink, err := history.OpenBadger(cfg.History)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open history database")
		}
		sink = badgerSink
	}

	var notifiers []alert.Notifier
	if cfg.Webhook.Enabled {
		notifiers = append(notifiers, alert.NewWebhookNotifier(cfg.Webhook))
	}
	dispatcher := alert.NewDispatcher(cfg.Alerts, notifiers...)

	var wd *watchdog.Watchdog
	if cfg.Watchdog.AutoRestart || cfg.Engine.WatchdogEvery > 0 {
		controller := watchdog.NewCaptureController(cfg.Watchdog.ProcessName, cfg.Watchdog.Command, cfg.Watchdog.Args...)
		wd = watchdog.New(cfg.Watchdog, controller, devFeed)
	}

	eng := engine.New(
		cfg.Engine,
		devFeed,
		tracking.New(cfg.Tracking),
		oui.NewMatcherWithPrefixes(cfg.Detection.ExtraDronePrefixes),
		behavior.NewAnalyzer(cfg.Behavior),
		dispatcher,
		wd,
		sink,
	)

	tree := supervisor.NewTree(slog.Default(), supervisor.DefaultTreeConfig())
	tree.Add(eng)
	if cfg.Metrics.Enabled {
		tree.Add(supervisor.NewMetricsService(cfg.Metrics.Listen, 0))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("tailwatch stopped")
}
