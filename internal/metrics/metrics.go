// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package metrics provides Prometheus instrumentation for the detection
// engine: cycle throughput, alert volume, tracked state size, and watchdog
// activity. Metrics are exposed on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection cycle metrics
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_cycles_total",
			Help: "Total number of detection cycles run",
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_cycles_skipped_total",
			Help: "Cycles skipped because the device feed failed",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tailwatch_cycle_duration_seconds",
			Help:    "Duration of one detection cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DevicesSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailwatch_devices_seen",
			Help: "Devices visible in the most recent cycle",
		},
	)

	HistoriesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailwatch_histories_tracked",
			Help: "Device histories currently held by the behavioral analyzer",
		},
	)

	BucketRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_bucket_rotations_total",
			Help: "Time window bucket rotations performed",
		},
	)

	// Alert metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailwatch_alerts_fired_total",
			Help: "Alerts emitted, by class and severity",
		},
		[]string{"class", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailwatch_alerts_suppressed_total",
			Help: "Alerts suppressed by cooldown, by class",
		},
		[]string{"class"},
	)

	// Watchdog metrics
	WatchdogChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailwatch_watchdog_checks_total",
			Help: "Health checks performed, by outcome",
		},
		[]string{"outcome"}, // healthy, unhealthy
	)

	WatchdogRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_watchdog_restarts_total",
			Help: "Capture process restart attempts",
		},
	)

	// History sink metrics
	HistoryRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_history_records_total",
			Help: "Detection records written to the history sink",
		},
	)

	HistoryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailwatch_history_errors_total",
			Help: "Failed history sink writes",
		},
	)
)
