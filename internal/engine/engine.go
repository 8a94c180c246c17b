// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package engine runs the detection loop: one synchronous cycle per
// interval, feeding the tracker and analyzer and raising alerts. All
// rolling state is mutated from this single path; only alert delivery
// is concurrent.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/swamppop/tailwatch/internal/alert"
	"github.com/swamppop/tailwatch/internal/behavior"
	"github.com/swamppop/tailwatch/internal/feed"
	"github.com/swamppop/tailwatch/internal/history"
	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/metrics"
	"github.com/swamppop/tailwatch/internal/models"
	"github.com/swamppop/tailwatch/internal/oui"
	"github.com/swamppop/tailwatch/internal/tracking"
	"github.com/swamppop/tailwatch/internal/watchdog"
)

// Config configures the detection loop cadence.
type Config struct {
	// Interval is the polling cycle period.
	Interval time.Duration `koanf:"interval"`

	// Lookback is how far back each feed query reaches. Devices last seen
	// within the lookback count as currently visible.
	Lookback time.Duration `koanf:"lookback"`

	// RotateEvery is the number of cycles between bucket rotations. With
	// the default one-minute interval, 5 gives each bucket a five-minute
	// span.
	RotateEvery int `koanf:"rotate_every"`

	// WatchdogEvery is the number of cycles between health checks.
	WatchdogEvery int `koanf:"watchdog_every"`

	// CleanupEvery is the number of cycles between history cleanups.
	CleanupEvery int `koanf:"cleanup_every"`
}

// DefaultConfig returns the default engine cadence.
func DefaultConfig() Config {
	return Config{
		Interval:      time.Minute,
		Lookback:      5 * time.Minute,
		RotateEvery:   5,
		WatchdogEvery: 2,
		CleanupEvery:  60,
	}
}

// Engine orchestrates one polling cycle per interval. It implements the
// suture Service interface via Serve.
type Engine struct {
	cfg        Config
	feed       feed.DeviceFeed
	tracker    *tracking.Tracker
	matcher    *oui.Matcher
	analyzer   *behavior.Analyzer
	dispatcher *alert.Dispatcher
	watchdog   *watchdog.Watchdog
	sink       history.Sink

	cycle int
	now   func() time.Time
}

// New creates a detection engine. The watchdog and sink may be nil; a nil
// sink is replaced with a no-op.
func New(
	cfg Config,
	devFeed feed.DeviceFeed,
	tracker *tracking.Tracker,
	matcher *oui.Matcher,
	analyzer *behavior.Analyzer,
	dispatcher *alert.Dispatcher,
	wd *watchdog.Watchdog,
	sink history.Sink,
) *Engine {
	if sink == nil {
		sink = history.NopSink{}
	}
	return &Engine{
		cfg:        cfg,
		feed:       devFeed,
		tracker:    tracker,
		matcher:    matcher,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		watchdog:   wd,
		sink:       sink,
		now:        time.Now,
	}
}

// String names the engine for supervisor logs.
func (e *Engine) String() string { return "detection-engine" }

// Serve runs the detection loop until the context is cancelled, then
// shuts down gracefully: the in-flight cycle completes, pending alert
// deliveries are flushed, and the feed and sink are closed.
func (e *Engine) Serve(ctx context.Context) error {
	e.logStartup()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

func (e *Engine) logStartup() {
	logging.Info().
		Dur("interval", e.cfg.Interval).
		Int("rotate_every", e.cfg.RotateEvery).
		Int("watchdog_every", e.cfg.WatchdogEvery).
		Int("persistence_threshold", e.tracker.ScoreThreshold()).
		Float64("confidence_threshold", e.analyzer.ConfidenceThreshold()).
		Int("drone_prefixes", e.matcher.Size()).
		Msg("detection engine starting")
}

func (e *Engine) shutdown() error {
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.dispatcher.Flush(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("alert flush incomplete at shutdown")
	}
	if err := e.feed.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close device feed")
	}
	if err := e.sink.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close history sink")
	}
	logging.Info().Int("cycles", e.cycle).Msg("detection engine stopped")
	return nil
}

// RunCycle executes one detection cycle. Feed errors skip the cycle; the
// loop continues at the next interval.
func (e *Engine) RunCycle(ctx context.Context) {
	start := e.now()
	since := start.Add(-e.cfg.Lookback)

	devices, err := e.feed.CurrentDevices(ctx, since)
	if err != nil {
		metrics.CyclesSkipped.Inc()
		logging.Warn().Err(err).Msg("device feed query failed; skipping cycle")
		return
	}
	probes, err := e.feed.ProbedNames(ctx, since)
	if err != nil {
		metrics.CyclesSkipped.Inc()
		logging.Warn().Err(err).Msg("probe feed query failed; skipping cycle")
		return
	}

	e.cycle++
	ids := make([]string, len(devices))
	for i := range devices {
		ids[i] = devices[i].ID
	}

	if e.cfg.RotateEvery > 0 && e.cycle%e.cfg.RotateEvery == 0 {
		e.tracker.Rotate(ids, probes)
		metrics.BucketRotations.Inc()
	} else {
		e.tracker.Observe(ids, probes)
	}

	for i := range devices {
		e.analyzer.Update(&devices[i])
	}

	for i := range devices {
		e.evaluateDevice(ctx, &devices[i])
	}
	e.evaluateProbes(ctx, start)

	if e.watchdog != nil && e.cfg.WatchdogEvery > 0 && e.cycle%e.cfg.WatchdogEvery == 0 {
		e.watchdog.Check(ctx)
	}
	if e.cfg.CleanupEvery > 0 && e.cycle%e.cfg.CleanupEvery == 0 {
		removed := e.analyzer.Cleanup(start, e.analyzer.CleanupMaxAge())
		if removed > 0 {
			logging.Debug().Int("removed", removed).Msg("pruned stale device histories")
		}
	}

	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(e.now().Sub(start).Seconds())
	metrics.DevicesSeen.Set(float64(len(devices)))
	metrics.HistoriesTracked.Set(float64(e.analyzer.TrackedCount()))
}

func (e *Engine) evaluateDevice(ctx context.Context, snap *models.DeviceSnapshot) {
	if manufacturer, ok := e.matcher.Match(snap.ID); ok {
		e.raise(ctx, &models.Alert{
			Class:    models.AlertClassDrone,
			Subject:  snap.ID,
			Severity: models.SeverityCritical,
			Title:    "Drone manufacturer detected",
			Message:  fmt.Sprintf("device %s matches %s hardware prefix (signal %d dBm)", snap.ID, manufacturer, snap.Signal),
		}, models.DetectionKindDrone, 1.0, snap.Timestamp)
	}

	result := e.analyzer.Analyze(snap.ID)
	if result.Confidence >= e.analyzer.ConfidenceThreshold() {
		meta, err := json.Marshal(result.Patterns)
		if err != nil {
			meta = nil
		}
		e.raise(ctx, &models.Alert{
			Class:    models.AlertClassBehavioral,
			Subject:  snap.ID,
			Severity: models.SeverityHigh,
			Title:    "Drone-like behavior detected",
			Message:  fmt.Sprintf("device %s behavioral confidence %.2f", snap.ID, result.Confidence),
			Metadata: meta,
		}, models.DetectionKindBehavioral, result.Confidence, snap.Timestamp)
	}

	if score := e.tracker.DeviceScore(snap.ID); score >= e.tracker.ScoreThreshold() {
		e.raise(ctx, &models.Alert{
			Class:    models.AlertClassPersistence,
			Subject:  snap.ID,
			Severity: models.SeverityHigh,
			Title:    "Persistent device detected",
			Message:  fmt.Sprintf("device %s recurring across time windows (score %d, buckets %v)", snap.ID, score, e.tracker.DeviceMembership(snap.ID)),
		}, models.DetectionKindPersistence, float64(score), snap.Timestamp)
	}
}

// evaluateProbes scores probed network names the same way devices are
// scored. A network name recurring across windows suggests a follower
// probing for its home networks.
func (e *Engine) evaluateProbes(ctx context.Context, now time.Time) {
	for _, ssid := range e.tracker.CurrentProbes() {
		score := e.tracker.ProbeScore(ssid)
		if score < e.tracker.ScoreThreshold() {
			continue
		}
		e.raise(ctx, &models.Alert{
			Class:    models.AlertClassProbe,
			Subject:  ssid,
			Severity: models.SeverityHigh,
			Title:    "Persistent probe detected",
			Message:  fmt.Sprintf("network name %q probed across time windows (score %d)", ssid, score),
		}, models.DetectionKindProbe, float64(score), now)
	}
}

func (e *Engine) raise(ctx context.Context, a *models.Alert, kind models.DetectionKind, score float64, ts time.Time) {
	if !e.dispatcher.Fire(ctx, a) {
		return
	}
	rec := models.DetectionRecord{
		DeviceID:  a.Subject,
		Timestamp: ts,
		Kind:      kind,
		Score:     score,
	}
	if err := e.sink.Record(rec); err != nil {
		logging.Warn().Err(err).Str("subject", a.Subject).Msg("failed to record detection")
	}
}

// Watchdog exposes the engine's watchdog for operator reset after a
// manual fix. Nil when supervision is disabled.
func (e *Engine) Watchdog() *watchdog.Watchdog { return e.watchdog }
