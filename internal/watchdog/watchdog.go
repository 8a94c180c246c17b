// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package watchdog supervises the upstream capture process: it checks
// liveness, data artifact presence, and data freshness, and can restart
// the process within a bounded attempt budget.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/metrics"
)

// ProcessController issues lifecycle intent to the capture process. The
// watchdog interprets only boolean and error results, never process output.
type ProcessController interface {
	IsRunning(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Start(ctx context.Context, interfaceName string) error
}

// DataSource locates the capture tool's data artifact and reports how
// recently it was written.
type DataSource interface {
	// Locate resolves the current artifact path, or an error if none
	// exists.
	Locate() (string, error)

	// LastModified returns the artifact's modification time.
	LastModified() (time.Time, error)

	// NewestRecordTime returns the timestamp of the newest record in the
	// artifact. Implementations that cannot answer cheaply may return the
	// zero time with nil error; the freshness check then relies on the
	// modification time alone.
	NewestRecordTime(ctx context.Context) (time.Time, error)
}

// CheckState is the tri-state outcome of one health check step. A check
// skipped by short-circuiting stays CheckUnknown rather than reading as a
// failure.
type CheckState string

const (
	CheckUnknown CheckState = "unknown"
	CheckOK      CheckState = "ok"
	CheckFailed  CheckState = "failed"
)

// HealthStatus is the outcome of one watchdog evaluation. Recomputed on
// every check; the watchdog's counters persist separately.
type HealthStatus struct {
	Healthy bool `json:"healthy"`

	ProcessRunning     CheckState `json:"process_running"`
	DataSourceExists   CheckState `json:"data_source_exists"`
	DataSourceUpdating CheckState `json:"data_source_updating"`
	DataFresh          CheckState `json:"data_fresh"`

	Issues []string `json:"issues,omitempty"`

	RecoveryAttempted  bool `json:"recovery_attempted"`
	RecoverySuccessful bool `json:"recovery_successful"`
}

// Config configures the watchdog.
type Config struct {
	// FreshnessWindow is how stale the artifact may be before the data is
	// considered dead.
	FreshnessWindow time.Duration `koanf:"freshness_window"`

	// AutoRestart enables bounded automatic recovery.
	AutoRestart bool `koanf:"auto_restart"`

	// RestartCooldown is the minimum interval between restart attempts.
	RestartCooldown time.Duration `koanf:"restart_cooldown"`

	// MaxRestartAttempts caps restart attempts. Exceeding the cap is
	// terminal until Reset is called after a manual fix.
	MaxRestartAttempts int `koanf:"max_restart_attempts"`

	// StopWait is the pause between stopping and starting the process.
	StopWait time.Duration `koanf:"stop_wait"`

	// StartupDelay is how long to wait after start before confirming
	// liveness.
	StartupDelay time.Duration `koanf:"startup_delay"`

	// InterfaceName is passed to ProcessController.Start.
	InterfaceName string `koanf:"interface_name"`

	// ProcessName is the capture process matched in the process table.
	ProcessName string `koanf:"process_name"`

	// Command launches the capture tool on restart, with Args prepended
	// before the interface name.
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// DefaultConfig returns the default watchdog configuration.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow:    5 * time.Minute,
		AutoRestart:        true,
		RestartCooldown:    60 * time.Second,
		MaxRestartAttempts: 3,
		StopWait:           2 * time.Second,
		StartupDelay:       5 * time.Second,
		InterfaceName:      "wlan0",
		ProcessName:        "kismet",
		Command:            "kismet",
	}
}

// Watchdog owns the recovery counters across checks. It is driven from the
// engine's sequential loop; nothing else touches its state.
type Watchdog struct {
	cfg       Config
	processes ProcessController
	data      DataSource

	consecutiveFailures int
	restartCount        int
	lastRestart         time.Time
	lastModTime         time.Time

	// Swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a watchdog.
func New(cfg Config, processes ProcessController, data DataSource) *Watchdog {
	return &Watchdog{
		cfg:       cfg,
		processes: processes,
		data:      data,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Check runs the health checks in order, short-circuiting on the first
// failure, and attempts recovery when permitted. Never returns an error:
// every failure mode is reported inside the status.
func (w *Watchdog) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:            true,
		ProcessRunning:     CheckUnknown,
		DataSourceExists:   CheckUnknown,
		DataSourceUpdating: CheckUnknown,
		DataFresh:          CheckUnknown,
	}

	w.runChecks(ctx, &status)

	if status.Healthy {
		w.consecutiveFailures = 0
		metrics.WatchdogChecks.WithLabelValues("healthy").Inc()
		return status
	}

	w.consecutiveFailures++
	metrics.WatchdogChecks.WithLabelValues("unhealthy").Inc()
	logging.Warn().
		Int("consecutive_failures", w.consecutiveFailures).
		Strs("issues", status.Issues).
		Msg("capture process unhealthy")

	if w.cfg.AutoRestart {
		w.maybeRecover(ctx, &status)
	}
	return status
}

// runChecks performs the three ordered checks. Process liveness failure
// makes the remaining checks meaningless, so they are left unknown.
func (w *Watchdog) runChecks(ctx context.Context, status *HealthStatus) {
	running, err := w.processes.IsRunning(ctx)
	if err != nil {
		status.Healthy = false
		status.ProcessRunning = CheckFailed
		status.Issues = append(status.Issues, fmt.Sprintf("cannot determine capture process state: %v", err))
		return
	}
	if !running {
		status.Healthy = false
		status.ProcessRunning = CheckFailed
		status.Issues = append(status.Issues, "capture process is not running")
		return
	}
	status.ProcessRunning = CheckOK

	path, err := w.data.Locate()
	if err != nil {
		status.Healthy = false
		status.DataSourceExists = CheckFailed
		status.Issues = append(status.Issues, fmt.Sprintf("capture data source not found: %v", err))
		return
	}
	status.DataSourceExists = CheckOK

	w.checkFreshness(ctx, status, path)
}

func (w *Watchdog) checkFreshness(ctx context.Context, status *HealthStatus, path string) {
	modTime, err := w.data.LastModified()
	if err != nil {
		status.Healthy = false
		status.DataFresh = CheckFailed
		status.Issues = append(status.Issues, fmt.Sprintf("cannot stat data source %s: %v", path, err))
		return
	}

	// Updating means the artifact moved since the previous check. The
	// first ever check has no baseline and stays unknown.
	if !w.lastModTime.IsZero() {
		if modTime.After(w.lastModTime) {
			status.DataSourceUpdating = CheckOK
		} else {
			status.DataSourceUpdating = CheckFailed
		}
	}
	w.lastModTime = modTime

	now := w.now()
	fresh := now.Sub(modTime) <= w.cfg.FreshnessWindow

	// The newest record timestamp, when available, is a stricter signal
	// than the file mtime.
	if newest, err := w.data.NewestRecordTime(ctx); err == nil && !newest.IsZero() {
		fresh = fresh && now.Sub(newest) <= w.cfg.FreshnessWindow
	}

	if !fresh {
		status.Healthy = false
		status.DataFresh = CheckFailed
		status.Issues = append(status.Issues, fmt.Sprintf("no data update within %s", w.cfg.FreshnessWindow))
		return
	}
	status.DataFresh = CheckOK
}

// maybeRecover restarts the capture process if the attempt cap and cooldown
// permit. The restart count increments on every attempt regardless of
// outcome and never resets automatically.
func (w *Watchdog) maybeRecover(ctx context.Context, status *HealthStatus) {
	if w.restartCount >= w.cfg.MaxRestartAttempts {
		status.Issues = append(status.Issues,
			fmt.Sprintf("restart attempts exhausted (%d/%d); manual intervention required",
				w.restartCount, w.cfg.MaxRestartAttempts))
		return
	}
	now := w.now()
	if !w.lastRestart.IsZero() && now.Sub(w.lastRestart) < w.cfg.RestartCooldown {
		logging.Debug().Msg("restart cooldown active, deferring recovery")
		return
	}

	w.restartCount++
	w.lastRestart = now
	status.RecoveryAttempted = true
	metrics.WatchdogRestarts.Inc()

	logging.Warn().
		Int("attempt", w.restartCount).
		Int("max_attempts", w.cfg.MaxRestartAttempts).
		Msg("restarting capture process")

	if err := w.processes.Stop(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to stop capture process")
	}
	w.sleep(ctx, w.cfg.StopWait)

	if err := w.processes.Start(ctx, w.cfg.InterfaceName); err != nil {
		logging.Error().Err(err).Msg("failed to start capture process")
		status.Issues = append(status.Issues, fmt.Sprintf("restart failed: %v", err))
		return
	}
	w.sleep(ctx, w.cfg.StartupDelay)

	running, err := w.processes.IsRunning(ctx)
	if err != nil || !running {
		status.Issues = append(status.Issues, "capture process did not come back after restart")
		return
	}

	status.RecoverySuccessful = true
	logging.Info().Int("attempt", w.restartCount).Msg("capture process restarted")
}

// Reset clears the recovery counters after a manual fix.
func (w *Watchdog) Reset() {
	w.restartCount = 0
	w.consecutiveFailures = 0
	w.lastRestart = time.Time{}
	logging.Info().Msg("watchdog counters reset")
}

// RestartCount returns how many restart attempts have been made since the
// last Reset.
func (w *Watchdog) RestartCount() int {
	return w.restartCount
}

// ConsecutiveFailures returns the current unhealthy streak length.
func (w *Watchdog) ConsecutiveFailures() int {
	return w.consecutiveFailures
}
