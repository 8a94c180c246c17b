// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/swamppop/tailwatch/internal/logging"
)

// ErrProcessNotFound is returned when no capture process matches the
// configured name.
var ErrProcessNotFound = errors.New("capture process not found")

// CaptureController controls the capture tool (Kismet) as a host process.
// Liveness is determined by scanning the process table; start/stop issue
// plain process intent, never shell pipelines.
type CaptureController struct {
	// ProcessName is matched (case-insensitive) against process names.
	ProcessName string

	// Command is the executable to launch, with Args prepended before the
	// interface name.
	Command string
	Args    []string
}

// NewCaptureController creates a controller for the named capture tool.
func NewCaptureController(processName, command string, args ...string) *CaptureController {
	return &CaptureController{
		ProcessName: processName,
		Command:     command,
		Args:        args,
	}
}

// IsRunning reports whether a process with the configured name exists.
func (c *CaptureController) IsRunning(ctx context.Context) (bool, error) {
	p, err := c.find(ctx)
	if errors.Is(err, ErrProcessNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Stop terminates the capture process. Termination is polite (SIGTERM);
// the watchdog's stop-wait gives the process time to flush before restart.
func (c *CaptureController) Stop(ctx context.Context) error {
	p, err := c.find(ctx)
	if err != nil {
		return err
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("failed to terminate %s (pid %d): %w", c.ProcessName, p.Pid, err)
	}
	logging.Info().Int32("pid", p.Pid).Str("process", c.ProcessName).Msg("capture process terminated")
	return nil
}

// Start launches the capture tool against the given interface and detaches
// from it. The capture tool daemonizes itself; we only confirm the launch
// succeeded.
func (c *CaptureController) Start(ctx context.Context, interfaceName string) error {
	args := append(append([]string{}, c.Args...), interfaceName)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Command, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to detach from %s: %w", c.Command, err)
	}
	logging.Info().Int("pid", pid).Str("interface", interfaceName).Msg("capture process started")
	return nil
}

func (c *CaptureController) find(ctx context.Context) (*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	want := strings.ToLower(c.ProcessName)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes exit between listing and inspection.
			continue
		}
		if strings.ToLower(name) == want {
			return p, nil
		}
	}
	return nil, ErrProcessNotFound
}

var _ ProcessController = (*CaptureController)(nil)

// ProcessUptime returns how long the capture process has been running.
// Handy for startup logging; not part of the health checks.
func (c *CaptureController) ProcessUptime(ctx context.Context) (time.Duration, error) {
	p, err := c.find(ctx)
	if err != nil {
		return 0, err
	}
	createdMs, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read process create time: %w", err)
	}
	return time.Since(time.UnixMilli(createdMs)), nil
}
