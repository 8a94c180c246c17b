// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package feed supplies device observations to the detection engine. The
// engine only sees the DeviceFeed interface; the concrete implementation
// reads the Kismet capture database.
package feed

import (
	"context"
	"time"

	"github.com/swamppop/tailwatch/internal/models"
)

// DeviceFeed produces the per-cycle device snapshot. Implementations must
// tolerate being queried once per cycle; errors are non-fatal to the
// engine, which skips the cycle and continues.
type DeviceFeed interface {
	// CurrentDevices returns snapshots for every device seen since the
	// given time.
	CurrentDevices(ctx context.Context, since time.Time) ([]models.DeviceSnapshot, error)

	// ProbedNames returns the network names probed for since the given
	// time.
	ProbedNames(ctx context.Context, since time.Time) ([]string, error)

	// Close releases the underlying data source.
	Close() error
}
