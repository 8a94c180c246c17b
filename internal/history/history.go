// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package history persists detection records for later review.
package history

import (
	"github.com/swamppop/tailwatch/internal/models"
)

// Sink receives detection records as the engine produces them. Writes
// must not block the detection cycle for long.
type Sink interface {
	Record(rec models.DetectionRecord) error
	Close() error
}

// NopSink discards every record. Used when history is disabled.
type NopSink struct{}

func (NopSink) Record(models.DetectionRecord) error { return nil }
func (NopSink) Close() error                        { return nil }
