// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package behavior

import (
	"time"

	"github.com/swamppop/tailwatch/internal/geo"
	"github.com/swamppop/tailwatch/internal/models"
)

// positionFix is a GPS fix paired with its observation time, so speed can
// be computed between consecutive fixes even when some observations carried
// no position.
type positionFix struct {
	pos geo.Position
	at  time.Time
}

// DeviceHistory is the rolling per-device observation record. Owned
// exclusively by the Analyzer; entries are created on first observation and
// removed by age-based cleanup.
type DeviceHistory struct {
	ID        string
	FirstSeen time.Time
	LastSeen  time.Time

	timestamps []time.Time
	signals    []float64
	fixes      []positionFix
	channels   map[int]struct{}
	probeCount int

	// Once set these are never cleared: a device that associated even once
	// is not an unassociated device.
	everAssociated bool
	everHadClients bool
}

func newDeviceHistory(id string, at time.Time) *DeviceHistory {
	return &DeviceHistory{
		ID:        id,
		FirstSeen: at,
		LastSeen:  at,
		channels:  make(map[int]struct{}),
	}
}

// record folds one snapshot into the history.
func (h *DeviceHistory) record(snap *models.DeviceSnapshot) {
	at := snap.Timestamp
	h.LastSeen = at
	h.timestamps = append(h.timestamps, at)
	h.signals = append(h.signals, float64(snap.Signal))

	if models.HasValidCoordinates(snap.Latitude, snap.Longitude) {
		h.fixes = append(h.fixes, positionFix{
			pos: geo.Position{Lat: snap.Latitude, Lon: snap.Longitude},
			at:  at,
		})
	}
	if snap.Channel != 0 {
		h.channels[snap.Channel] = struct{}{}
	}
	h.probeCount += len(snap.ProbedSSIDs)

	if snap.Associated {
		h.everAssociated = true
	}
	if snap.ClientCount > 0 {
		h.everHadClients = true
	}
}

// Appearances returns how many observations the history holds.
func (h *DeviceHistory) Appearances() int {
	return len(h.timestamps)
}

// Span returns the time between first and last observation.
func (h *DeviceHistory) Span() time.Duration {
	return h.LastSeen.Sub(h.FirstSeen)
}

func (h *DeviceHistory) positions() []geo.Position {
	out := make([]geo.Position, len(h.fixes))
	for i, f := range h.fixes {
		out[i] = f.pos
	}
	return out
}

// averageSpeed returns the mean ground speed in m/s across consecutive GPS
// fixes, and whether enough fixes existed to compute one.
func (h *DeviceHistory) averageSpeed() (float64, bool) {
	if len(h.fixes) < 2 {
		return 0, false
	}
	var total float64
	var segments int
	for i := 1; i < len(h.fixes); i++ {
		prev, cur := h.fixes[i-1], h.fixes[i]
		elapsed := cur.at.Sub(prev.at)
		if elapsed <= 0 {
			continue
		}
		total += geo.SpeedMetersPerSec(prev.pos, cur.pos, elapsed)
		segments++
	}
	if segments == 0 {
		return 0, false
	}
	return total / float64(segments), true
}
