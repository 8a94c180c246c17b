// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package models defines the core data types shared across the detection
// engine: device snapshots from the capture feed, alerts, and the records
// emitted to the history sink.
package models

import (
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultSignal is substituted when the capture feed reports no signal
// strength for a device.
const DefaultSignal = -100

// CoordinateEpsilon is the threshold for considering coordinates as
// effectively zero. The sentinel (0, 0) means geolocation is unavailable;
// epsilon comparison avoids unreliable direct float equality. 1e-7 degrees
// is roughly 1.1 cm at the equator, well below GPS accuracy.
const CoordinateEpsilon = 1e-7

// IsUnknownLocation returns true if the coordinates represent an unknown
// location (the (0, 0) sentinel, within epsilon).
func IsUnknownLocation(lat, lon float64) bool {
	return math.Abs(lat) < CoordinateEpsilon && math.Abs(lon) < CoordinateEpsilon
}

// HasValidCoordinates is the inverse of IsUnknownLocation for readability.
func HasValidCoordinates(lat, lon float64) bool {
	return !IsUnknownLocation(lat, lon)
}

// DeviceSnapshot is one observation of a wireless device, produced once per
// polling cycle per visible device. Snapshots are immutable; the engine keeps
// no reference to one beyond the cycle that produced it.
type DeviceSnapshot struct {
	// ID is the hardware (MAC) address as reported by the capture tool.
	ID string `json:"id"`

	// Signal is the strongest observed signal in dBm. DefaultSignal (-100)
	// when the feed reported none.
	Signal int `json:"signal"`

	// Latitude and Longitude are the observation position. (0, 0) is the
	// unknown-location sentinel; use HasValidCoordinates before computing
	// with them.
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	// Channel is the radio channel, 0 when unknown.
	Channel int `json:"channel,omitempty"`

	// Type is the device type string declared by the capture tool
	// (e.g. "Wi-Fi AP", "Wi-Fi Client").
	Type string `json:"type,omitempty"`

	// Associated reports whether the device was associated to a network
	// at observation time.
	Associated bool `json:"associated"`

	// ClientCount is the number of clients attached to the device.
	ClientCount int `json:"client_count"`

	// ProbedSSIDs are network names the device probed for.
	ProbedSSIDs []string `json:"probed_ssids,omitempty"`

	// Timestamp is when the capture tool last saw the device.
	Timestamp time.Time `json:"timestamp"`
}

// NormalizedID returns the device id lowercased for map keys and
// case-insensitive comparison.
func (d *DeviceSnapshot) NormalizedID() string {
	return strings.ToLower(d.ID)
}

// AlertClass identifies the detection path that produced an alert. Each
// class carries its own cooldown duration.
type AlertClass string

const (
	// AlertClassDrone marks a drone manufacturer OUI match.
	AlertClassDrone AlertClass = "drone"

	// AlertClassBehavioral marks a multi-pattern behavioral confidence hit.
	AlertClassBehavioral AlertClass = "behavioral"

	// AlertClassPersistence marks a device recurring across time windows.
	AlertClassPersistence AlertClass = "persist"

	// AlertClassProbe marks a probed SSID recurring across time windows.
	AlertClassProbe AlertClass = "probe"
)

// Severity indicates the severity level of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a threat judgment raised by the detection engine.
type Alert struct {
	ID        string          `json:"id"`
	Class     AlertClass      `json:"class"`
	Subject   string          `json:"subject"` // device id or SSID
	Severity  Severity        `json:"severity"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CooldownKey is the typed (class, subject) key for the alert cooldown map.
// A typed key prevents accidental collisions between classes sharing a
// subject id.
type CooldownKey struct {
	Class   AlertClass
	Subject string
}

// Key returns the cooldown key for this alert.
func (a *Alert) Key() CooldownKey {
	return CooldownKey{Class: a.Class, Subject: strings.ToLower(a.Subject)}
}

// DetectionKind labels a DetectionRecord for the history sink.
type DetectionKind string

const (
	DetectionKindDrone       DetectionKind = "drone"
	DetectionKindBehavioral  DetectionKind = "behavioral"
	DetectionKindPersistence DetectionKind = "persistence"
	DetectionKindProbe       DetectionKind = "probe"
)

// DetectionRecord is the write-only archival record emitted per detection.
// The engine never reads these back.
type DetectionRecord struct {
	DeviceID  string        `json:"device_id"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      DetectionKind `json:"kind"`
	Score     float64       `json:"score"`
}
