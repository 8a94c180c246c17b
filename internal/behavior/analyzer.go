// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package behavior scores devices against multiple independent patterns
// consistent with an aerial platform: mobility, signal profile, hovering,
// probe behavior, and association state. Each pattern contributes a fixed
// weight; the weighted sum is the drone-likeness confidence.
package behavior

import (
	"fmt"
	"strings"
	"time"

	"github.com/swamppop/tailwatch/internal/geo"
	"github.com/swamppop/tailwatch/internal/models"
)

// Pattern names, reported per analysis for explainability.
type Pattern string

const (
	PatternHighMobility   Pattern = "high_mobility"
	PatternSignalVariance Pattern = "signal_variance"
	PatternHovering       Pattern = "hovering"
	PatternBriefPresence  Pattern = "brief_appearance"
	PatternNoAssociation  Pattern = "no_association"
	PatternHighSignal     Pattern = "high_signal"
	PatternProbeFrequency Pattern = "high_probe_frequency"
	PatternChannelHopping Pattern = "channel_hopping"
	PatternNoClients      Pattern = "no_clients"
)

// ReasonInsufficientData is set on results for devices with fewer
// appearances than the configured minimum.
const ReasonInsufficientData = "insufficient_data"

// Weights holds the per-pattern score contribution. The defaults sum to
// 1.0; they are empirically chosen tunables, not derived constants.
type Weights struct {
	HighMobility   float64 `koanf:"high_mobility"`
	SignalVariance float64 `koanf:"signal_variance"`
	Hovering       float64 `koanf:"hovering"`
	BriefPresence  float64 `koanf:"brief_appearance"`
	NoAssociation  float64 `koanf:"no_association"`
	HighSignal     float64 `koanf:"high_signal"`
	ProbeFrequency float64 `koanf:"high_probe_frequency"`
	ChannelHopping float64 `koanf:"channel_hopping"`
	NoClients      float64 `koanf:"no_clients"`
}

// DefaultWeights returns the default pattern weight vector.
func DefaultWeights() Weights {
	return Weights{
		HighMobility:   0.15,
		SignalVariance: 0.10,
		Hovering:       0.12,
		BriefPresence:  0.08,
		NoAssociation:  0.15,
		HighSignal:     0.10,
		ProbeFrequency: 0.10,
		ChannelHopping: 0.10,
		NoClients:      0.10,
	}
}

// Config configures the analyzer.
type Config struct {
	// MinAppearances is the minimum history length before analysis runs.
	MinAppearances int `koanf:"min_appearances"`

	// ConfidenceThreshold is the confidence at or above which a
	// behavioral alert fires.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// MobilitySpeed is the average ground speed in m/s above which the
	// high-mobility pattern fires.
	MobilitySpeed float64 `koanf:"mobility_speed_ms"`

	// SignalStdDev normalizes the graded signal-variance pattern: the
	// observed standard deviation divided by this value, capped at 1,
	// scales the pattern weight.
	SignalStdDev float64 `koanf:"signal_stddev_dbm"`

	// HoverRadius is the radius in meters around the position centroid
	// within which all fixes must lie for the hovering pattern.
	HoverRadius float64 `koanf:"hover_radius_m"`

	// BriefPresence is the maximum observed span for the brief-appearance
	// pattern.
	BriefPresence time.Duration `koanf:"brief_appearance"`

	// HighSignal is the mean signal in dBm above which the high-signal
	// pattern fires.
	HighSignal float64 `koanf:"high_signal_dbm"`

	// ProbeRate is the probes-per-minute rate above which the
	// probe-frequency pattern fires.
	ProbeRate float64 `koanf:"probe_rate_per_min"`

	// ChannelHop is the distinct channel count above which the
	// channel-hopping pattern fires.
	ChannelHop int `koanf:"channel_hop_count"`

	// CleanupMaxAge is how long after last-seen a history is retained.
	CleanupMaxAge time.Duration `koanf:"cleanup_max_age"`

	// PatternWeights is the per-pattern contribution vector.
	PatternWeights Weights `koanf:"pattern_weights"`
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		MinAppearances:      3,
		ConfidenceThreshold: 0.60,
		MobilitySpeed:       15.0,
		SignalStdDev:        5.0,
		HoverRadius:         50.0,
		BriefPresence:       300 * time.Second,
		HighSignal:          -50.0,
		ProbeRate:           10.0,
		ChannelHop:          3,
		CleanupMaxAge:       24 * time.Hour,
		PatternWeights:      DefaultWeights(),
	}
}

// PatternResult reports one pattern's outcome for explainability.
type PatternResult struct {
	Detected     bool    `json:"detected"`
	Evidence     string  `json:"evidence,omitempty"`
	Contribution float64 `json:"contribution"`
}

// Result is the outcome of analyzing one device. Recomputed fresh on every
// analysis; never cached.
type Result struct {
	DeviceID   string                    `json:"device_id"`
	Confidence float64                   `json:"confidence"`
	Patterns   map[Pattern]PatternResult `json:"patterns,omitempty"`
	Reason     string                    `json:"reason,omitempty"`
}

// Analyzer owns the per-device rolling histories and computes weighted
// multi-pattern confidence scores. Mutated only from the engine's single
// processing path; no locking.
type Analyzer struct {
	cfg       Config
	histories map[string]*DeviceHistory
}

// NewAnalyzer creates an analyzer with no tracked histories.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		histories: make(map[string]*DeviceHistory),
	}
}

// Update creates or updates the history for the snapshot's device.
func (a *Analyzer) Update(snap *models.DeviceSnapshot) {
	id := snap.NormalizedID()
	h, ok := a.histories[id]
	if !ok {
		h = newDeviceHistory(id, snap.Timestamp)
		a.histories[id] = h
	}
	h.record(snap)
}

// Analyze computes the confidence score for a device. Devices with fewer
// than MinAppearances observations return confidence 0 with
// ReasonInsufficientData.
func (a *Analyzer) Analyze(id string) Result {
	h, ok := a.histories[normalize(id)]
	if !ok || h.Appearances() < a.cfg.MinAppearances {
		return Result{
			DeviceID:   normalize(id),
			Confidence: 0,
			Reason:     ReasonInsufficientData,
		}
	}

	patterns := map[Pattern]PatternResult{
		PatternHighMobility:   a.checkMobility(h),
		PatternSignalVariance: a.checkSignalVariance(h),
		PatternHovering:       a.checkHovering(h),
		PatternBriefPresence:  a.checkBriefPresence(h),
		PatternNoAssociation:  a.checkNoAssociation(h),
		PatternHighSignal:     a.checkHighSignal(h),
		PatternProbeFrequency: a.checkProbeFrequency(h),
		PatternChannelHopping: a.checkChannelHopping(h),
		PatternNoClients:      a.checkNoClients(h),
	}

	var confidence float64
	for _, r := range patterns {
		confidence += r.Contribution
	}
	confidence = clamp01(confidence)

	return Result{
		DeviceID:   h.ID,
		Confidence: confidence,
		Patterns:   patterns,
	}
}

// ConfidenceThreshold returns the configured alert threshold.
func (a *Analyzer) ConfidenceThreshold() float64 {
	return a.cfg.ConfidenceThreshold
}

// CleanupMaxAge returns the configured history retention age.
func (a *Analyzer) CleanupMaxAge() time.Duration {
	return a.cfg.CleanupMaxAge
}

// Cleanup removes histories whose last observation predates now - maxAge
// and returns the number removed. Invoked periodically by the engine; it
// does not self-trigger.
func (a *Analyzer) Cleanup(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	var removed int
	for id, h := range a.histories {
		if h.LastSeen.Before(cutoff) {
			delete(a.histories, id)
			removed++
		}
	}
	return removed
}

// TrackedCount returns the number of device histories currently held.
func (a *Analyzer) TrackedCount() int {
	return len(a.histories)
}

func (a *Analyzer) checkMobility(h *DeviceHistory) PatternResult {
	speed, ok := h.averageSpeed()
	if !ok {
		// GPS-dependent pattern cannot evaluate without two timed fixes.
		return PatternResult{Evidence: "fewer than two GPS fixes"}
	}
	if speed <= a.cfg.MobilitySpeed {
		return PatternResult{Evidence: fmt.Sprintf("avg speed %.1f m/s", speed)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("avg speed %.1f m/s over %d fixes", speed, len(h.fixes)),
		Contribution: a.cfg.PatternWeights.HighMobility,
	}
}

// checkSignalVariance is the one graded pattern: it contributes
// proportionally to the normalized standard deviation instead of a flat
// weight.
func (a *Analyzer) checkSignalVariance(h *DeviceHistory) PatternResult {
	stddev := geo.StdDev(h.signals)
	if stddev <= 0 || a.cfg.SignalStdDev <= 0 {
		return PatternResult{Evidence: "no signal variance"}
	}
	ratio := stddev / a.cfg.SignalStdDev
	if ratio > 1.0 {
		ratio = 1.0
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("signal stddev %.1f dBm (normalized %.2f)", stddev, ratio),
		Contribution: a.cfg.PatternWeights.SignalVariance * ratio,
	}
}

func (a *Analyzer) checkHovering(h *DeviceHistory) PatternResult {
	positions := h.positions()
	if len(positions) < 3 {
		return PatternResult{Evidence: "fewer than three GPS fixes"}
	}
	spread := geo.MaxDistanceFromCentroid(positions)
	if spread > a.cfg.HoverRadius {
		return PatternResult{Evidence: fmt.Sprintf("position spread %.0f m", spread)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("%d fixes within %.0f m of centroid", len(positions), spread),
		Contribution: a.cfg.PatternWeights.Hovering,
	}
}

func (a *Analyzer) checkBriefPresence(h *DeviceHistory) PatternResult {
	span := h.Span()
	if span > a.cfg.BriefPresence {
		return PatternResult{Evidence: fmt.Sprintf("observed span %s", span)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("observed span %s", span),
		Contribution: a.cfg.PatternWeights.BriefPresence,
	}
}

func (a *Analyzer) checkNoAssociation(h *DeviceHistory) PatternResult {
	if h.everAssociated {
		return PatternResult{Evidence: "associated at least once"}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     "never associated to a network",
		Contribution: a.cfg.PatternWeights.NoAssociation,
	}
}

func (a *Analyzer) checkHighSignal(h *DeviceHistory) PatternResult {
	mean := geo.Mean(h.signals)
	if mean <= a.cfg.HighSignal {
		return PatternResult{Evidence: fmt.Sprintf("mean signal %.1f dBm", mean)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("mean signal %.1f dBm", mean),
		Contribution: a.cfg.PatternWeights.HighSignal,
	}
}

func (a *Analyzer) checkProbeFrequency(h *DeviceHistory) PatternResult {
	spanMinutes := h.Span().Minutes()
	// Sub-minute spans would inflate the rate absurdly; floor at one
	// minute.
	if spanMinutes < 1 {
		spanMinutes = 1
	}
	rate := float64(h.probeCount) / spanMinutes
	if rate <= a.cfg.ProbeRate {
		return PatternResult{Evidence: fmt.Sprintf("%.1f probes/min", rate)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("%.1f probes/min (%d probes over %.1f min)", rate, h.probeCount, spanMinutes),
		Contribution: a.cfg.PatternWeights.ProbeFrequency,
	}
}

func (a *Analyzer) checkChannelHopping(h *DeviceHistory) PatternResult {
	n := len(h.channels)
	if n <= a.cfg.ChannelHop {
		return PatternResult{Evidence: fmt.Sprintf("%d distinct channels", n)}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     fmt.Sprintf("%d distinct channels", n),
		Contribution: a.cfg.PatternWeights.ChannelHopping,
	}
}

func (a *Analyzer) checkNoClients(h *DeviceHistory) PatternResult {
	if h.everHadClients {
		return PatternResult{Evidence: "had clients at least once"}
	}
	return PatternResult{
		Detected:     true,
		Evidence:     "no clients ever observed",
		Contribution: a.cfg.PatternWeights.NoClients,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalize(id string) string {
	return strings.ToLower(id)
}
