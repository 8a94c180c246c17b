// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package tracking owns the rolling time-window state used to detect
// devices (and probed network names) that keep reappearing over the
// monitoring span. Four FIFO buckets per dimension cover the last ~20
// minutes; a weighted membership score flags persistence.
package tracking

import "strings"

// Bucket identifies one of the four rolling time windows, newest first.
type Bucket int

const (
	// BucketCurrent covers the newest window (0-5 min).
	BucketCurrent Bucket = iota
	// BucketRecent covers 5-10 min ago.
	BucketRecent
	// BucketOlder covers 10-15 min ago.
	BucketOlder
	// BucketOldest covers 15-20 min ago.
	BucketOldest

	bucketCount = 4
)

// String returns the bucket label.
func (b Bucket) String() string {
	switch b {
	case BucketCurrent:
		return "current"
	case BucketRecent:
		return "recent"
	case BucketOlder:
		return "older"
	case BucketOldest:
		return "oldest"
	default:
		return "unknown"
	}
}

// Config configures the tracker.
type Config struct {
	// Weights is the per-bucket score contribution, indexed by Bucket.
	// The defaults {1, 2, 3, 5} are deliberately asymmetric: reappearance
	// in an older window is stronger evidence of tailing than mere
	// recency. These are tunable constants, not derived from data.
	Weights [bucketCount]int `koanf:"weights"`

	// ScoreThreshold is the persistence score at or above which a subject
	// is flagged. The default of 6 requires presence in at least two
	// non-adjacent windows (or the three oldest), so a device seen
	// constantly for only the last five minutes never crosses it alone.
	ScoreThreshold int `koanf:"score_threshold"`

	// IgnoredDevices and IgnoredSSIDs are filtered out at ingestion,
	// case-insensitively, so ignored identifiers never enter any bucket.
	IgnoredDevices []string `koanf:"ignored_devices"`
	IgnoredSSIDs   []string `koanf:"ignored_ssids"`
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Weights:        [bucketCount]int{1, 2, 3, 5},
		ScoreThreshold: 6,
	}
}

// Tracker holds the four rolling sets of device ids and, independently,
// the four rolling sets of probed SSIDs. It is mutated only from the
// engine's single processing path and needs no locking.
//
// Buckets are keyed by the lowercased identifier; the value keeps the
// identifier as first observed so alerts can show the original casing.
type Tracker struct {
	devices [bucketCount]map[string]string
	probes  [bucketCount]map[string]string

	weights        [bucketCount]int
	scoreThreshold int

	ignoredDevices map[string]struct{}
	ignoredSSIDs   map[string]struct{}
}

// New creates a tracker with all buckets empty.
func New(cfg Config) *Tracker {
	t := &Tracker{
		weights:        cfg.Weights,
		scoreThreshold: cfg.ScoreThreshold,
		ignoredDevices: toIgnoreSet(cfg.IgnoredDevices),
		ignoredSSIDs:   toIgnoreSet(cfg.IgnoredSSIDs),
	}
	for i := range t.devices {
		t.devices[i] = make(map[string]string)
		t.probes[i] = make(map[string]string)
	}
	return t
}

func toIgnoreSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = struct{}{}
	}
	return set
}

// Observe merges the cycle's fresh identifiers into the current buckets.
// Called every cycle; the window boundaries only move on Rotate.
func (t *Tracker) Observe(deviceIDs, probedSSIDs []string) {
	t.addFiltered(t.devices[BucketCurrent], deviceIDs, t.ignoredDevices)
	t.addFiltered(t.probes[BucketCurrent], probedSSIDs, t.ignoredSSIDs)
}

// Rotate shifts both dimensions down one window: the oldest bucket is
// discarded, every other bucket moves one slot older, and the current
// bucket is rebuilt from the fresh identifiers. Both dimensions rotate
// identically but independently.
func (t *Tracker) Rotate(freshDeviceIDs, freshProbedSSIDs []string) {
	rotate(&t.devices, freshDeviceIDs, t.ignoredDevices)
	rotate(&t.probes, freshProbedSSIDs, t.ignoredSSIDs)
}

func rotate(buckets *[bucketCount]map[string]string, fresh []string, ignored map[string]struct{}) {
	buckets[BucketOldest] = buckets[BucketOlder]
	buckets[BucketOlder] = buckets[BucketRecent]
	buckets[BucketRecent] = buckets[BucketCurrent]
	current := make(map[string]string, len(fresh))
	for _, id := range fresh {
		norm := strings.ToLower(id)
		if _, skip := ignored[norm]; skip {
			continue
		}
		if _, seen := current[norm]; !seen {
			current[norm] = id
		}
	}
	buckets[BucketCurrent] = current
}

func (t *Tracker) addFiltered(bucket map[string]string, ids []string, ignored map[string]struct{}) {
	for _, id := range ids {
		norm := strings.ToLower(id)
		if _, skip := ignored[norm]; skip {
			continue
		}
		if _, seen := bucket[norm]; !seen {
			bucket[norm] = id
		}
	}
}

// DeviceMembership returns which buckets contain the device id.
func (t *Tracker) DeviceMembership(id string) []Bucket {
	return membership(&t.devices, id)
}

// ProbeMembership returns which buckets contain the probed SSID.
func (t *Tracker) ProbeMembership(ssid string) []Bucket {
	return membership(&t.probes, ssid)
}

func membership(buckets *[bucketCount]map[string]string, id string) []Bucket {
	norm := strings.ToLower(id)
	var present []Bucket
	for i := Bucket(0); i < bucketCount; i++ {
		if _, ok := buckets[i][norm]; ok {
			present = append(present, i)
		}
	}
	return present
}

// DeviceScore returns the weighted persistence score for a device id.
func (t *Tracker) DeviceScore(id string) int {
	return t.score(t.DeviceMembership(id))
}

// ProbeScore returns the weighted persistence score for a probed SSID.
func (t *Tracker) ProbeScore(ssid string) int {
	return t.score(t.ProbeMembership(ssid))
}

func (t *Tracker) score(present []Bucket) int {
	var score int
	for _, b := range present {
		score += t.weights[b]
	}
	return score
}

// ScoreThreshold returns the configured persistence threshold.
func (t *Tracker) ScoreThreshold() int {
	return t.scoreThreshold
}

// CurrentDevices returns the ids in the current window, in their original
// casing. The returned slice is a copy; callers may retain it.
func (t *Tracker) CurrentDevices() []string {
	return originals(t.devices[BucketCurrent])
}

// CurrentProbes returns the probed SSIDs in the current window, in their
// original casing.
func (t *Tracker) CurrentProbes() []string {
	return originals(t.probes[BucketCurrent])
}

func originals(set map[string]string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		out = append(out, v)
	}
	return out
}

// BucketSizes reports the number of tracked ids per device bucket, newest
// first. Used for cycle logging.
func (t *Tracker) BucketSizes() [bucketCount]int {
	var sizes [bucketCount]int
	for i := range t.devices {
		sizes[i] = len(t.devices[i])
	}
	return sizes
}
