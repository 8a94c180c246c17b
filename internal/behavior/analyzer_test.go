// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package behavior

import (
	"testing"
	"time"

	"github.com/swamppop/tailwatch/internal/models"
)

var testBase = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func snap(id string, at time.Time, mutate func(*models.DeviceSnapshot)) *models.DeviceSnapshot {
	s := &models.DeviceSnapshot{
		ID:        id,
		Signal:    models.DefaultSignal,
		Timestamp: at,
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestAnalyzer_InsufficientData(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	// Unknown device.
	res := a.Analyze("aa:bb:cc:00:00:01")
	if res.Confidence != 0 || res.Reason != ReasonInsufficientData {
		t.Errorf("unknown device: confidence=%v reason=%q, want 0 / %q", res.Confidence, res.Reason, ReasonInsufficientData)
	}

	// Two appearances with a minimum of three.
	a.Update(snap("aa:bb:cc:00:00:01", testBase, nil))
	a.Update(snap("aa:bb:cc:00:00:01", testBase.Add(time.Minute), nil))
	res = a.Analyze("AA:BB:CC:00:00:01")
	if res.Confidence != 0 || res.Reason != ReasonInsufficientData {
		t.Errorf("two appearances: confidence=%v reason=%q, want 0 / %q", res.Confidence, res.Reason, ReasonInsufficientData)
	}

	// Third appearance clears the gate.
	a.Update(snap("aa:bb:cc:00:00:01", testBase.Add(2*time.Minute), nil))
	res = a.Analyze("aa:bb:cc:00:00:01")
	if res.Reason == ReasonInsufficientData {
		t.Error("three appearances should be analyzable")
	}
}

func TestAnalyzer_ConfidenceAlwaysInUnitInterval(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	id := "de:ad:be:ef:00:01"
	for i := 0; i < 5; i++ {
		a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), nil))
	}
	res := a.Analyze(id)
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Errorf("confidence %v outside [0, 1]", res.Confidence)
	}
}

// allPatternsDevice feeds observations that trigger every pattern: tight
// cluster of fixes traversed fast, hot and noisy signal, four channels,
// heavy probing, never associated, no clients, short span.
func allPatternsDevice(a *Analyzer, id string) {
	signals := []int{-40, -55, -40, -55}
	channels := []int{1, 6, 11, 3}
	for i := 0; i < 4; i++ {
		i := i
		a.Update(snap(id, testBase.Add(time.Duration(i)*2*time.Second), func(s *models.DeviceSnapshot) {
			s.Signal = signals[i]
			s.Latitude = 0.001                 // near the equator: no longitude scale factor
			s.Longitude = 0.00028 * float64(i) // ~31 m per 2 s hop, ~47 m total spread
			s.Channel = channels[i]
			s.ProbedSSIDs = []string{"a", "b", "c", "d", "e"}
		}))
	}
}

func TestAnalyzer_AllPatternsFire(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	id := "00:11:22:33:44:55"
	allPatternsDevice(a, id)

	res := a.Analyze(id)
	for name, p := range res.Patterns {
		if !p.Detected {
			t.Errorf("pattern %s not detected: %s", name, p.Evidence)
		}
	}
	if res.Confidence < 0.999 || res.Confidence > 1.0 {
		t.Errorf("confidence = %v, want ~1.0 with all patterns firing", res.Confidence)
	}
}

func TestAnalyzer_ClampIsNoOpAtBoundary(t *testing.T) {
	// Weights that would sum past 1.0 must clamp to exactly 1.0.
	cfg := DefaultConfig()
	cfg.PatternWeights.HighMobility = 0.5
	cfg.PatternWeights.NoAssociation = 0.5
	cfg.PatternWeights.NoClients = 0.5
	a := NewAnalyzer(cfg)
	id := "00:11:22:33:44:66"
	allPatternsDevice(a, id)

	res := a.Analyze(id)
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want exactly 1.0 after clamp", res.Confidence)
	}
}

func TestAnalyzer_Hovering(t *testing.T) {
	tight := [][2]float64{
		{40.712800, -74.006000},
		{40.712820, -74.006020},
		{40.712810, -74.005990},
	}

	t.Run("tight cluster detected", func(t *testing.T) {
		a := NewAnalyzer(DefaultConfig())
		id := "aa:aa:aa:00:00:01"
		for i, p := range tight {
			p := p
			a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), func(s *models.DeviceSnapshot) {
				s.Latitude = p[0]
				s.Longitude = p[1]
			}))
		}
		res := a.Analyze(id)
		if !res.Patterns[PatternHovering].Detected {
			t.Errorf("hovering not detected: %s", res.Patterns[PatternHovering].Evidence)
		}
	})

	t.Run("outlier breaks the cluster", func(t *testing.T) {
		a := NewAnalyzer(DefaultConfig())
		id := "aa:aa:aa:00:00:02"
		points := append(append([][2]float64{}, tight...), [2]float64{40.714600, -74.006000}) // ~200 m away
		for i, p := range points {
			p := p
			a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), func(s *models.DeviceSnapshot) {
				s.Latitude = p[0]
				s.Longitude = p[1]
			}))
		}
		res := a.Analyze(id)
		if res.Patterns[PatternHovering].Detected {
			t.Errorf("hovering detected despite 200 m outlier: %s", res.Patterns[PatternHovering].Evidence)
		}
	})

	t.Run("two fixes cannot hover", func(t *testing.T) {
		a := NewAnalyzer(DefaultConfig())
		id := "aa:aa:aa:00:00:03"
		for i := 0; i < 3; i++ {
			i := i
			a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), func(s *models.DeviceSnapshot) {
				if i < 2 {
					s.Latitude = tight[i][0]
					s.Longitude = tight[i][1]
				}
			}))
		}
		res := a.Analyze(id)
		if res.Patterns[PatternHovering].Detected {
			t.Error("hovering requires at least three fixes")
		}
	})
}

func TestAnalyzer_MissingGPSPatternsCannotEvaluate(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	id := "bb:bb:bb:00:00:01"
	for i := 0; i < 4; i++ {
		a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), nil))
	}

	res := a.Analyze(id)
	for _, p := range []Pattern{PatternHighMobility, PatternHovering} {
		got := res.Patterns[p]
		if got.Detected {
			t.Errorf("GPS-dependent pattern %s detected without any fixes", p)
		}
		if got.Contribution != 0 {
			t.Errorf("pattern %s contributed %v without fixes", p, got.Contribution)
		}
	}
}

func TestAnalyzer_AssociationFlagsNeverClear(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	id := "cc:cc:cc:00:00:01"

	a.Update(snap(id, testBase, func(s *models.DeviceSnapshot) {
		s.Associated = true
		s.ClientCount = 2
	}))
	for i := 1; i < 4; i++ {
		a.Update(snap(id, testBase.Add(time.Duration(i)*time.Minute), nil))
	}

	res := a.Analyze(id)
	if res.Patterns[PatternNoAssociation].Detected {
		t.Error("no-association fired for a device that associated once")
	}
	if res.Patterns[PatternNoClients].Detected {
		t.Error("no-clients fired for a device that had clients once")
	}
}

func TestAnalyzer_EndToEndBehavioralScenario(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	id := "AA:BB:CC:DD:EE:01"

	// Four appearances: strong noisy signal, positions drifting well over
	// 15 m/s between fixes, never associated, zero clients.
	signals := []int{-48, -42, -55, -45}
	for i := 0; i < 4; i++ {
		i := i
		a.Update(snap(id, testBase.Add(time.Duration(i)*2*time.Second), func(s *models.DeviceSnapshot) {
			s.Signal = signals[i]
			s.Latitude = 40.0
			s.Longitude = 0.0005 * float64(i) // ~55 m per 2 s hop, ~28 m/s
		}))
	}

	res := a.Analyze(id)

	for _, want := range []Pattern{PatternHighMobility, PatternNoAssociation, PatternHighSignal, PatternNoClients, PatternBriefPresence} {
		if !res.Patterns[want].Detected {
			t.Errorf("pattern %s not detected: %s", want, res.Patterns[want].Evidence)
		}
	}
	if res.Confidence < a.ConfidenceThreshold() {
		t.Errorf("confidence = %v, want >= %v", res.Confidence, a.ConfidenceThreshold())
	}
}

func TestAnalyzer_Cleanup(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	a.Update(snap("old:device", testBase.Add(-30*time.Hour), nil))
	a.Update(snap("fresh:device", testBase.Add(-time.Hour), nil))

	removed := a.Cleanup(testBase, 24*time.Hour)
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if a.TrackedCount() != 1 {
		t.Errorf("TrackedCount() = %d, want 1", a.TrackedCount())
	}

	// The fresh device must survive.
	a.Update(snap("fresh:device", testBase, nil))
	a.Update(snap("fresh:device", testBase.Add(time.Minute), nil))
	if res := a.Analyze("fresh:device"); res.Reason == ReasonInsufficientData {
		t.Error("fresh device history was lost by cleanup")
	}
}
