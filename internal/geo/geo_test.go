// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package geo

import (
	"math"
	"testing"
	"time"
)

func TestDistanceKm_IdenticalPoints(t *testing.T) {
	d := DistanceKm(40.7128, -74.0060, 40.7128, -74.0060)
	if d != 0 {
		t.Errorf("DistanceKm(same point) = %v, want 0", d)
	}
}

func TestDistanceKm_OneDegreeLongitudeAtEquator(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km.
	d := DistanceKm(0, 0, 0, 1)
	want := 111.19
	tolerance := want * 0.005
	if math.Abs(d-want) > tolerance {
		t.Errorf("DistanceKm(0,0 -> 0,1) = %v, want %v ±%v", d, want, tolerance)
	}
}

func TestDistanceKm_KnownCityPair(t *testing.T) {
	// NYC to London is ~5570 km.
	d := DistanceKm(40.7128, -74.0060, 51.5074, -0.1278)
	if d < 5500 || d > 5600 {
		t.Errorf("DistanceKm(NYC -> London) = %v, want ~5570", d)
	}
}

func TestSpeedMetersPerSec(t *testing.T) {
	tests := []struct {
		name    string
		from    Position
		to      Position
		elapsed time.Duration
		wantMin float64
		wantMax float64
	}{
		{
			name:    "stationary",
			from:    Position{Lat: 10, Lon: 10},
			to:      Position{Lat: 10, Lon: 10},
			elapsed: 10 * time.Second,
			wantMin: 0,
			wantMax: 0.001,
		},
		{
			name: "one degree longitude in one hour at equator",
			from: Position{Lat: 0, Lon: 0},
			to:   Position{Lat: 0, Lon: 1},
			// ~111190 m over 3600 s => ~30.9 m/s
			elapsed: time.Hour,
			wantMin: 30.0,
			wantMax: 32.0,
		},
		{
			name:    "zero elapsed yields zero speed",
			from:    Position{Lat: 0, Lon: 0},
			to:      Position{Lat: 0, Lon: 1},
			elapsed: 0,
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "negative elapsed yields zero speed",
			from:    Position{Lat: 0, Lon: 0},
			to:      Position{Lat: 0, Lon: 1},
			elapsed: -time.Minute,
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpeedMetersPerSec(tt.from, tt.to, tt.elapsed)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("SpeedMetersPerSec() = %v, want in [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []float64{-50}, -50},
		{"signal samples", []float64{-52, -48, -55}, -51.666666666666664},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev(nil) = %v, want 0", got)
	}
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev(single) = %v, want 0", got)
	}

	// Population stddev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("StdDev() = %v, want 2", got)
	}

	if got := StdDev([]float64{-50, -50, -50}); got != 0 {
		t.Errorf("StdDev(constant) = %v, want 0", got)
	}
}

func TestCentroid(t *testing.T) {
	if c := Centroid(nil); c.Lat != 0 || c.Lon != 0 {
		t.Errorf("Centroid(nil) = %+v, want zero", c)
	}

	c := Centroid([]Position{
		{Lat: 10, Lon: 20},
		{Lat: 20, Lon: 40},
	})
	if math.Abs(c.Lat-15) > 1e-9 || math.Abs(c.Lon-30) > 1e-9 {
		t.Errorf("Centroid() = %+v, want {15 30}", c)
	}
}

func TestMaxDistanceFromCentroid(t *testing.T) {
	if d := MaxDistanceFromCentroid(nil); d != 0 {
		t.Errorf("MaxDistanceFromCentroid(nil) = %v, want 0", d)
	}

	// Three fixes a few meters apart: max spread stays well under 10 m.
	tight := []Position{
		{Lat: 40.712800, Lon: -74.006000},
		{Lat: 40.712820, Lon: -74.006020},
		{Lat: 40.712810, Lon: -74.005990},
	}
	if d := MaxDistanceFromCentroid(tight); d > 10 {
		t.Errorf("MaxDistanceFromCentroid(tight cluster) = %v m, want < 10", d)
	}

	// Adding a fix ~200 m away pushes the spread past 50 m.
	spread := append(append([]Position{}, tight...), Position{Lat: 40.714600, Lon: -74.006000})
	if d := MaxDistanceFromCentroid(spread); d < 50 {
		t.Errorf("MaxDistanceFromCentroid(spread cluster) = %v m, want > 50", d)
	}
}
