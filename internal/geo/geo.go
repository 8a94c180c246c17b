// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package geo provides stateless great-circle distance and simple
// statistics helpers used by the behavioral analyzer.
package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Position is a latitude/longitude pair in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// DistanceKm calculates the great-circle distance between two points on
// Earth using the Haversine formula. Returns distance in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// DistanceMeters is DistanceKm in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(lat1, lon1, lat2, lon2) * 1000.0
}

// SpeedMetersPerSec returns the ground speed implied by moving between two
// positions over the given elapsed time. Returns 0 for non-positive elapsed
// time; out-of-order fixes carry no speed information.
func SpeedMetersPerSec(from, to Position, elapsed time.Duration) float64 {
	// 1e-9s is below any meaningful fix interval; avoids division by a
	// float-rounded zero.
	const floatEpsilon = 1e-9
	secs := elapsed.Seconds()
	if secs < floatEpsilon {
		return 0
	}
	return DistanceMeters(from.Lat, from.Lon, to.Lat, to.Lon) / secs
}

// Mean returns the arithmetic mean of the samples, or 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// StdDev returns the population standard deviation of the samples, or 0
// when fewer than two samples exist.
func StdDev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := Mean(samples)
	var sumSq float64
	for _, s := range samples {
		d := s - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

// Centroid returns the arithmetic centroid of the positions. The zero
// Position is returned for an empty slice. Arithmetic averaging is adequate
// at the sub-kilometer scales the analyzer works with.
func Centroid(positions []Position) Position {
	if len(positions) == 0 {
		return Position{}
	}
	var lat, lon float64
	for _, p := range positions {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(positions))
	return Position{Lat: lat / n, Lon: lon / n}
}

// MaxDistanceFromCentroid returns the largest distance in meters from any
// position to the centroid of the set. Returns 0 for an empty slice.
func MaxDistanceFromCentroid(positions []Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	c := Centroid(positions)
	var maxDist float64
	for _, p := range positions {
		d := DistanceMeters(c.Lat, c.Lon, p.Lat, p.Lon)
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}
