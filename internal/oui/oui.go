// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

// Package oui classifies hardware addresses against known aerial-platform
// manufacturer prefixes. This is a fast first-pass filter: a spoofed address
// defeats it by design, and the behavioral analyzer remains the primary
// detector.
package oui

import "strings"

// prefixLen is the length of the matched prefix: three colon-separated
// octets ("xx:xx:xx").
const prefixLen = 8

// defaultDronePrefixes maps manufacturer OUI prefixes (lowercased) to the
// manufacturer name.
var defaultDronePrefixes = map[string]string{
	// DJI
	"60:60:1f": "DJI",
	"34:d2:62": "DJI",
	"48:1c:b9": "DJI",
	"e4:7a:2c": "DJI",
	"d8:9b:3b": "DJI",
	"58:b8:58": "DJI",
	// Parrot
	"90:03:b7": "Parrot",
	"00:12:1c": "Parrot",
	"a0:14:3d": "Parrot",
	"00:26:7e": "Parrot",
	"90:3a:e6": "Parrot",
	// Yuneec
	"e0:b6:f5": "Yuneec",
	// Autel Robotics
	"ec:3d:fd": "Autel Robotics",
	// Skydio
	"38:1d:14": "Skydio",
}

// Matcher performs O(1) lookup of a hardware address's manufacturer prefix
// against a static table of aerial-platform manufacturers.
type Matcher struct {
	prefixes map[string]string
}

// NewMatcher creates a matcher with the built-in manufacturer table.
func NewMatcher() *Matcher {
	return NewMatcherWithPrefixes(nil)
}

// NewMatcherWithPrefixes creates a matcher with extra prefixes merged over
// the built-in table. Keys are OUI prefixes ("xx:xx:xx"), values are
// manufacturer names.
func NewMatcherWithPrefixes(extra map[string]string) *Matcher {
	prefixes := make(map[string]string, len(defaultDronePrefixes)+len(extra))
	for k, v := range defaultDronePrefixes {
		prefixes[k] = v
	}
	for k, v := range extra {
		prefixes[strings.ToLower(k)] = v
	}
	return &Matcher{prefixes: prefixes}
}

// Match reports whether the address carries a known drone manufacturer
// prefix and, if so, the manufacturer name. Matching is case-insensitive
// and exact over the first three octets.
func (m *Matcher) Match(address string) (manufacturer string, ok bool) {
	if len(address) < prefixLen {
		return "", false
	}
	manufacturer, ok = m.prefixes[strings.ToLower(address[:prefixLen])]
	return manufacturer, ok
}

// Size returns the number of known prefixes.
func (m *Matcher) Size() int {
	return len(m.prefixes)
}
