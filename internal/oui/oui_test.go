// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package oui

import "testing"

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name    string
		address string
		wantMfr string
		wantHit bool
	}{
		{"dji lowercase", "60:60:1f:aa:bb:cc", "DJI", true},
		{"dji uppercase", "60:60:1F:AA:BB:CC", "DJI", true},
		{"dji mixed case", "60:60:1F:aa:bb:cc", "DJI", true},
		{"parrot", "90:03:b7:11:22:33", "Parrot", true},
		{"unknown vendor", "aa:bb:cc:dd:ee:ff", "", false},
		{"two of three octets must not match", "60:60:2f:aa:bb:cc", "", false},
		{"too short", "60:60", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfr, hit := m.Match(tt.address)
			if hit != tt.wantHit {
				t.Fatalf("Match(%q) hit = %v, want %v", tt.address, hit, tt.wantHit)
			}
			if mfr != tt.wantMfr {
				t.Errorf("Match(%q) manufacturer = %q, want %q", tt.address, mfr, tt.wantMfr)
			}
		})
	}
}

func TestNewMatcherWithPrefixes(t *testing.T) {
	m := NewMatcherWithPrefixes(map[string]string{"AB:CD:EF": "TestCorp"})

	mfr, hit := m.Match("ab:cd:ef:00:00:01")
	if !hit || mfr != "TestCorp" {
		t.Errorf("Match(custom prefix) = %q, %v; want TestCorp, true", mfr, hit)
	}

	// Built-ins survive the merge.
	if _, hit := m.Match("60:60:1f:00:00:01"); !hit {
		t.Error("built-in prefix lost after merge")
	}

	if m.Size() <= NewMatcher().Size() {
		t.Error("merged matcher should be larger than the default table")
	}
}
