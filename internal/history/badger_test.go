// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package history

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/swamppop/tailwatch/internal/models"
)

func newTestSink(t *testing.T, cfg Config) *BadgerSink {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newBadgerSinkWithDB(cfg, db)
}

func TestBadgerSinkRecordAndRange(t *testing.T) {
	sink := newTestSink(t, Config{Enabled: true})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []models.DetectionRecord{
		{DeviceID: "aa:bb:cc:00:00:01", Timestamp: base, Kind: models.DetectionKindDrone, Score: 1.0},
		{DeviceID: "aa:bb:cc:00:00:02", Timestamp: base.Add(time.Minute), Kind: models.DetectionKindBehavioral, Score: 0.72},
		{DeviceID: "aa:bb:cc:00:00:03", Timestamp: base.Add(2 * time.Minute), Kind: models.DetectionKindPersistence, Score: 8},
	}
	for _, rec := range records {
		if err := sink.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	var got []models.DetectionRecord
	err := sink.Range(base, base.Add(90*time.Second), func(rec models.DetectionRecord) bool {
		got = append(got, rec)
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records in window, got %d", len(got))
	}
	if got[0].DeviceID != "aa:bb:cc:00:00:01" || got[1].DeviceID != "aa:bb:cc:00:00:02" {
		t.Errorf("records out of order or wrong: %+v", got)
	}
	if got[1].Score != 0.72 {
		t.Errorf("score not preserved: %f", got[1].Score)
	}
}

func TestBadgerSinkSameInstantDistinctKinds(t *testing.T) {
	sink := newTestSink(t, Config{Enabled: true})

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recs := []models.DetectionRecord{
		{DeviceID: "aa:bb:cc:00:00:01", Timestamp: ts, Kind: models.DetectionKindDrone, Score: 1},
		{DeviceID: "aa:bb:cc:00:00:01", Timestamp: ts, Kind: models.DetectionKindBehavioral, Score: 0.8},
	}
	for _, rec := range recs {
		if err := sink.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	var count int
	err := sink.Range(ts, time.Time{}, func(models.DetectionRecord) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if count != 2 {
		t.Errorf("same-instant records collided, got %d of 2", count)
	}
}

func TestBadgerSinkRangeEarlyStop(t *testing.T) {
	sink := newTestSink(t, Config{Enabled: true})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := models.DetectionRecord{
			DeviceID:  "aa:bb:cc:00:00:01",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Kind:      models.DetectionKindProbe,
			Score:     float64(i),
		}
		if err := sink.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	var count int
	err := sink.Range(base, time.Time{}, func(models.DetectionRecord) bool {
		count++
		return count < 2
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if count != 2 {
		t.Errorf("early stop ignored, visited %d records", count)
	}
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	if err := sink.Record(models.DetectionRecord{DeviceID: "x"}); err != nil {
		t.Errorf("NopSink.Record returned error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("NopSink.Close returned error: %v", err)
	}
}
