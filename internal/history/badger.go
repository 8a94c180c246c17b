// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package history

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/swamppop/tailwatch/internal/metrics"
	"github.com/swamppop/tailwatch/internal/models"
)

const recordKeyPrefix = "detection:"

// Config configures the on-disk detection history.
type Config struct {
	// Enabled turns history persistence on.
	Enabled bool `koanf:"enabled"`

	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// Retention is how long records are kept. Zero keeps them forever.
	Retention time.Duration `koanf:"retention"`
}

// DefaultConfig returns the default history configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Path:      "/var/lib/tailwatch/history",
		Retention: 30 * 24 * time.Hour,
	}
}

// BadgerSink stores detection records in BadgerDB. Records expire via TTL
// when retention is configured.
type BadgerSink struct {
	cfg Config
	db  *badger.DB
	now func() time.Time
}

// OpenBadger opens the history database at the configured path.
func OpenBadger(cfg Config) (*BadgerSink, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Suppress BadgerDB internal logs
	// History records are small; the default 1GB value log is oversized.
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &BadgerSink{cfg: cfg, db: db, now: time.Now}, nil
}

// newBadgerSinkWithDB wires an already-open database, used by tests.
func newBadgerSinkWithDB(cfg Config, db *badger.DB) *BadgerSink {
	return &BadgerSink{cfg: cfg, db: db, now: time.Now}
}

// Record persists one detection record. The key orders records by time
// and disambiguates by device and kind so same-instant detections never
// overwrite each other.
func (s *BadgerSink) Record(rec models.DetectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.HistoryErrors.Inc()
		return fmt.Errorf("marshal detection record: %w", err)
	}

	key := []byte(fmt.Sprintf("%s%d/%s/%s",
		recordKeyPrefix, rec.Timestamp.UnixNano(), rec.DeviceID, rec.Kind))

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if s.cfg.Retention > 0 {
			entry = entry.WithTTL(s.cfg.Retention)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		metrics.HistoryErrors.Inc()
		return fmt.Errorf("write detection record: %w", err)
	}
	metrics.HistoryRecords.Inc()
	return nil
}

// Range calls fn for each record whose timestamp falls in [from, to),
// oldest first. Returning false from fn stops the walk.
func (s *BadgerSink) Range(from, to time.Time, fn func(models.DetectionRecord) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(fmt.Sprintf("%s%d", recordKeyPrefix, from.UnixNano()))
		for it.Seek(start); it.Valid(); it.Next() {
			var rec models.DetectionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode detection record: %w", err)
			}
			if !to.IsZero() && !rec.Timestamp.Before(to) {
				return nil
			}
			if !fn(rec) {
				return nil
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *BadgerSink) Close() error {
	return s.db.Close()
}
