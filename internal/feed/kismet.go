// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // sqlite driver for the Kismet database

	"github.com/swamppop/tailwatch/internal/logging"
	"github.com/swamppop/tailwatch/internal/models"
)

// ErrNoCaptureFile is returned when no Kismet database matches the
// configured pattern.
var ErrNoCaptureFile = errors.New("no kismet capture file found")

// KismetConfig configures the Kismet database feed.
type KismetConfig struct {
	// LogDir is the directory Kismet writes capture databases into.
	LogDir string `koanf:"log_dir"`

	// Pattern is the glob matched against file names in LogDir. Kismet
	// starts a new database per run; the newest match is used.
	Pattern string `koanf:"pattern"`

	// Path pins an explicit database file, bypassing pattern resolution.
	Path string `koanf:"path"`

	// QueryTimeout bounds each database read.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// DefaultKismetConfig returns the default feed configuration.
func DefaultKismetConfig() KismetConfig {
	return KismetConfig{
		LogDir:       "/var/log/kismet",
		Pattern:      "*.kismet",
		QueryTimeout: 10 * time.Second,
	}
}

// KismetFeed reads device observations from a Kismet sqlite database. It
// also serves as the watchdog's DataSource: the database file is the data
// artifact whose freshness supervises the capture process.
type KismetFeed struct {
	cfg  KismetConfig
	path string
	db   *sql.DB
}

// OpenKismet resolves the capture database and opens it read-only.
func OpenKismet(cfg KismetConfig) (*KismetFeed, error) {
	f := &KismetFeed{cfg: cfg}
	path, err := f.Locate()
	if err != nil {
		return nil, err
	}
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	f.path = path
	f.db = db
	logging.Info().Str("path", path).Msg("kismet database opened")
	return f, nil
}

func openReadOnly(path string) (*sql.DB, error) {
	// mode=ro keeps us from ever contending with Kismet's writes.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open kismet database %s: %w", path, err)
	}
	// A single connection: the feed is queried from one goroutine.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Locate resolves the current capture database path: the pinned path if
// configured, otherwise the newest file matching the pattern.
func (f *KismetFeed) Locate() (string, error) {
	if f.cfg.Path != "" {
		if _, err := os.Stat(f.cfg.Path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoCaptureFile, f.cfg.Path)
		}
		return f.cfg.Path, nil
	}

	matches, err := filepath.Glob(filepath.Join(f.cfg.LogDir, f.cfg.Pattern))
	if err != nil {
		return "", fmt.Errorf("bad capture file pattern: %w", err)
	}
	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrNoCaptureFile, f.cfg.LogDir, f.cfg.Pattern)
	}
	return newest, nil
}

// LastModified returns the database file's modification time.
func (f *KismetFeed) LastModified() (time.Time, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", f.path, err)
	}
	return info.ModTime(), nil
}

// NewestRecordTime returns the last_time of the most recently seen device.
func (f *KismetFeed) NewestRecordTime(ctx context.Context) (time.Time, error) {
	ctx, cancel := f.queryContext(ctx)
	defer cancel()

	var newest sql.NullInt64
	err := f.db.QueryRowContext(ctx, `SELECT MAX(last_time) FROM devices`).Scan(&newest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query newest record: %w", err)
	}
	if !newest.Valid || newest.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.Unix(newest.Int64, 0), nil
}

// CurrentDevices returns a snapshot per device seen since the given time.
// Malformed rows are logged and skipped; only whole-query failures
// propagate.
func (f *KismetFeed) CurrentDevices(ctx context.Context, since time.Time) ([]models.DeviceSnapshot, error) {
	ctx, cancel := f.queryContext(ctx)
	defer cancel()

	rows, err := f.db.QueryContext(ctx, `
		SELECT devmac, type, last_time, strongest_signal, avg_lat, avg_lon, device
		FROM devices
		WHERE last_time >= ?`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var snapshots []models.DeviceSnapshot
	for rows.Next() {
		snap, err := scanDevice(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("skipping malformed device row")
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device row iteration failed: %w", err)
	}
	return snapshots, nil
}

// ProbedNames returns every SSID probed for by devices seen since the
// given time.
func (f *KismetFeed) ProbedNames(ctx context.Context, since time.Time) ([]string, error) {
	devices, err := f.CurrentDevices(ctx, since)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var names []string
	for i := range devices {
		for _, ssid := range devices[i].ProbedSSIDs {
			key := strings.ToLower(ssid)
			if _, dup := seen[key]; dup || ssid == "" {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, ssid)
		}
	}
	return names, nil
}

// Close releases the database handle.
func (f *KismetFeed) Close() error {
	if f.db == nil {
		return nil
	}
	return f.db.Close()
}

func (f *KismetFeed) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, f.cfg.QueryTimeout)
}

func scanDevice(rows *sql.Rows) (models.DeviceSnapshot, error) {
	var (
		devmac   string
		devType  sql.NullString
		lastTime int64
		signal   sql.NullInt64
		lat, lon sql.NullFloat64
		blob     []byte
	)
	if err := rows.Scan(&devmac, &devType, &lastTime, &signal, &lat, &lon, &blob); err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("failed to scan device row: %w", err)
	}
	if devmac == "" {
		return models.DeviceSnapshot{}, errors.New("device row has empty devmac")
	}

	snap := models.DeviceSnapshot{
		ID:        devmac,
		Signal:    models.DefaultSignal,
		Type:      devType.String,
		Timestamp: time.Unix(lastTime, 0),
	}
	if signal.Valid && signal.Int64 != 0 {
		snap.Signal = int(signal.Int64)
	}
	if lat.Valid && lon.Valid {
		snap.Latitude = lat.Float64
		snap.Longitude = lon.Float64
	}

	applyDeviceBlob(&snap, blob)
	return snap, nil
}

// kismetDevice is the subset of Kismet's device JSON blob the engine
// needs. Kismet's field names are stable across recent versions.
type kismetDevice struct {
	Channel string `json:"kismet.device.base.channel"`
	Dot11   struct {
		ProbedSSIDMap []struct {
			SSID string `json:"dot11.probedssid.ssid"`
		} `json:"dot11.device.probed_ssid_map"`
		NumClients int    `json:"dot11.device.num_associated_clients"`
		LastBSSID  string `json:"dot11.device.last_bssid"`
	} `json:"dot11.device"`
}

// applyDeviceBlob enriches a snapshot from the device JSON blob. Partial
// data degrades gracefully: a missing or unreadable blob leaves the
// snapshot's defaults in place.
func applyDeviceBlob(snap *models.DeviceSnapshot, blob []byte) {
	if len(blob) == 0 {
		return
	}
	var dev kismetDevice
	if err := json.Unmarshal(blob, &dev); err != nil {
		logging.Debug().Err(err).Str("device", snap.ID).Msg("unreadable device blob")
		return
	}

	snap.Channel = parseChannel(dev.Channel)
	snap.ClientCount = dev.Dot11.NumClients
	snap.Associated = isRealBSSID(dev.Dot11.LastBSSID)
	for _, p := range dev.Dot11.ProbedSSIDMap {
		if p.SSID != "" {
			snap.ProbedSSIDs = append(snap.ProbedSSIDs, p.SSID)
		}
	}
}

// parseChannel extracts the leading numeric part of a Kismet channel
// string ("6", "6HT40", "149W80"). Returns 0 when none exists.
func parseChannel(s string) int {
	var n int
	var found bool
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		found = true
	}
	if !found {
		return 0
	}
	return n
}

// isRealBSSID reports whether the BSSID names an actual network rather
// than the all-zeros placeholder Kismet uses for unassociated clients.
func isRealBSSID(bssid string) bool {
	if bssid == "" {
		return false
	}
	return strings.Trim(strings.ToUpper(bssid), "0:") != ""
}
