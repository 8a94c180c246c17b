// Tailwatch - Wireless Surveillance Detection and Capture Supervision
// Copyright 2026 SwampPop
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swamppop/tailwatch

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/swamppop/tailwatch/internal/alert"
	"github.com/swamppop/tailwatch/internal/behavior"
	"github.com/swamppop/tailwatch/internal/models"
	"github.com/swamppop/tailwatch/internal/oui"
	"github.com/swamppop/tailwatch/internal/tracking"
)

type mockFeed struct {
	devices []models.DeviceSnapshot
	probes  []string
	err     error
	queries int
	closed  bool
}

func (m *mockFeed) CurrentDevices(ctx context.Context, since time.Time) ([]models.DeviceSnapshot, error) {
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	return m.devices, nil
}

func (m *mockFeed) ProbedNames(ctx context.Context, since time.Time) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.probes, nil
}

func (m *mockFeed) Close() error {
	m.closed = true
	return nil
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (m *mockNotifier) Send(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}
func (m *mockNotifier) Name() string  { return "mock" }
func (m *mockNotifier) Enabled() bool { return true }

func (m *mockNotifier) all() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

type mockSink struct {
	records []models.DetectionRecord
	closed  bool
}

func (m *mockSink) Record(rec models.DetectionRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *mockSink) Close() error {
	m.closed = true
	return nil
}

func snapshot(id string, signal int) models.DeviceSnapshot {
	return models.DeviceSnapshot{
		ID:        id,
		Signal:    signal,
		Timestamp: time.Now(),
	}
}

func newTestEngine(t *testing.T, cfg Config, f *mockFeed) (*Engine, *mockNotifier, *mockSink) {
	t.Helper()
	notifier := &mockNotifier{}
	sink := &mockSink{}
	eng := New(
		cfg,
		f,
		tracking.New(tracking.DefaultConfig()),
		oui.NewMatcher(),
		behavior.NewAnalyzer(behavior.DefaultConfig()),
		alert.NewDispatcher(alert.DefaultConfig(), notifier),
		nil,
		sink,
	)
	return eng, notifier, sink
}

func findRecord(records []models.DetectionRecord, kind models.DetectionKind) *models.DetectionRecord {
	for i := range records {
		if records[i].Kind == kind {
			return &records[i]
		}
	}
	return nil
}

func TestRunCycleFiresDroneAlert(t *testing.T) {
	f := &mockFeed{devices: []models.DeviceSnapshot{
		snapshot("60:60:1F:AA:BB:CC", -55),
		snapshot("AA:BB:CC:DD:EE:FF", -70),
	}}
	eng, notifier, sink := newTestEngine(t, DefaultConfig(), f)

	eng.RunCycle(context.Background())
	eng.dispatcher.Flush(context.Background())

	alerts := notifier.all()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Class != models.AlertClassDrone {
		t.Errorf("expected drone alert, got %s", a.Class)
	}
	if a.Severity != models.SeverityCritical {
		t.Errorf("expected critical severity, got %s", a.Severity)
	}
	if a.Subject != "60:60:1F:AA:BB:CC" {
		t.Errorf("wrong subject %q", a.Subject)
	}

	rec := findRecord(sink.records, models.DetectionKindDrone)
	if rec == nil {
		t.Fatal("expected a drone detection record")
	}
	if rec.Score != 1.0 {
		t.Errorf("drone record score should be 1.0, got %f", rec.Score)
	}
}

func TestRunCycleFeedErrorSkipsCycle(t *testing.T) {
	f := &mockFeed{err: errors.New("database locked")}
	eng, notifier, _ := newTestEngine(t, DefaultConfig(), f)

	eng.RunCycle(context.Background())
	eng.dispatcher.Flush(context.Background())

	if eng.cycle != 0 {
		t.Errorf("failed cycle should not count, got cycle %d", eng.cycle)
	}
	if got := notifier.all(); len(got) != 0 {
		t.Errorf("failed cycle should raise no alerts, got %d", len(got))
	}

	// Once the feed recovers, the loop continues.
	f.err = nil
	f.devices = []models.DeviceSnapshot{snapshot("AA:BB:CC:00:00:01", -70)}
	eng.RunCycle(context.Background())
	if eng.cycle != 1 {
		t.Errorf("expected recovery cycle to count, got cycle %d", eng.cycle)
	}
}

func TestRotationCadence(t *testing.T) {
	f := &mockFeed{devices: []models.DeviceSnapshot{snapshot("AA:BB:CC:00:00:01", -70)}}
	cfg := DefaultConfig()
	cfg.RotateEvery = 2
	eng, _, _ := newTestEngine(t, cfg, f)

	// Cycle 1 observes into "current". Cycle 2 rotates: the device is
	// refreshed into "current" and its prior presence moves to "recent".
	eng.RunCycle(context.Background())
	if got := eng.tracker.DeviceMembership("AA:BB:CC:00:00:01"); len(got) != 1 || got[0] != tracking.BucketCurrent {
		t.Fatalf("after observe, expected membership [current], got %v", got)
	}

	eng.RunCycle(context.Background())
	got := eng.tracker.DeviceMembership("AA:BB:CC:00:00:01")
	if len(got) != 2 {
		t.Fatalf("after rotation, expected membership in current and recent, got %v", got)
	}
}

func TestPersistenceAlertAcrossWindows(t *testing.T) {
	f := &mockFeed{devices: []models.DeviceSnapshot{snapshot("AA:BB:CC:00:00:01", -70)}}
	cfg := DefaultConfig()
	cfg.RotateEvery = 1 // rotate every cycle to age the device quickly
	eng, notifier, sink := newTestEngine(t, cfg, f)

	// Each cycle rotates, so membership grows one bucket per cycle:
	// current(1), +recent(3), +older(6 >= threshold).
	var fired bool
	for i := 0; i < 4; i++ {
		eng.RunCycle(context.Background())
		eng.dispatcher.Flush(context.Background())
		for _, a := range notifier.all() {
			if a.Class == models.AlertClassPersistence {
				fired = true
			}
		}
		if fired {
			break
		}
	}
	if !fired {
		t.Fatal("expected a persistence alert once the score crossed the threshold")
	}
	if findRecord(sink.records, models.DetectionKindPersistence) == nil {
		t.Error("expected a persistence detection record")
	}
}

func TestProbePersistenceAlert(t *testing.T) {
	f := &mockFeed{
		devices: []models.DeviceSnapshot{snapshot("AA:BB:CC:00:00:01", -70)},
		probes:  []string{"HomeNet"},
	}
	cfg := DefaultConfig()
	cfg.RotateEvery = 1
	eng, notifier, _ := newTestEngine(t, cfg, f)

	var fired *models.Alert
	for i := 0; i < 4 && fired == nil; i++ {
		eng.RunCycle(context.Background())
		eng.dispatcher.Flush(context.Background())
		alerts := notifier.all()
		for j := range alerts {
			if alerts[j].Class == models.AlertClassProbe {
				fired = &alerts[j]
			}
		}
	}
	if fired == nil {
		t.Fatal("expected a probe persistence alert")
	}
	if fired.Subject != "HomeNet" {
		t.Errorf("probe alert subject should be the network name, got %q", fired.Subject)
	}
}

func TestCooldownSuppressesRepeatAlerts(t *testing.T) {
	f := &mockFeed{devices: []models.DeviceSnapshot{snapshot("60:60:1F:AA:BB:CC", -55)}}
	eng, notifier, _ := newTestEngine(t, DefaultConfig(), f)

	eng.RunCycle(context.Background())
	eng.RunCycle(context.Background())
	eng.dispatcher.Flush(context.Background())

	if got := notifier.all(); len(got) != 1 {
		t.Errorf("second cycle inside the cooldown should be suppressed, got %d alerts", len(got))
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	f := &mockFeed{devices: []models.DeviceSnapshot{snapshot("AA:BB:CC:00:00:01", -70)}}
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	eng, _, sink := newTestEngine(t, cfg, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Serve(ctx) }()

	// Let at least one cycle run, then stop.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}

	if !f.closed {
		t.Error("feed not closed on shutdown")
	}
	if !sink.closed {
		t.Error("history sink not closed on shutdown")
	}
	if f.queries == 0 {
		t.Error("expected at least one cycle before shutdown")
	}
}
