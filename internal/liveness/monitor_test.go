package liveness

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
)

// fakeNotifier records broadcast events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []device.StateEvent
}

func (f *fakeNotifier) Broadcast(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := payload.(device.StateEvent); ok {
		f.events = append(f.events, e)
	}
}

func (f *fakeNotifier) all() []device.StateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.StateEvent(nil), f.events...)
}

func setupTestRepo(t *testing.T) device.Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			device_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			power INTEGER NOT NULL DEFAULT 0,
			mode TEXT NOT NULL DEFAULT 'manual',
			brightness INTEGER,
			last_seen TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return device.NewSQLiteRepository(db)
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestMonitor(repo device.Repository, notifier Notifier) *Monitor {
	cfg := config.LivenessConfig{SweepInterval: 30, StalenessThreshold: 5}
	return NewMonitor(repo, notifier, cfg, logging.Default())
}

func createDevice(t *testing.T, repo device.Repository, id string, power bool, lastSeen *time.Time) {
	t.Helper()

	d := &device.Device{
		DeviceID: id,
		OwnerID:  "user1",
		Power:    power,
		Mode:     device.ModeManual,
		LastSeen: lastSeen,
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("creating test device: %v", err)
	}
}

func TestRunOnceMarksStaleDeviceOffline(t *testing.T) {
	repo := setupTestRepo(t)
	notifier := &fakeNotifier{}
	m := newTestMonitor(repo, notifier)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Seen 10s ago with a 5s threshold: stale.
	createDevice(t, repo, "light1", true, timePtr(now.Add(-10*time.Second)))

	if err := m.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), "light1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Power {
		t.Error("Power = true, want false after sweep")
	}

	events := notifier.all()
	if len(events) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(events))
	}
	e := events[0]
	if e.DeviceID != "light1" || e.State != device.StateOffline {
		t.Errorf("event = %+v, want light1 offline", e)
	}
	if e.Mode != nil || e.Brightness != nil {
		t.Errorf("offline event carries mode=%v brightness=%v, want nulls", e.Mode, e.Brightness)
	}
}

func TestRunOnceIdempotent(t *testing.T) {
	repo := setupTestRepo(t)
	notifier := &fakeNotifier{}
	m := newTestMonitor(repo, notifier)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createDevice(t, repo, "light1", true, timePtr(now.Add(-10*time.Second)))

	if err := m.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("first RunOnce() error = %v", err)
	}
	if err := m.RunOnce(context.Background(), now.Add(30*time.Second)); err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}

	// Already-off devices are not re-notified.
	if got := len(notifier.all()); got != 1 {
		t.Errorf("broadcasts = %d, want exactly 1 across repeated sweeps", got)
	}
}

func TestRunOnceLeavesHealthyDevicesAlone(t *testing.T) {
	repo := setupTestRepo(t)
	notifier := &fakeNotifier{}
	m := newTestMonitor(repo, notifier)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	createDevice(t, repo, "fresh", true, timePtr(now.Add(-2*time.Second)))
	createDevice(t, repo, "off-stale", false, timePtr(now.Add(-time.Hour)))
	createDevice(t, repo, "never-seen", true, nil)

	if err := m.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	fresh, _ := repo.GetByID(context.Background(), "fresh")
	if !fresh.Power {
		t.Error("fresh device was powered off")
	}

	if got := len(notifier.all()); got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
}

func TestRunOnceRaceWithTelemetry(t *testing.T) {
	repo := setupTestRepo(t)
	notifier := &fakeNotifier{}
	_ = newTestMonitor(repo, notifier)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createDevice(t, repo, "light1", true, timePtr(now.Add(-10*time.Second)))

	// Telemetry arrives between the monitor's read and its write:
	// last_seen advances past the cutoff, so the conditional update
	// must not fire.
	if err := repo.TouchLastSeen(context.Background(), "light1", now); err != nil {
		t.Fatalf("TouchLastSeen() error = %v", err)
	}

	marked, err := repo.MarkOffline(context.Background(), "light1", now.Add(-5*time.Second))
	if err != nil {
		t.Fatalf("MarkOffline() error = %v", err)
	}
	if marked {
		t.Error("MarkOffline() won a race it should have lost")
	}

	got, _ := repo.GetByID(context.Background(), "light1")
	if !got.Power {
		t.Error("device with fresh telemetry was powered off")
	}
}

func TestStartSweepsOnTicker(t *testing.T) {
	repo := setupTestRepo(t)
	notifier := &fakeNotifier{}

	m := NewMonitor(repo, notifier,
		config.LivenessConfig{SweepInterval: 1, StalenessThreshold: 1},
		logging.Default())
	// Shrink the tick so the test does not sleep a full second.
	m.interval = 20 * time.Millisecond

	createDevice(t, repo, "light1", true, timePtr(time.Now().UTC().Add(-time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(notifier.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ticker sweep never marked the stale device offline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, _ := repo.GetByID(context.Background(), "light1")
	if got.Power {
		t.Error("Power = true, want false after ticker sweep")
	}
}
