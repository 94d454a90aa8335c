package schedule

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the schedules table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE schedules (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
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

	return db
}

func testSchedule(deviceID string) *Schedule {
	return &Schedule{
		DeviceID:  deviceID,
		OwnerID:   "user1",
		StartTime: "18:30",
		EndTime:   "23:00",
		Active:    true,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sched := testSchedule("light1")
	if err := repo.Create(ctx, sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(sched.ID, "sch-") {
		t.Errorf("ID = %q, want sch- prefix", sched.ID)
	}

	got, err := repo.GetByID(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DeviceID != "light1" || got.StartTime != "18:30" || got.EndTime != "23:00" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.Active {
		t.Error("Active = false, want true")
	}
}

func TestSQLiteRepository_CreateInvalid(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		sched *Schedule
	}{
		{"missing device", &Schedule{OwnerID: "u", StartTime: "18:30", EndTime: "23:00"}},
		{"missing owner", &Schedule{DeviceID: "d", StartTime: "18:30", EndTime: "23:00"}},
		{"bad start time", &Schedule{DeviceID: "d", OwnerID: "u", StartTime: "25:00", EndTime: "23:00"}},
		{"bad end time", &Schedule{DeviceID: "d", OwnerID: "u", StartTime: "18:30", EndTime: "6pm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.sched); !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("Create() error = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestSQLiteRepository_ListActive(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	active := testSchedule("light1")
	inactive := testSchedule("light2")
	inactive.Active = false

	for _, s := range []*Schedule{active, inactive} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(got) != 1 || got[0].DeviceID != "light1" {
		t.Errorf("ListActive() = %+v, want only light1", got)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d schedules, want 2", len(all))
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sched := testSchedule("light1")
	if err := repo.Create(ctx, sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sched.StartTime = "07:00"
	sched.Active = false
	if err := repo.Update(ctx, sched); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, sched.ID)
	if got.StartTime != "07:00" || got.Active {
		t.Errorf("Update() not persisted: %+v", got)
	}

	missing := testSchedule("light1")
	missing.ID = "sch-missing"
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrScheduleNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sched := testSchedule("light1")
	if err := repo.Create(ctx, sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, sched.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, sched.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrScheduleNotFound", err)
	}
	if err := repo.Delete(ctx, sched.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrScheduleNotFound", err)
	}
}

func TestIsValidTime(t *testing.T) {
	valid := []string{"00:00", "07:05", "18:30", "23:59"}
	invalid := []string{"", "24:00", "18:60", "7:30", "18-30", "6pm", "18:30:00"}

	for _, s := range valid {
		if !IsValidTime(s) {
			t.Errorf("IsValidTime(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidTime(s) {
			t.Errorf("IsValidTime(%q) = true, want false", s)
		}
	}
}
