package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen_CreatesDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b", "test.db")

	db, err := Open(context.Background(), Config{Path: nested, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != nested {
		t.Errorf("Path() = %q, want %q", db.Path(), nested)
	}
}

func TestDB_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("querying foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("expected foreign keys to be enabled")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260212_120000_initial_schema.up.sql", "20260212_120000", "initial_schema", true},
		{"20260212_120000_initial_schema.down.sql", "", "", false},
		{"README.md", "", "", false},
		{"bad.up.sql", "", "", false},
	}

	for _, tt := range tests {
		version, name, ok := parseMigrationFilename(tt.filename)
		if version != tt.wantVersion || name != tt.wantName || ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
		}
	}
}
