package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the users table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
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

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewUserRepository(setupTestDB(t)))
}

func TestRegister(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !strings.HasPrefix(user.ID, "usr-") {
		t.Errorf("ID = %q, want usr- prefix", user.ID)
	}
	if user.Role != RoleUser {
		t.Errorf("Role = %q, want user", user.Role)
	}
	if user.PasswordHash == "long-enough-password" {
		t.Fatal("password stored in plaintext")
	}
	if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Errorf("PasswordHash = %q, want argon2id PHC format", user.PasswordHash)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"short username", "ab", "long-enough-password", ErrInvalidUsername},
		{"bad characters", "al ice!", "long-enough-password", ErrInvalidUsername},
		{"short password", "alice", "short", ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, "", tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "long-enough-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Register(ctx, "alice", "", "another-long-password")
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Register() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "", "long-enough-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.Authenticate(ctx, "alice", "long-enough-password")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("Authenticate() returned user %q, want %q", user.ID, created.ID)
	}

	// Wrong password and unknown user look identical to the caller.
	if _, err := svc.Authenticate(ctx, "alice", "wrong-password!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "long-enough-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "alice@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.Lookup(ctx, created.ID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Errorf("Lookup() = %+v, want alice", user)
	}

	if _, err := svc.Lookup(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrUserNotFound", err)
	}
}
