package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByOwner retrieves all devices belonging to a specific user.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Rename changes a device's display name.
	// Returns ErrDeviceNotFound if the device does not exist.
	Rename(ctx context.Context, id, displayName string) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// ApplyUpdate merges a partial state update into the stored record
	// under the reconciliation rules, in a single transaction, and
	// returns the updated device.
	// Returns ErrDeviceNotFound if the device does not exist.
	ApplyUpdate(ctx context.Context, id string, upd Update, ingestedAt time.Time) (*Device, error)

	// TouchLastSeen records a liveness-only update: last_seen advances,
	// power/mode/brightness are untouched.
	// Returns ErrDeviceNotFound if the device does not exist.
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error

	// MarkOffline forces power off for a device that is still marked on
	// and has not been seen since the cutoff. Returns true if the row
	// was changed, false if the device was already off or has reported
	// in since the cutoff. The conditional write makes repeated sweeps
	// idempotent and resolves races with concurrent telemetry.
	MarkOffline(ctx context.Context, id string, cutoff time.Time) (bool, error)

	// ListPoweredStale retrieves devices that are marked on but have
	// not been seen since the cutoff. Devices never seen at all are
	// excluded.
	ListPoweredStale(ctx context.Context, cutoff time.Time) ([]Device, error)
}

// deviceColumns is the canonical SELECT column list for device rows.
const deviceColumns = `device_id, display_name, owner_id, power, mode, brightness,
		last_seen, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by display name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY display_name`
	return r.queryDevices(ctx, query)
}

// ListByOwner retrieves all devices belonging to a specific user.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = ? ORDER BY display_name`
	return r.queryDevices(ctx, query, ownerID)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.DeviceID == "" || d.OwnerID == "" {
		return fmt.Errorf("%w: device_id and owner_id are required", ErrInvalidDevice)
	}
	if err := validateBrightness(d.Brightness); err != nil {
		return err
	}
	if d.Mode == "" {
		d.Mode = ModeManual
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO devices (
			device_id, display_name, owner_id, power, mode, brightness,
			last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.DeviceID,
		d.DisplayName,
		d.OwnerID,
		boolToInt(d.Power),
		d.Mode,
		nullableInt(d.Brightness),
		nullableTime(d.LastSeen),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Rename changes a device's display name.
func (r *SQLiteRepository) Rename(ctx context.Context, id, displayName string) error {
	now := time.Now().UTC()
	query := `UPDATE devices SET display_name = ?, updated_at = ? WHERE device_id = ?`

	result, err := r.db.ExecContext(ctx, query, displayName, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("renaming device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE device_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// ApplyUpdate merges a partial state update into the stored record.
//
// The read and the write happen inside one transaction so overlapping
// updates for the same device serialise at the database: whichever
// transaction commits last is authoritative.
func (r *SQLiteRepository) ApplyUpdate(ctx context.Context, id string, upd Update, ingestedAt time.Time) (*Device, error) {
	if err := validateBrightness(upd.Brightness); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`
	existing, err := scanDevice(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device for update: %w", err)
	}

	merged := Reconcile(*existing, upd, ingestedAt)

	// last_seen never regresses: an update carrying an older ingestion
	// timestamp than the stored one keeps the stored value.
	if existing.LastSeen != nil && merged.LastSeen.Before(*existing.LastSeen) {
		merged.LastSeen = existing.LastSeen
	}
	merged.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE devices
		SET power = ?, mode = ?, brightness = ?, last_seen = ?, updated_at = ?
		WHERE device_id = ?`

	_, err = tx.ExecContext(ctx, update,
		boolToInt(merged.Power),
		merged.Mode,
		nullableInt(merged.Brightness),
		nullableTime(merged.LastSeen),
		merged.UpdatedAt.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating device state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing device update: %w", err)
	}

	return &merged, nil
}

// TouchLastSeen records a liveness-only update.
//
// The write is conditional on the stored last_seen not being newer, so
// out-of-order heartbeats cannot move the timestamp backwards. A stale
// touch is a silent no-op, not an error.
func (r *SQLiteRepository) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	seen := seenAt.UTC().Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE devices
		SET last_seen = ?, updated_at = ?
		WHERE device_id = ? AND (last_seen IS NULL OR last_seen <= ?)`

	result, err := r.db.ExecContext(ctx, query, seen, now, id, seen)
	if err != nil {
		return fmt.Errorf("touching last_seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the device is missing or the touch was out of order.
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrDeviceNotFound
		}
	}

	return nil
}

// MarkOffline forces power off for a stale device.
//
// The WHERE clause carries the full decision: power must still be on
// and last_seen must predate the cutoff. A device that reported in
// between the caller's read and this write is left alone, so the sweep
// can never clobber fresh telemetry.
func (r *SQLiteRepository) MarkOffline(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE devices
		SET power = 0, updated_at = ?
		WHERE device_id = ? AND power = 1
		  AND last_seen IS NOT NULL AND last_seen < ?`

	result, err := r.db.ExecContext(ctx, query, now, id, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("marking device offline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ListPoweredStale retrieves devices still marked on whose last_seen
// predates the cutoff.
func (r *SQLiteRepository) ListPoweredStale(ctx context.Context, cutoff time.Time) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE power = 1 AND last_seen IS NOT NULL AND last_seen < ?
		ORDER BY device_id`

	return r.queryDevices(ctx, query, cutoff.UTC().Format(time.RFC3339))
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// exists checks if a device with the given ID exists.
func (r *SQLiteRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE device_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking device exists: %w", err)
	}
	return count > 0, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var power int
	var brightness sql.NullInt64
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.DeviceID,
		&d.DisplayName,
		&d.OwnerID,
		&power,
		&d.Mode,
		&brightness,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Power = power != 0

	if brightness.Valid {
		b := int(brightness.Int64)
		d.Brightness = &b
	}

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		d.LastSeen = &t
	}

	d.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

// validateBrightness rejects brightness values outside 0-100.
func validateBrightness(b *int) error {
	if b == nil {
		return nil
	}
	if *b < 0 || *b > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidBrightness, *b)
	}
	return nil
}

// nullableInt returns a sql.NullInt64 for optional int pointers.
func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
