package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for schedule persistence.
type Repository interface {
	Create(ctx context.Context, sched *Schedule) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]Schedule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Schedule, error)
	ListActive(ctx context.Context) ([]Schedule, error)
	Update(ctx context.Context, sched *Schedule) error
	Delete(ctx context.Context, id string) error
}

const scheduleColumns = `id, device_id, owner_id, start_time, end_time, active, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new schedule. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, sched *Schedule) error {
	if err := validate(sched); err != nil {
		return err
	}
	if sched.ID == "" {
		sched.ID = "sch-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.DeviceID, sched.OwnerID,
		sched.StartTime, sched.EndTime, boolToInt(sched.Active),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}

	return nil
}

// GetByID retrieves a schedule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)

	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("querying schedule by id: %w", err)
	}
	return s, nil
}

// List retrieves all schedules.
func (r *SQLiteRepository) List(ctx context.Context) ([]Schedule, error) {
	return r.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules ORDER BY start_time`)
}

// ListByOwner retrieves all schedules belonging to a user.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Schedule, error) {
	return r.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE owner_id = ? ORDER BY start_time`, ownerID)
}

// ListActive retrieves schedules eligible for execution.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Schedule, error) {
	return r.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE active = 1 ORDER BY start_time`)
}

// Update modifies an existing schedule's window and active flag.
func (r *SQLiteRepository) Update(ctx context.Context, sched *Schedule) error {
	if err := validate(sched); err != nil {
		return err
	}

	now := time.Now().UTC()
	sched.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET start_time = ?, end_time = ?, active = ?, updated_at = ? WHERE id = ?`,
		sched.StartTime, sched.EndTime, boolToInt(sched.Active),
		now.Format(time.RFC3339), sched.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete removes a schedule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// querySchedules executes a query and returns a slice of schedules.
func (r *SQLiteRepository) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}

	return schedules, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSchedule scans a row or rows result into a Schedule.
func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var s Schedule
	var active int
	var createdAt, updatedAt string

	err := scanner.Scan(&s.ID, &s.DeviceID, &s.OwnerID,
		&s.StartTime, &s.EndTime, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Active = active != 0

	s.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &s, nil
}

// validate checks the fields a schedule needs before it can fire.
func validate(s *Schedule) error {
	if s.DeviceID == "" || s.OwnerID == "" {
		return fmt.Errorf("%w: device_id and owner_id are required", ErrInvalidSchedule)
	}
	if !IsValidTime(s.StartTime) {
		return fmt.Errorf("%w: start_time %q is not HH:MM", ErrInvalidSchedule, s.StartTime)
	}
	if !IsValidTime(s.EndTime) {
		return fmt.Errorf("%w: end_time %q is not HH:MM", ErrInvalidSchedule, s.EndTime)
	}
	return nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
