package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenhome/lumen-core/internal/command"
	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
)

// fakeSubmitter records submitted commands.
type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submittedCommand
	err   error
}

type submittedCommand struct {
	ownerID  string
	deviceID string
	state    string
}

func (f *fakeSubmitter) Submit(ctx context.Context, ownerID, deviceID string, state, mode *string, brightness *int) (*command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := ""
	if state != nil {
		s = *state
	}
	f.calls = append(f.calls, submittedCommand{ownerID: ownerID, deviceID: deviceID, state: s})
	return &command.Result{}, nil
}

func (f *fakeSubmitter) all() []submittedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedCommand(nil), f.calls...)
}

// fakeNotifier records broadcast events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []ExecutedEvent
}

func (f *fakeNotifier) Broadcast(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := payload.(ExecutedEvent); ok {
		f.events = append(f.events, e)
	}
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestExecutor(t *testing.T, repo Repository, submitter Submitter, notifier Notifier) *Executor {
	t.Helper()
	cfg := config.SchedulerConfig{TickInterval: 30}
	return NewExecutor(repo, submitter, notifier, cfg, logging.Default())
}

func createSchedule(t *testing.T, repo Repository, deviceID, start, end string) *Schedule {
	t.Helper()
	s := &Schedule{
		DeviceID:  deviceID,
		OwnerID:   "user1",
		StartTime: start,
		EndTime:   end,
		Active:    true,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("creating test schedule: %v", err)
	}
	return s
}

func TestRunOnceFiresStart(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{}
	e := newTestExecutor(t, repo, submitter, notifier)

	sched := createSchedule(t, repo, "light1", "18:30", "23:00")

	at := time.Date(2026, 3, 1, 18, 30, 5, 0, time.Local)
	if err := e.RunOnce(context.Background(), at); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	calls := submitter.all()
	if len(calls) != 1 {
		t.Fatalf("submits = %d, want 1", len(calls))
	}
	if calls[0].deviceID != "light1" || calls[0].state != device.StateOn {
		t.Errorf("submitted %+v, want light1 on", calls[0])
	}

	if notifier.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", notifier.count())
	}
	if notifier.events[0].ScheduleID != sched.ID || notifier.events[0].Action != device.StateOn {
		t.Errorf("event = %+v", notifier.events[0])
	}
}

func TestRunOnceFiresEnd(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{}
	e := newTestExecutor(t, repo, submitter, notifier)

	createSchedule(t, repo, "light1", "18:30", "23:00")

	at := time.Date(2026, 3, 1, 23, 0, 0, 0, time.Local)
	if err := e.RunOnce(context.Background(), at); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	calls := submitter.all()
	if len(calls) != 1 || calls[0].state != device.StateOff {
		t.Fatalf("submits = %+v, want one off command", calls)
	}
}

func TestRunOnceDeduplicatesWithinMinute(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{}
	e := newTestExecutor(t, repo, submitter, notifier)

	createSchedule(t, repo, "light1", "18:30", "23:00")

	// Three ticks inside the same minute fire exactly once.
	base := time.Date(2026, 3, 1, 18, 30, 0, 0, time.Local)
	for _, offset := range []time.Duration{0, 20 * time.Second, 40 * time.Second} {
		if err := e.RunOnce(context.Background(), base.Add(offset)); err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
	}
	if got := len(submitter.all()); got != 1 {
		t.Errorf("submits = %d, want 1 within a minute", got)
	}

	// The same minute on the next day fires again.
	if err := e.RunOnce(context.Background(), base.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("RunOnce() next day error = %v", err)
	}
	if got := len(submitter.all()); got != 2 {
		t.Errorf("submits = %d, want 2 across days", got)
	}
}

func TestRunOnceSkipsInactiveAndNonMatching(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{}
	e := newTestExecutor(t, repo, submitter, notifier)

	inactive := createSchedule(t, repo, "light1", "18:30", "23:00")
	inactive.Active = false
	if err := repo.Update(context.Background(), inactive); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	createSchedule(t, repo, "light2", "07:00", "08:00")

	at := time.Date(2026, 3, 1, 18, 30, 0, 0, time.Local)
	if err := e.RunOnce(context.Background(), at); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if got := len(submitter.all()); got != 0 {
		t.Errorf("submits = %d, want 0", got)
	}
}

func TestRunOnceSubmitFailureRetriesNextTick(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	submitter := &fakeSubmitter{err: errors.New("broker down")}
	notifier := &fakeNotifier{}
	e := newTestExecutor(t, repo, submitter, notifier)

	createSchedule(t, repo, "light1", "18:30", "23:00")

	at := time.Date(2026, 3, 1, 18, 30, 0, 0, time.Local)
	if err := e.RunOnce(context.Background(), at); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if notifier.count() != 0 {
		t.Error("failed submit was broadcast")
	}

	// Transport recovers; the same minute has not been consumed.
	submitter.err = nil
	if err := e.RunOnce(context.Background(), at.Add(20*time.Second)); err != nil {
		t.Fatalf("RunOnce() retry error = %v", err)
	}
	if got := len(submitter.all()); got != 1 {
		t.Errorf("submits after retry = %d, want 1", got)
	}
}
