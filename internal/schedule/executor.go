package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenhome/lumen-core/internal/command"
	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
)

// tickTimeout bounds the work of a single executor tick.
const tickTimeout = 10 * time.Second

// Submitter is the command path the executor fires through. The
// command dispatcher satisfies it, so scheduled and user-issued
// commands take the identical route to the device.
type Submitter interface {
	Submit(ctx context.Context, ownerID, deviceID string, state, mode *string, brightness *int) (*command.Result, error)
}

// Notifier receives schedule execution events for fan-out to UI clients.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Executor fires schedules as wall-clock minutes come up.
//
// Each tick compares the current HH:MM against every active schedule's
// start and end time. The tick interval may be shorter than a minute,
// so a fired-at map keyed by schedule and action deduplicates repeat
// matches within the same minute.
type Executor struct {
	repo      Repository
	submitter Submitter
	notifier  Notifier
	log       *logging.Logger
	interval  time.Duration
	fired     map[string]string // "<schedule_id>/<action>" -> minute it last fired
	now       func() time.Time
}

// NewExecutor creates a schedule executor from config.
func NewExecutor(repo Repository, submitter Submitter, notifier Notifier, cfg config.SchedulerConfig, log *logging.Logger) *Executor {
	return &Executor{
		repo:      repo,
		submitter: submitter,
		notifier:  notifier,
		log:       log,
		interval:  time.Duration(cfg.TickInterval) * time.Second,
		fired:     make(map[string]string),
		now:       time.Now,
	}
}

// Start launches the tick loop. The loop runs until the context is
// cancelled; a failed tick is logged and the next one proceeds.
func (e *Executor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.log.Info("schedule executor started", "tick_interval", e.interval.String())

		for {
			select {
			case <-ctx.Done():
				e.log.Info("schedule executor stopped")
				return
			case <-ticker.C:
				if err := e.RunOnce(ctx, e.now()); err != nil {
					e.log.Error("schedule tick failed", "error", err)
				}
			}
		}
	}()
}

// RunOnce evaluates every active schedule against the given instant.
// Exposed separately from the loop so tests can tick at a controlled
// clock. The executor runs single-goroutine, so the fired map needs no
// lock.
func (e *Executor) RunOnce(ctx context.Context, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	hhmm := now.Format("15:04")
	minute := now.Format("2006-01-02 15:04")

	active, err := e.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active schedules: %w", err)
	}

	for _, sched := range active {
		if sched.StartTime == hhmm {
			e.fire(ctx, sched, device.StateOn, minute)
		}
		if sched.EndTime == hhmm {
			e.fire(ctx, sched, device.StateOff, minute)
		}
	}

	return nil
}

// fire submits one scheduled command unless it already fired this
// minute. Submit failures are logged and do not consume the minute, so
// a transient transport error gets retried on the next tick.
func (e *Executor) fire(ctx context.Context, sched Schedule, action, minute string) {
	key := sched.ID + "/" + action
	if e.fired[key] == minute {
		return
	}

	state := action
	mode := device.ModeAuto
	if _, err := e.submitter.Submit(ctx, sched.OwnerID, sched.DeviceID, &state, &mode, nil); err != nil {
		e.log.Error("submitting scheduled command",
			"schedule_id", sched.ID,
			"device_id", sched.DeviceID,
			"action", action,
			"error", err,
		)
		return
	}

	e.fired[key] = minute

	e.log.Info("schedule fired",
		"schedule_id", sched.ID,
		"device_id", sched.DeviceID,
		"action", action,
	)
	e.notifier.Broadcast(EventExecuted, ExecutedEvent{
		ScheduleID: sched.ID,
		DeviceID:   sched.DeviceID,
		Action:     action,
	})
}
