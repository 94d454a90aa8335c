package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
)

// sweepTimeout bounds the registry work of a single sweep so a wedged
// database cannot pile up overlapping sweeps.
const sweepTimeout = 10 * time.Second

// Notifier receives offline notifications for fan-out to UI clients.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Monitor periodically forces stale powered-on devices offline.
//
// Two knobs drive it, deliberately separate: the sweep interval (how
// often it looks) and the staleness threshold (how long a device may
// be silent before it is considered gone). The write itself is a
// conditional update in the registry, so a sweep that loses a race
// with fresh telemetry changes nothing and a device is only ever
// notified offline once per outage.
type Monitor struct {
	repo      device.Repository
	notifier  Notifier
	log       *logging.Logger
	interval  time.Duration
	threshold time.Duration
}

// NewMonitor creates a liveness monitor from config.
func NewMonitor(repo device.Repository, notifier Notifier, cfg config.LivenessConfig, log *logging.Logger) *Monitor {
	return &Monitor{
		repo:      repo,
		notifier:  notifier,
		log:       log,
		interval:  cfg.Interval(),
		threshold: cfg.Threshold(),
	}
}

// Start launches the sweep loop. The loop runs until the context is
// cancelled; a failed sweep is logged and the next tick proceeds as
// normal.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.log.Info("liveness monitor started",
			"sweep_interval", m.interval.String(),
			"staleness_threshold", m.threshold.String(),
		)

		for {
			select {
			case <-ctx.Done():
				m.log.Info("liveness monitor stopped")
				return
			case <-ticker.C:
				if err := m.RunOnce(ctx, time.Now()); err != nil {
					m.log.Error("liveness sweep failed", "error", err)
				}
			}
		}
	}()
}

// RunOnce performs a single sweep at the given instant: every device
// still marked on whose last_seen predates now minus the threshold is
// forced off and announced as offline.
//
// Exposed separately from the loop so callers and tests can sweep at a
// controlled clock.
func (m *Monitor) RunOnce(ctx context.Context, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	cutoff := now.UTC().Add(-m.threshold)

	stale, err := m.repo.ListPoweredStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing stale devices: %w", err)
	}

	for _, d := range stale {
		marked, err := m.repo.MarkOffline(ctx, d.DeviceID, cutoff)
		if err != nil {
			m.log.Error("marking device offline", "device_id", d.DeviceID, "error", err)
			continue
		}
		if !marked {
			// Lost the race: the device reported in (or was switched
			// off) between the list and the write. Nothing to announce.
			continue
		}

		m.log.Info("device marked offline",
			"device_id", d.DeviceID,
			"last_seen", d.LastSeen.Format(time.RFC3339),
		)
		m.notifier.Broadcast(device.EventStateUpdate, device.NewOfflineEvent(d.DeviceID))
	}

	return nil
}
