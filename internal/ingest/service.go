package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
	"github.com/lumenhome/lumen-core/internal/infrastructure/mqtt"
)

// Notifier receives accepted state updates for fan-out to UI clients.
// The WebSocket hub satisfies it.
type Notifier interface {
	Broadcast(event string, payload any)
}

// MetricsSink receives per-update telemetry points. The InfluxDB
// client satisfies it; a nil sink disables metrics.
type MetricsSink interface {
	WriteDeviceMetric(deviceID, ownerID string, power bool, brightness *int)
}

// Subscriber is the transport dependency of the service. The MQTT
// client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// statePayload is the wire format devices publish on their state topic.
// Pointer fields distinguish absent from zero-valued.
type statePayload struct {
	DeviceID   string  `json:"device_id"`
	State      *string `json:"state"`
	Mode       *string `json:"mode"`
	Brightness *int    `json:"brightness"`
}

// message is one queued unit of inbound telemetry. receivedAt is
// captured in the transport callback so queueing delay never skews
// last_seen.
type message struct {
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Service consumes device telemetry and reconciles it into the
// registry.
//
// The transport callback only enqueues onto a bounded queue; a single
// consumer goroutine drains it and runs the reconcile pipeline. This
// keeps registry latency out of the MQTT client's callback goroutines.
// When the queue is full the message is dropped with a warning rather
// than blocking the transport.
type Service struct {
	repo      device.Repository
	notifier  Notifier
	metrics   MetricsSink
	log       *logging.Logger
	queue     chan message
	opTimeout time.Duration
	now       func() time.Time
}

// New creates an ingest service with a queue sized from config.
func New(repo device.Repository, notifier Notifier, metrics MetricsSink, cfg config.IngestConfig, log *logging.Logger) *Service {
	return &Service{
		repo:      repo,
		notifier:  notifier,
		metrics:   metrics,
		log:       log,
		queue:     make(chan message, cfg.QueueSize),
		opTimeout: time.Duration(cfg.OpTimeout) * time.Second,
		now:       time.Now,
	}
}

// Subscribe registers the service's handler for the device state and
// heartbeat wildcard topics.
func (s *Service) Subscribe(client Subscriber, qos byte) error {
	topics := mqtt.Topics{}

	if err := client.Subscribe(topics.AllDeviceStates(), qos, s.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to device states: %w", err)
	}
	if err := client.Subscribe(topics.AllDeviceHeartbeats(), qos, s.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to device heartbeats: %w", err)
	}

	return nil
}

// HandleMessage is the transport callback. It enqueues and returns;
// it never blocks and never returns an error that could tear down the
// subscription.
func (s *Service) HandleMessage(topic string, payload []byte) error {
	msg := message{topic: topic, payload: payload, receivedAt: s.now().UTC()}

	select {
	case s.queue <- msg:
	default:
		s.log.Warn("ingest queue full, dropping message",
			"topic", topic,
			"queue_size", cap(s.queue),
		)
	}

	return nil
}

// Start launches the consumer goroutine. It drains the queue until the
// context is cancelled.
func (s *Service) Start(ctx context.Context) {
	go func() {
		s.log.Info("telemetry ingest started", "queue_size", cap(s.queue))
		for {
			select {
			case <-ctx.Done():
				s.log.Info("telemetry ingest stopped")
				return
			case msg := <-s.queue:
				s.process(ctx, msg)
			}
		}
	}()
}

// QueueDepth reports the number of messages waiting in the queue.
func (s *Service) QueueDepth() int {
	return len(s.queue)
}

// process dispatches one dequeued message. Every failure is logged and
// swallowed; the loop must survive any single message.
func (s *Service) process(ctx context.Context, msg message) {
	ownerID, deviceID, kind, err := mqtt.ParseDeviceTopic(msg.topic)
	if err != nil {
		s.log.Warn("ignoring message on unexpected topic", "topic", msg.topic)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	switch kind {
	case mqtt.KindState:
		s.processState(opCtx, ownerID, deviceID, msg)
	case mqtt.KindHeartbeat:
		s.processHeartbeat(opCtx, deviceID, msg)
	default:
		// Command topics are outbound only; a device echoing one back
		// is noise.
		s.log.Warn("ignoring message of unexpected kind", "topic", msg.topic, "kind", kind)
	}
}

// processState applies a full state update under the reconciliation
// rules and broadcasts the result.
func (s *Service) processState(ctx context.Context, ownerID, deviceID string, msg message) {
	upd, err := parseStateUpdate(msg.payload)
	if err != nil {
		s.log.Warn("discarding malformed state payload",
			"topic", msg.topic,
			"error", err,
		)
		return
	}

	updated, err := s.repo.ApplyUpdate(ctx, deviceID, upd, msg.receivedAt)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			s.log.Warn("state update for unknown device",
				"device_id", deviceID,
				"owner_id", ownerID,
			)
			return
		}
		s.log.Error("applying state update", "device_id", deviceID, "error", err)
		return
	}

	s.notifier.Broadcast(device.EventStateUpdate, device.NewStateEvent(updated))

	if s.metrics != nil {
		s.metrics.WriteDeviceMetric(deviceID, ownerID, updated.Power, updated.Brightness)
	}
}

// processHeartbeat records liveness only. No broadcast, no state
// change beyond last_seen.
func (s *Service) processHeartbeat(ctx context.Context, deviceID string, msg message) {
	if err := s.repo.TouchLastSeen(ctx, deviceID, msg.receivedAt); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			s.log.Warn("heartbeat from unknown device", "device_id", deviceID)
			return
		}
		s.log.Error("recording heartbeat", "device_id", deviceID, "error", err)
	}
}

// parseStateUpdate converts a state payload into a registry update.
// The payload's own timestamp, if any, is ignored: last_seen is always
// ingestion time.
func parseStateUpdate(payload []byte) (device.Update, error) {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return device.Update{}, fmt.Errorf("parsing state payload: %w", err)
	}

	var upd device.Update

	if p.State != nil {
		switch *p.State {
		case device.StateOn:
			on := true
			upd.Power = &on
		case device.StateOff:
			off := false
			upd.Power = &off
		default:
			return device.Update{}, fmt.Errorf("unknown state value %q", *p.State)
		}
	}

	upd.Mode = p.Mode
	upd.Brightness = p.Brightness

	return upd, nil
}
