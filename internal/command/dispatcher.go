package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
	"github.com/lumenhome/lumen-core/internal/infrastructure/mqtt"
)

// Publisher is the transport dependency of the dispatcher. The MQTT
// client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Payload is the wire format published to a device's command topic.
//
// State and Mode are always present (null when the caller did not set
// them); Brightness is present only when the caller set it, so a
// brightness of 0 round-trips as an explicit 0 and an omitted
// brightness produces no key at all.
type Payload struct {
	Command    string  `json:"command"`
	State      *string `json:"state"`
	Mode       *string `json:"mode"`
	Brightness *int    `json:"brightness,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// Result reports what a successful Submit actually sent.
type Result struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// Dispatcher builds and publishes device commands.
//
// A command is a request, not a state transition: the dispatcher never
// writes to the device registry. State changes persist only when the
// device reports them back through telemetry ingest.
type Dispatcher struct {
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	log       *logging.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher publishing at the given QoS.
func NewDispatcher(publisher Publisher, qos byte, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		qos:       qos,
		log:       log,
		now:       time.Now,
	}
}

// Submit validates, builds, and publishes a "set" command for the
// given device, and returns the topic and payload verbatim so callers
// can report what was sent.
//
// Fire and forget: a successful return means the transport accepted
// the publish, not that the device acted on it.
func (d *Dispatcher) Submit(ctx context.Context, ownerID, deviceID string, state, mode *string, brightness *int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submitting command: %w", err)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	if brightness != nil && (*brightness < 0 || *brightness > 100) {
		return nil, fmt.Errorf("%w: brightness %d out of range 0-100", ErrValidation, *brightness)
	}

	payload := Payload{
		Command:    "set",
		State:      state,
		Mode:       mode,
		Brightness: brightness,
		Timestamp:  d.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling command payload: %w", err)
	}

	topic := d.topics.DeviceCommand(ownerID, deviceID)
	if err := d.publisher.Publish(topic, body, d.qos, false); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPublish, topic, err)
	}

	d.log.Debug("command published",
		"topic", topic,
		"device_id", deviceID,
		"owner_id", ownerID,
	)

	return &Result{Topic: topic, Payload: body}, nil
}
