package command

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
)

// fakePublisher captures published messages.
type fakePublisher struct {
	topic   string
	payload []byte
	qos     byte
	calls   int
	err     error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.calls++
	f.topic = topic
	f.payload = payload
	f.qos = qos
	return f.err
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestDispatcher(pub *fakePublisher) *Dispatcher {
	d := NewDispatcher(pub, 1, logging.Default())
	d.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return d
}

func TestDispatcher_Submit(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)

	result, err := d.Submit(context.Background(), "user1", "light1",
		strPtr("on"), strPtr("manual"), intPtr(60))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Topic != "home/user1/light1/cmd" {
		t.Errorf("Topic = %q, want %q", result.Topic, "home/user1/light1/cmd")
	}
	if pub.topic != result.Topic {
		t.Errorf("published topic %q != result topic %q", pub.topic, result.Topic)
	}
	if string(pub.payload) != string(result.Payload) {
		t.Error("result payload differs from published payload")
	}
	if pub.qos != 1 {
		t.Errorf("qos = %d, want 1", pub.qos)
	}

	var got Payload
	if err := json.Unmarshal(result.Payload, &got); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if got.Command != "set" {
		t.Errorf("command = %q, want %q", got.Command, "set")
	}
	if got.State == nil || *got.State != "on" {
		t.Errorf("state = %v, want on", got.State)
	}
	if got.Mode == nil || *got.Mode != "manual" {
		t.Errorf("mode = %v, want manual", got.Mode)
	}
	if got.Brightness == nil || *got.Brightness != 60 {
		t.Errorf("brightness = %v, want 60", got.Brightness)
	}
	if got.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q, want fixed RFC3339 UTC", got.Timestamp)
	}
}

func TestDispatcher_SubmitBrightnessOmitted(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)

	result, err := d.Submit(context.Background(), "user1", "light1",
		strPtr("on"), nil, nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if strings.Contains(string(result.Payload), "brightness") {
		t.Errorf("payload %s contains brightness key, want omitted", result.Payload)
	}
	// Unset mode must still be present as an explicit null.
	if !strings.Contains(string(result.Payload), `"mode":null`) {
		t.Errorf("payload %s missing explicit null mode", result.Payload)
	}
}

func TestDispatcher_SubmitBrightnessZero(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)

	result, err := d.Submit(context.Background(), "user1", "light1",
		nil, nil, intPtr(0))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Zero is falsy but present: it must survive as an explicit key.
	if !strings.Contains(string(result.Payload), `"brightness":0`) {
		t.Errorf("payload %s missing explicit brightness 0", result.Payload)
	}
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	tests := []struct {
		name       string
		ownerID    string
		deviceID   string
		brightness *int
	}{
		{"empty owner", "", "light1", nil},
		{"empty device", "user1", "", nil},
		{"brightness over range", "user1", "light1", intPtr(101)},
		{"brightness under range", "user1", "light1", intPtr(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			d := newTestDispatcher(pub)

			_, err := d.Submit(context.Background(), tt.ownerID, tt.deviceID,
				nil, nil, tt.brightness)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Submit() error = %v, want ErrValidation", err)
			}
			if pub.calls != 0 {
				t.Error("invalid command reached the publisher")
			}
		})
	}
}

func TestDispatcher_SubmitPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	d := newTestDispatcher(pub)

	_, err := d.Submit(context.Background(), "user1", "light1",
		strPtr("on"), nil, nil)
	if !errors.Is(err, ErrPublish) {
		t.Errorf("Submit() error = %v, want ErrPublish", err)
	}
}

func TestDispatcher_SubmitCancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Submit(ctx, "user1", "light1", strPtr("on"), nil, nil)
	if err == nil {
		t.Fatal("Submit() with cancelled context expected error")
	}
	if pub.calls != 0 {
		t.Error("cancelled command reached the publisher")
	}
}
