package mqtt

import "errors"

// Sentinel errors for MQTT operations. Callers can test for these with
// errors.Is after unwrapping.
var (
	// ErrNotConnected indicates an operation was attempted while the
	// client is not connected to the broker.
	ErrNotConnected = errors.New("mqtt client not connected")

	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt connection failed")

	// ErrPublishFailed indicates a publish did not complete.
	ErrPublishFailed = errors.New("mqtt publish failed")

	// ErrSubscribeFailed indicates a subscribe did not complete.
	ErrSubscribeFailed = errors.New("mqtt subscribe failed")

	// ErrUnsubscribeFailed indicates an unsubscribe did not complete.
	ErrUnsubscribeFailed = errors.New("mqtt unsubscribe failed")

	// ErrInvalidQoS indicates a QoS level outside 0..2.
	ErrInvalidQoS = errors.New("invalid qos level")

	// ErrInvalidTopic indicates a topic that does not match the expected
	// scheme or contains empty segments.
	ErrInvalidTopic = errors.New("invalid topic")
)
