package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Lumen MQTT topic scheme.
//
// Device topics follow: home/{owner_id}/{device_id}/{kind}
// where kind is one of "state", "heartbeat", or "cmd".
const (
	// TopicPrefixDevice is the base for all device topics.
	TopicPrefixDevice = "home"

	// TopicPrefixSystem is the base for backend system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topic kinds within the device scheme.
const (
	KindState     = "state"
	KindHeartbeat = "heartbeat"
	KindCommand   = "cmd"
)

// Topics provides builders for Lumen MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("user1", "light1")
//	// Returns: "home/user1/light1/cmd"
type Topics struct{}

// DeviceState returns the topic a device publishes full state updates on.
//
// Example: home/user1/light1/state
func (Topics) DeviceState(ownerID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixDevice, ownerID, deviceID, KindState)
}

// DeviceHeartbeat returns the topic a device publishes liveness pings on.
//
// Example: home/user1/light1/heartbeat
func (Topics) DeviceHeartbeat(ownerID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixDevice, ownerID, deviceID, KindHeartbeat)
}

// DeviceCommand returns the topic the backend publishes commands to.
//
// Example: home/user1/light1/cmd
func (Topics) DeviceCommand(ownerID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixDevice, ownerID, deviceID, KindCommand)
}

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: home/+/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/+/%s", TopicPrefixDevice, KindState)
}

// AllDeviceHeartbeats returns a pattern matching all device heartbeats.
//
// Pattern: home/+/+/heartbeat
func (Topics) AllDeviceHeartbeats() string {
	return fmt.Sprintf("%s/+/+/%s", TopicPrefixDevice, KindHeartbeat)
}

// SystemStatus returns the backend status topic.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ParseDeviceTopic splits a concrete device topic into its parts.
//
// It accepts topics of the form home/{owner}/{device}/{kind} and returns
// ErrInvalidTopic for anything else (wrong prefix, wrong depth, empty
// segments).
func ParseDeviceTopic(topic string) (ownerID, deviceID, kind string, err error) {
	const deviceTopicParts = 4

	parts := strings.Split(topic, "/")
	if len(parts) != deviceTopicParts || parts[0] != TopicPrefixDevice {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	ownerID, deviceID, kind = parts[1], parts[2], parts[3]
	if ownerID == "" || deviceID == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	switch kind {
	case KindState, KindHeartbeat, KindCommand:
		return ownerID, deviceID, kind, nil
	default:
		return "", "", "", fmt.Errorf("%w: unknown kind in %q", ErrInvalidTopic, topic)
	}
}
