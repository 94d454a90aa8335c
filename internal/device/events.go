package device

// EventStateUpdate is the notifier event name for device state changes.
const EventStateUpdate = "device_state_update"

// StateEvent is the payload broadcast to UI clients when a device's
// state changes. Mode and Brightness are pointers so an offline
// notification can carry explicit nulls.
type StateEvent struct {
	DeviceID   string  `json:"device_id"`
	State      string  `json:"state"`
	Mode       *string `json:"mode"`
	Brightness *int    `json:"brightness"`
}

// NewStateEvent builds the broadcast payload for a device's current
// stored state.
func NewStateEvent(d *Device) StateEvent {
	mode := d.Mode
	return StateEvent{
		DeviceID:   d.DeviceID,
		State:      d.StateString(),
		Mode:       &mode,
		Brightness: d.Brightness,
	}
}

// NewOfflineEvent builds the broadcast payload for a device forced
// offline by the liveness monitor. Mode and brightness are explicit
// nulls: the backend no longer vouches for them.
func NewOfflineEvent(deviceID string) StateEvent {
	return StateEvent{
		DeviceID:   deviceID,
		State:      StateOffline,
		Mode:       nil,
		Brightness: nil,
	}
}
