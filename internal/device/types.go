package device

import "time"

// Power states reported to UI clients. A device is reported "on" or
// "off" from its stored power flag; "offline" is used by liveness
// notifications when a stale device is forced off.
const (
	StateOn      = "on"
	StateOff     = "off"
	StateOffline = "offline"
)

// Known operating modes. Mode is stored as a free string so firmware
// can introduce new modes without a backend release; these constants
// cover the modes the backend itself assigns.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// Device is the persistent record of a physical light device: its
// identity plus the last state it reported.
//
// Brightness is a pointer because absence is meaningful: a device that
// has never reported brightness stores NULL, and an update that omits
// brightness must not overwrite a previously stored value. Zero and
// absent are distinct all the way through storage and JSON.
type Device struct {
	// DeviceID uniquely identifies the device. Immutable after creation.
	DeviceID string `json:"device_id"`

	// DisplayName is the human-readable name shown in the UI.
	DisplayName string `json:"display_name"`

	// OwnerID references the user that owns this device.
	OwnerID string `json:"owner_id"`

	// Power is the last reported power state (true = on).
	Power bool `json:"power"`

	// Mode is the last reported operating mode ("manual", "auto", ...).
	Mode string `json:"mode"`

	// Brightness is the last reported brightness 0-100, or nil if the
	// device has never reported one.
	Brightness *int `json:"brightness,omitempty"`

	// LastSeen is the ingestion time of the most recent telemetry or
	// heartbeat, or nil if the device has never been heard from.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OnlineAt reports whether the device counts as online at the given
// instant: it has been heard from within the staleness threshold.
// Online status is always derived from last_seen, never stored.
func (d *Device) OnlineAt(now time.Time, threshold time.Duration) bool {
	if d.LastSeen == nil {
		return false
	}
	return now.Sub(*d.LastSeen) <= threshold
}

// StateString returns the UI power state string for the stored flag.
func (d *Device) StateString() string {
	if d.Power {
		return StateOn
	}
	return StateOff
}
