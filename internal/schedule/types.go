package schedule

import (
	"regexp"
	"time"
)

// EventExecuted is the notifier event name for schedule fires.
const EventExecuted = "schedule_executed"

// timePattern matches 24-hour HH:MM wall-clock times.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// IsValidTime checks an HH:MM wall-clock string.
func IsValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// Schedule is a daily on/off window for one device: the device is
// switched on at StartTime and off at EndTime, every day, while the
// schedule is active. Times are HH:MM wall-clock strings in the
// backend's local time.
type Schedule struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	OwnerID   string    `json:"owner_id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutedEvent is the payload broadcast when a schedule fires.
type ExecutedEvent struct {
	ScheduleID string `json:"schedule_id"`
	DeviceID   string `json:"device_id"`
	Action     string `json:"action"` // "on" or "off"
}
