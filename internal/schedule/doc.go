// Package schedule stores daily on/off windows for devices and fires
// them as wall-clock minutes come up.
//
// A schedule says "switch this device on at 18:30 and off at 23:00,
// every day". The executor evaluates active schedules on a ticker and
// submits commands through the same dispatcher the API uses; it never
// writes to the device registry itself. The device's own telemetry
// report closes the loop.
package schedule
