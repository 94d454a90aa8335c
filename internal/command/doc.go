// Package command builds and publishes control commands for light
// devices.
//
// The dispatcher is the single outbound path to devices: it validates
// the request, constructs a "set" payload, and publishes it to
// home/{owner}/{device}/cmd. It deliberately never touches stored
// device state; the device's own telemetry report is the only source
// of truth for what actually happened.
package command
