// Package influxdb provides time-series storage for device telemetry.
//
// Every accepted state update yields one point in the device_state
// measurement (power as 0/1, brightness when reported), tagged by
// device and owner. Writes are batched and asynchronous; a failed
// write surfaces through the error callback, never to the ingest
// path.
//
// The integration is optional. When disabled in config, Connect
// returns ErrDisabled and the rest of the system runs without a sink.
package influxdb
