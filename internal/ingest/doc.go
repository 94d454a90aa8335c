// Package ingest consumes device telemetry from MQTT and reconciles
// it into the device registry.
//
// Two wildcard subscriptions feed the service:
//
//	home/+/+/state      full state update (power, mode, brightness)
//	home/+/+/heartbeat  liveness ping (last_seen only)
//
// The transport callback enqueues onto a bounded queue and returns
// immediately; a consumer goroutine drains the queue and performs the
// registry writes. Malformed payloads and unknown devices are logged
// and dropped. Accepted state updates are broadcast to connected UI
// sessions and, when a metrics sink is configured, recorded as
// telemetry points.
package ingest
