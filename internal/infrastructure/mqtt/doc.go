// Package mqtt provides MQTT client connectivity for Lumen Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for backend offline signalling
//   - Connection health monitoring
//
// # Architecture
//
// Lumen uses MQTT as the transport between the backend core and the
// light devices in the field. Devices publish state snapshots and
// heartbeats; the backend publishes commands.
//
//	Device → home/{owner}/{device}/state      (full state snapshot)
//	Device → home/{owner}/{device}/heartbeat  (liveness ping)
//	Core   → home/{owner}/{device}/cmd        (commands to device)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.AllDeviceStates(), 1, handleState)
//
// The client restores all subscriptions automatically after a
// reconnect, so handlers registered once stay registered for the life
// of the process.
package mqtt
