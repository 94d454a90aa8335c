// Package liveness detects devices that have gone silent.
//
// A device that is marked on but has not been heard from within the
// staleness threshold is forced off in the registry and announced to
// UI clients as offline. Detection is a periodic sweep, not an event:
// the absence of heartbeats is the signal.
package liveness
