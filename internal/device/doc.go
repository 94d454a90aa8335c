// Package device provides the Device Registry for Lumen Core.
//
// The Device Registry is the persistent catalogue of every light device
// known to the backend: identity (device_id, display name, owner) plus
// the last state the device reported (power, mode, brightness,
// last_seen). It is the single mutable resource shared by telemetry
// ingest, the liveness monitor, and the REST API.
//
// # Architecture
//
//	┌───────────────┐   ┌───────────────┐   ┌───────────────┐
//	│ Telemetry     │   │ Liveness      │   │ REST API      │
//	│ Ingest        │   │ Monitor       │   │ (read + CRUD) │
//	└───────┬───────┘   └───────┬───────┘   └───────┬───────┘
//	        │ ApplyUpdate /     │ MarkOffline /     │
//	        │ TouchLastSeen     │ ListPoweredStale  │
//	        ▼                   ▼                   ▼
//	┌─────────────────────────────────────────────────────────┐
//	│              Repository (repository.go)                 │
//	│  SQLite, context on every call, sentinel errors         │
//	└─────────────────────────────────────────────────────────┘
//
// # Reconciliation
//
// All writers of device state go through Reconcile (reconcile.go), the
// single merge policy for partial updates: fields absent from an
// incoming update keep their stored value, brightness is never
// defaulted, and last_seen is always the ingestion timestamp.
//
// # Concurrency
//
// There is no in-memory cache. Each write is a request-scoped
// read-modify-write transaction; for a single device the last commit
// wins. MarkOffline is a conditional UPDATE so the liveness sweep can
// never clobber telemetry that arrived after its read.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//
//	dev, err := repo.GetByID(ctx, "light1")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // unknown device
//	}
//
//	on := true
//	updated, err := repo.ApplyUpdate(ctx, "light1",
//	    device.Update{Power: &on}, time.Now())
//
// Online status is derived at read time with Device.OnlineAt; it is
// never stored.
package device
