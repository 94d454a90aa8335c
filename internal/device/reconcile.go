package device

import "time"

// Update is a partial state update destined for the registry. Nil
// fields mean "not carried by the incoming message" and leave the
// stored value untouched. A non-nil Brightness of 0 is a real value,
// not an omission.
type Update struct {
	Power      *bool
	Mode       *string
	Brightness *int
}

// Reconcile merges a partial update into an existing device record and
// returns the result. It is the single policy shared by every writer
// of device state:
//
//   - power: taken from the update if carried, else kept.
//   - mode: taken from the update if carried, else kept.
//   - brightness: taken from the update only if explicitly present,
//     else kept. Never defaulted to zero.
//   - last_seen: always set to the ingestion timestamp, regardless of
//     any timestamp the payload may carry.
//
// Reconcile is pure: it never touches storage and never mutates its
// input.
func Reconcile(existing Device, upd Update, ingestedAt time.Time) Device {
	out := existing

	if upd.Power != nil {
		out.Power = *upd.Power
	}
	if upd.Mode != nil {
		out.Mode = *upd.Mode
	}
	if upd.Brightness != nil {
		b := *upd.Brightness
		out.Brightness = &b
	}

	seen := ingestedAt.UTC()
	out.LastSeen = &seen

	return out
}
