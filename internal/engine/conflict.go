package engine

import (
    "context"

    "github.com/happyhu/event-booking/internal/model"
    "github.com/happyhu/event-booking/internal/slot"
)

// ConflictDetector answers whether a candidate slot collides with an
// existing active booking.  The overlap rule is half-open: a candidate
// conflicts with an existing booking iff candidate.start < existing.end
// and candidate.end > existing.start, so touching endpoints coexist.
//
// The detector only reads; the engine runs it inside the same
// date-locked unit of work as the eventual write, because checking and
// writing are not safe to separate when an external payment wait can
// intervene.
type ConflictDetector struct {
    store BookingStore
}

// NewConflictDetector returns a detector reading from the given store.
func NewConflictDetector(store BookingStore) *ConflictDetector {
    return &ConflictDetector{store: store}
}

// Detect returns the first active booking on the slot's date that
// overlaps it, or nil when the range is free.  excludeID skips the
// record being edited; pass 0 for creations.
func (d *ConflictDetector) Detect(ctx context.Context, s slot.Slot, excludeID uint64) (*model.Booking, error) {
    existing, err := d.store.ListActiveByDate(ctx, s.EventDate)
    if err != nil {
        return nil, err
    }
    cs, ce := slot.Minutes(s.Start), slot.Minutes(s.End)
    for i := range existing {
        b := &existing[i]
        if b.ID == excludeID {
            continue
        }
        if slot.Overlaps(cs, ce, slot.Minutes(b.StartTime), slot.Minutes(b.EndTime)) {
            return b, nil
        }
    }
    return nil, nil
}
