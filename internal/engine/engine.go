// Package engine implements the reservation scheduling and
// consistency engine: slot validation, conflict detection, the
// two-store commit of a booking, the status state machine and the
// payment-gated staging protocol.  It is the only component other
// subsystems call to mutate bookings.
package engine

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/happyhu/event-booking/internal/hoursindex"
    "github.com/happyhu/event-booking/internal/model"
    "github.com/happyhu/event-booking/internal/queue"
    "github.com/happyhu/event-booking/internal/slot"
    "github.com/happyhu/event-booking/internal/status"
)

// BookingStore is the relational persistence the engine writes
// through.  It is the source of truth; the hours index is a redundant
// projection of it.
type BookingStore interface {
    Create(ctx context.Context, b *model.Booking) error
    Update(ctx context.Context, b *model.Booking) error
    Delete(ctx context.Context, id uint64) error
    GetByID(ctx context.Context, id uint64) (*model.Booking, error)
    ListActiveByDate(ctx context.Context, date string) ([]model.Booking, error)
    UpdateStatus(ctx context.Context, id uint64, from, to model.Status) error
}

// SideIndex is the flat-file projection of booked hours per date.
type SideIndex interface {
    Add(date, start, end string, bookingID uint64) error
    RemoveByBookingID(bookingID uint64) (bool, error)
    ListForDate(date string) ([]hoursindex.Entry, error)
}

// CatalogStore resolves selected product ids to priced line items.
type CatalogStore interface {
    PriceLineItems(ctx context.Context, productIDs []uint64) ([]model.LineItem, error)
}

// StagedStore keeps reservations pending payment confirmation, keyed
// by the provider token, with store-owned expiry.
type StagedStore interface {
    Put(ctx context.Context, r *model.StagedReservation) error
    Get(ctx context.Context, token string) (*model.StagedReservation, error)
    Save(ctx context.Context, r *model.StagedReservation) error
    Delete(ctx context.Context, token string) error
}

// PaymentProvider is the external card flow: create returns the
// redirect target and token, commit resolves a token to its final
// status.
type PaymentProvider interface {
    CreateTransaction(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (redirectURL, token string, err error)
    CommitTransaction(ctx context.Context, token string) (paymentStatus string, err error)
}

// EventPublisher delivers domain events to the notification
// collaborator.  Publish failures never roll back the state change
// that produced the event.
type EventPublisher interface {
    PublishStatusChanged(ctx context.Context, event queue.StatusChangedEvent) error
    PublishReservationConfirmed(ctx context.Context, event queue.ReservationConfirmedEvent) error
    PublishPaymentReconcile(ctx context.Context, event queue.PaymentReconcileEvent) error
}

// depositPercent is the share of the total charged as a deposit when
// a booking is staged for payment.
const depositPercent = 30

// Engine orchestrates all booking mutations.  Each operation runs as
// one logical unit of work serialized per event date, so two
// concurrent bookings for overlapping slots can never both pass the
// conflict check before either writes.
type Engine struct {
    bookings  BookingStore
    catalog   CatalogStore
    index     SideIndex
    staged    StagedStore
    provider  PaymentProvider
    events    EventPublisher
    detector  *ConflictDetector
    locks     *keyedLocks
    confirms  *keyedLocks
    returnURL string

    now func() time.Time
}

// New wires an Engine from its collaborators.  returnURL is where the
// payment provider sends the customer back after the card flow.
func New(bookings BookingStore, catalog CatalogStore, index SideIndex, staged StagedStore, provider PaymentProvider, events EventPublisher, returnURL string) *Engine {
    return &Engine{
        bookings:  bookings,
        catalog:   catalog,
        index:     index,
        staged:    staged,
        provider:  provider,
        events:    events,
        detector:  NewConflictDetector(bookings),
        locks:     newKeyedLocks(),
        confirms:  newKeyedLocks(),
        returnURL: returnURL,
        now:       time.Now,
    }
}

// BookingRequest carries the customer-supplied fields of a booking.
type BookingRequest struct {
    CustomerName  string
    CustomerEmail string
    CustomerPhone string
    EventDate     string // YYYY-MM-DD
    StartTime     string // HH:MM
    EndTime       string // HH:MM
    Location      string
    Notes         string
}

func (r BookingRequest) slot() slot.Slot {
    return slot.Slot{EventDate: r.EventDate, Start: r.StartTime, End: r.EndTime}
}

// validate runs the slot rules plus the required customer fields and
// folds every violation into one field-keyed ValidationError.
func (e *Engine) validate(r BookingRequest) error {
    fields := map[string]string{}
    if err := slot.Validate(r.slot(), e.now()); err != nil {
        var inv *slot.InvalidSlotError
        if errors.As(err, &inv) {
            for f, msg := range inv.Fields {
                fields[f] = msg
            }
        } else {
            return err
        }
    }
    if r.CustomerName == "" {
        fields["customer_name"] = "customer name is required"
    }
    if r.CustomerEmail == "" {
        fields["customer_email"] = "customer email is required"
    }
    if len(fields) > 0 {
        return &ValidationError{Fields: fields}
    }
    return nil
}

// CreateBooking validates and commits a free booking (no chargeable
// items, no payment step).  On success the booking exists in both the
// relational store and the hours index; if the index write fails the
// relational record is rolled back before the error is returned.
func (e *Engine) CreateBooking(ctx context.Context, req BookingRequest) (*model.Booking, error) {
    if err := e.validate(req); err != nil {
        return nil, err
    }
    unlock := e.locks.lock(req.EventDate)
    defer unlock()

    if existing, err := e.detector.Detect(ctx, req.slot(), 0); err != nil {
        return nil, err
    } else if existing != nil {
        return nil, &SlotConflictError{Existing: existing}
    }

    b := &model.Booking{
        CustomerName:  req.CustomerName,
        CustomerEmail: req.CustomerEmail,
        CustomerPhone: req.CustomerPhone,
        EventDate:     req.EventDate,
        StartTime:     req.StartTime,
        EndTime:       req.EndTime,
        Location:      req.Location,
        Notes:         req.Notes,
        Status:        model.StatusPending,
    }
    if err := e.bookings.Create(ctx, b); err != nil {
        return nil, err
    }
    if err := e.commitIndex(ctx, b); err != nil {
        return nil, err
    }
    return b, nil
}

// commitIndex records a freshly created booking in the hours index
// and compensates the relational create when the index refuses.  An
// index refusal here means the two guards disagree; it is logged
// loudly and surfaced as ErrIndexInconsistent.
func (e *Engine) commitIndex(ctx context.Context, b *model.Booking) error {
    err := e.index.Add(b.EventDate, b.StartTime, b.EndTime, b.ID)
    if err == nil {
        return nil
    }
    log.Printf("engine: index add refused for booking %d (%s %s-%s): %v; rolling back relational record",
        b.ID, b.EventDate, b.StartTime, b.EndTime, err)
    if delErr := e.bookings.Delete(ctx, b.ID); delErr != nil {
        log.Printf("engine: CONSISTENCY: rollback of booking %d failed: %v", b.ID, delErr)
        return fmt.Errorf("%w: index add failed (%v) and rollback failed: %v", ErrIndexInconsistent, err, delErr)
    }
    return fmt.Errorf("%w: %v", ErrIndexInconsistent, err)
}

// lockBooking acquires the date lock covering a booking (plus any
// extra dates) and returns a fresh read taken under that lock.  The
// pre-lock read only chooses which date to lock; anything decided on
// it would race with mutations that complete before the lock is
// acquired, so callers must base all decisions on the returned
// booking.  If the booking moved to another date in the window, the
// lock is released and the sequence retried.
func (e *Engine) lockBooking(ctx context.Context, id uint64, extra ...string) (*model.Booking, func(), error) {
    for {
        b, err := e.bookings.GetByID(ctx, id)
        if err != nil {
            return nil, nil, err
        }
        dates := append([]string{b.EventDate}, extra...)
        unlock := e.locks.lock(dates...)
        cur, err := e.bookings.GetByID(ctx, id)
        if err != nil {
            unlock()
            return nil, nil, err
        }
        if cur.EventDate != b.EventDate {
            unlock()
            continue
        }
        return cur, unlock, nil
    }
}

// EditBooking re-runs full validation and conflict detection (with
// the booking itself excluded) and rewrites both stores.  The index
// entry is removed first and re-added after the relational update, so
// the same code path covers edits that do not change the slot at all.
// Mid-sequence failures restore the previous state before returning.
func (e *Engine) EditBooking(ctx context.Context, id uint64, req BookingRequest) (*model.Booking, error) {
    if err := e.validate(req); err != nil {
        return nil, err
    }
    old, unlock, err := e.lockBooking(ctx, id, req.EventDate)
    if err != nil {
        return nil, err
    }
    defer unlock()

    if existing, err := e.detector.Detect(ctx, req.slot(), id); err != nil {
        return nil, err
    } else if existing != nil {
        return nil, &SlotConflictError{Existing: existing}
    }

    // Remove-then-add keeps the index guard honest even when the
    // edited slot is unchanged.
    removed, err := e.index.RemoveByBookingID(id)
    if err != nil {
        return nil, fmt.Errorf("%w: removing entry for booking %d: %v", ErrIndexInconsistent, id, err)
    }

    updated := *old
    updated.CustomerName = req.CustomerName
    updated.CustomerEmail = req.CustomerEmail
    updated.CustomerPhone = req.CustomerPhone
    updated.EventDate = req.EventDate
    updated.StartTime = req.StartTime
    updated.EndTime = req.EndTime
    updated.Location = req.Location
    updated.Notes = req.Notes

    if err := e.bookings.Update(ctx, &updated); err != nil {
        e.restoreIndexEntry(old, removed)
        return nil, err
    }
    if old.Status != model.StatusCancelled {
        if err := e.index.Add(updated.EventDate, updated.StartTime, updated.EndTime, id); err != nil {
            log.Printf("engine: index add refused while editing booking %d: %v; restoring previous state", id, err)
            if revertErr := e.bookings.Update(ctx, old); revertErr != nil {
                log.Printf("engine: CONSISTENCY: revert of booking %d failed: %v", id, revertErr)
                return nil, fmt.Errorf("%w: index add failed (%v) and revert failed: %v", ErrIndexInconsistent, err, revertErr)
            }
            e.restoreIndexEntry(old, removed)
            return nil, fmt.Errorf("%w: %v", ErrIndexInconsistent, err)
        }
    }
    return &updated, nil
}

// restoreIndexEntry re-adds the pre-edit index entry after a failed
// edit, if one had been removed.  Best effort: a failure here is a
// consistency fault that can only be logged, the primary error is
// already on its way to the caller.
func (e *Engine) restoreIndexEntry(old *model.Booking, removed bool) {
    if !removed {
        return
    }
    if err := e.index.Add(old.EventDate, old.StartTime, old.EndTime, old.ID); err != nil {
        log.Printf("engine: CONSISTENCY: could not restore index entry for booking %d (%s %s-%s): %v",
            old.ID, old.EventDate, old.StartTime, old.EndTime, err)
    }
}

// DeleteBooking removes a booking from the relational store and then
// from the hours index.  A failed index removal is surfaced as a
// consistency error: a stale entry would block a legitimately free
// slot, so the caller must know.
func (e *Engine) DeleteBooking(ctx context.Context, id uint64) error {
    _, unlock, err := e.lockBooking(ctx, id)
    if err != nil {
        return err
    }
    defer unlock()

    if err := e.bookings.Delete(ctx, id); err != nil {
        return err
    }
    if _, err := e.index.RemoveByBookingID(id); err != nil {
        log.Printf("engine: CONSISTENCY: booking %d deleted but index removal failed: %v", id, err)
        return fmt.Errorf("%w: booking deleted but index entry remains: %v", ErrIndexInconsistent, err)
    }
    return nil
}

// Transition moves a booking to a new status, enforcing the state
// machine.  A transition to cancelled also releases the booking's
// hours-index entry, freeing its slot for new bookings.  Exactly one
// StatusChanged event is emitted per successful transition; publish
// failures are logged, never rolled back.
func (e *Engine) Transition(ctx context.Context, id uint64, to model.Status) (*model.Booking, error) {
    b, unlock, err := e.lockBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    defer unlock()

    if err := status.Check(b.Status, to); err != nil {
        return nil, err
    }

    from := b.Status
    if err := e.bookings.UpdateStatus(ctx, id, from, to); err != nil {
        return nil, err
    }
    if to == model.StatusCancelled {
        if _, err := e.index.RemoveByBookingID(id); err != nil {
            log.Printf("engine: CONSISTENCY: booking %d cancelled but index removal failed: %v; reverting status", id, err)
            if revertErr := e.bookings.UpdateStatus(ctx, id, to, from); revertErr != nil {
                log.Printf("engine: CONSISTENCY: status revert of booking %d failed: %v", id, revertErr)
                return nil, fmt.Errorf("%w: cancel index removal failed (%v) and revert failed: %v", ErrIndexInconsistent, err, revertErr)
            }
            return nil, fmt.Errorf("%w: cancel index removal failed: %v", ErrIndexInconsistent, err)
        }
    }
    b.Status = to

    if pubErr := e.events.PublishStatusChanged(ctx, queue.StatusChangedEvent{
        BookingID:     b.ID,
        CustomerName:  b.CustomerName,
        CustomerEmail: b.CustomerEmail,
        CustomerPhone: b.CustomerPhone,
        EventDate:     b.EventDate,
        StartTime:     b.StartTime,
        EndTime:       b.EndTime,
        OldStatus:     string(from),
        NewStatus:     string(to),
        ChangedAt:     e.now().UTC().Format(time.RFC3339),
    }); pubErr != nil {
        log.Printf("engine: status change of booking %d committed but event publish failed: %v", id, pubErr)
    }
    return b, nil
}
