package engine

import (
    "errors"
    "fmt"
    "strings"

    "github.com/happyhu/event-booking/internal/model"
)

// ValidationError carries field-level reasons why a booking request
// was rejected.  It covers both the structural slot rules and the
// customer fields; callers can report each reason next to the
// offending input.  Nothing is committed when it is returned.
type ValidationError struct {
    Fields map[string]string
}

func (e *ValidationError) Error() string {
    parts := make([]string, 0, len(e.Fields))
    for f, msg := range e.Fields {
        parts = append(parts, f+": "+msg)
    }
    return "validation failed: " + strings.Join(parts, "; ")
}

// SlotConflictError is returned when another active booking occupies
// the requested range.  It carries the existing booking so callers
// can tell the customer which range is taken.
type SlotConflictError struct {
    Existing *model.Booking
}

func (e *SlotConflictError) Error() string {
    return fmt.Sprintf("slot conflict: %s %s-%s is held by booking %d",
        e.Existing.EventDate, e.Existing.StartTime, e.Existing.EndTime, e.Existing.ID)
}

// ErrIndexInconsistent marks a consistency fault between the
// relational store and the hours index: the index guard tripped (or
// an index write failed) even though the relational guard passed.
// The engine compensates the relational side before returning it, and
// it must never be swallowed — operators reconcile on it.
var ErrIndexInconsistent = errors.New("hours index and relational store disagree")

// ErrPaymentNotAuthorized is returned when the external provider
// resolves a payment to anything other than authorized.  The staged
// reservation is discarded and no booking is created.
var ErrPaymentNotAuthorized = errors.New("payment not authorized")

// ErrExternalProvider is returned when the payment provider is
// unreachable or errors.  During Stage nothing has been created; at
// Confirm the staged reservation is kept so the caller may retry with
// the same token.
var ErrExternalProvider = errors.New("payment provider error")

// ErrZeroDeposit rejects a paid flow whose computed deposit is not
// positive; paid bookings must always carry a positive charge, so the
// provider is never contacted.
var ErrZeroDeposit = errors.New("paid booking requires a positive deposit")

// ErrStagedNotFound is returned when a confirmation token does not
// resolve to a staged reservation (unknown, or expired out of the
// staging store).
var ErrStagedNotFound = errors.New("no staged reservation for token")

// ErrPaymentReconcile marks the exceptional outcome where a payment
// was authorized but the booking could not be created because the
// slot was lost during the external wait.  The charge must be settled
// by an operator or a downstream refund workflow; the engine only
// reports it, alongside a reconciliation event.
var ErrPaymentReconcile = errors.New("payment authorized but booking not created; reconciliation required")
