// Package status encodes the booking lifecycle as an explicit
// transition table.  The engine consults it before persisting any
// status change; illegal transitions leave the booking untouched.
package status

import (
    "fmt"

    "github.com/happyhu/event-booking/internal/model"
)

// IllegalTransitionError reports a rejected status change.
type IllegalTransitionError struct {
    From model.Status
    To   model.Status
}

func (e *IllegalTransitionError) Error() string {
    return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// transitions lists every legal move.  done and cancelled are
// terminal; nothing leaves them.
var transitions = map[model.Status][]model.Status{
    model.StatusPending:  {model.StatusApproved, model.StatusCancelled},
    model.StatusApproved: {model.StatusDone, model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to model.Status) bool {
    for _, t := range transitions[from] {
        if t == to {
            return true
        }
    }
    return false
}

// Check validates a requested transition and returns an
// *IllegalTransitionError when it is not allowed.  Unknown target
// states are rejected the same way as known-but-forbidden ones.
func Check(from, to model.Status) error {
    if !to.Valid() || !CanTransition(from, to) {
        return &IllegalTransitionError{From: from, To: to}
    }
    return nil
}
