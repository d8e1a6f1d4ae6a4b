// Package repository implements relational persistence over MySQL.
// This file defines sentinel errors shared across repositories so the
// engine and handlers can distinguish failure scenarios with
// errors.Is instead of string matching.
package repository

import "errors"

// ErrBookingNotFound is returned when a booking id does not resolve
// to a row.  Handlers translate it into HTTP 404.
var ErrBookingNotFound = errors.New("booking not found")

// ErrStaleStatus is returned by UpdateStatus when the booking's
// current status no longer matches the expected one, meaning another
// writer transitioned the booking first.
var ErrStaleStatus = errors.New("booking status changed concurrently")

// ErrProductNotFound is returned when a requested catalog product id
// does not exist, so a staged booking cannot be priced.
var ErrProductNotFound = errors.New("product not found")

// ErrUserNotFound is returned when no user matches the given email.
var ErrUserNotFound = errors.New("user not found")
