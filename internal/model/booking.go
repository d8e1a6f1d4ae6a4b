package model

import "time"

// Status enumerates the lifecycle states of a booking.  A booking is
// created as pending and only moves through the transitions allowed by
// the status machine.  Every state except pending is forward-only.
type Status string

const (
    StatusPending   Status = "pending"   // awaiting approval
    StatusApproved  Status = "approved"  // confirmed by an administrator
    StatusDone      Status = "done"      // the event took place
    StatusCancelled Status = "cancelled" // withdrawn; its slot is free again
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
    switch s {
    case StatusPending, StatusApproved, StatusDone, StatusCancelled:
        return true
    }
    return false
}

// Booking is the central entity of the system: one reserved interval of
// the shared calendar together with the customer who booked it and the
// products selected for the event.  Dates are plain `YYYY-MM-DD`
// strings and times zero-padded `HH:MM`, matching both the database
// DATE/TIME columns and the keys of the hours index file.  Money is
// whole currency units (no cents).
//
// Invariant: for a given EventDate, bookings whose status is not
// cancelled are pairwise non-overlapping in [StartTime, EndTime).
type Booking struct {
    ID            uint64     // bookings.id
    CustomerName  string     // bookings.customer_name
    CustomerEmail string     // bookings.customer_email
    CustomerPhone string     // bookings.customer_phone
    EventDate     string     // bookings.event_date (YYYY-MM-DD)
    StartTime     string     // bookings.start_time (HH:MM, minute always 00)
    EndTime       string     // bookings.end_time (HH:MM, minute always 00)
    Location      string     // bookings.location
    Notes         string     // bookings.notes
    Status        Status     // bookings.status
    TotalPrice    int64      // bookings.total_price
    DepositAmount int64      // bookings.deposit_amount
    IsPaid        bool       // bookings.is_paid
    PaymentToken  *string    // bookings.payment_token (nullable)
    PaymentDate   *time.Time // bookings.payment_date (nullable)
    CreatedAt     time.Time  // bookings.created_at
    Items         []LineItem // rows of booking_items
}

// LineItem links a booking to one product selected from the catalog at
// the price it had when the booking was staged.  Order is irrelevant.
type LineItem struct {
    ProductID uint64 // booking_items.product_id
    Name      string // product name at purchase time
    Price     int64  // price captured at purchase time
}

// Product is a catalog entry as exposed to the booking engine: an
// opaque identifier plus a non-negative price.  Catalog management
// itself lives outside this service.
type Product struct {
    ID    uint64 // products.id
    Name  string // products.name
    Price int64  // products.price
}
