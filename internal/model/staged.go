package model

import "time"

// StagedState tracks the progress of a staged reservation through the
// two-phase payment handshake.  A record starts in StagedStatePending
// and is resolved exactly once to confirmed or rejected; records that
// are never resolved simply expire out of the staging store.
type StagedState string

const (
    StagedStatePending   StagedState = "STAGED"    // waiting for the payment callback
    StagedStateConfirmed StagedState = "CONFIRMED" // payment authorized, booking materialized
    StagedStateRejected  StagedState = "REJECTED"  // payment declined or slot lost
)

// StagedReservation holds everything needed to materialize a booking
// once the external payment provider authorizes the deposit.  It is
// never written to the relational store; it lives in the staging store
// keyed by the provider token until it is consumed or expires.
//
// The slot captured here is advisory only: the authoritative overlap
// check runs again at confirm time against the current state of the
// relational store.
type StagedReservation struct {
    Token         string      `json:"token"`          // provider token, the lookup key
    BuyOrder      string      `json:"buy_order"`      // our correlation id sent to the provider
    SessionID     string      `json:"session_id"`     // caller session identifier
    State         StagedState `json:"state"`          // handshake progress
    CustomerName  string      `json:"customer_name"`
    CustomerEmail string      `json:"customer_email"`
    CustomerPhone string      `json:"customer_phone"`
    EventDate     string      `json:"event_date"` // YYYY-MM-DD
    StartTime     string      `json:"start_time"` // HH:MM
    EndTime       string      `json:"end_time"`   // HH:MM
    Location      string      `json:"location"`
    Notes         string      `json:"notes"`
    Items         []LineItem  `json:"items"`
    TotalPrice    int64       `json:"total_price"`
    DepositAmount int64       `json:"deposit_amount"`
    BookingID     uint64      `json:"booking_id,omitempty"`    // set once confirmed
    RejectReason  string      `json:"reject_reason,omitempty"` // set once rejected
    StagedAt      time.Time   `json:"staged_at"`
}
