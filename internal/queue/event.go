// Package queue defines message payloads exchanged over the message
// broker and the background consumer for the notification queues.
package queue

// StatusChangedEvent is published exactly once per successful status
// transition.  It carries the customer's contact details so the
// notification collaborator can compose and send a message without
// querying the primary database.
type StatusChangedEvent struct {
    BookingID     uint64 `json:"booking_id"`
    CustomerName  string `json:"customer_name"`
    CustomerEmail string `json:"customer_email"`
    CustomerPhone string `json:"customer_phone"`
    EventDate     string `json:"event_date"`
    StartTime     string `json:"start_time"`
    EndTime       string `json:"end_time"`
    OldStatus     string `json:"old_status"`
    NewStatus     string `json:"new_status"`
    ChangedAt     string `json:"changed_at"`
}

// ReservationConfirmedEvent is published when a staged reservation is
// materialized into a booking after payment authorization.
type ReservationConfirmedEvent struct {
    BookingID     uint64 `json:"booking_id"`
    CustomerName  string `json:"customer_name"`
    CustomerEmail string `json:"customer_email"`
    CustomerPhone string `json:"customer_phone"`
    EventDate     string `json:"event_date"`
    StartTime     string `json:"start_time"`
    EndTime       string `json:"end_time"`
    TotalPrice    int64  `json:"total_price"`
    DepositAmount int64  `json:"deposit_amount"`
    PaymentToken  string `json:"payment_token"`
    ConfirmedAt   string `json:"confirmed_at"`
}

// PaymentReconcileEvent is published when a payment was authorized but
// the slot had been taken during the external wait, so no booking was
// created.  An operator (or a downstream refund workflow) must settle
// the charge; the engine itself never issues refunds.
type PaymentReconcileEvent struct {
    BuyOrder      string `json:"buy_order"`
    PaymentToken  string `json:"payment_token"`
    CustomerName  string `json:"customer_name"`
    CustomerEmail string `json:"customer_email"`
    EventDate     string `json:"event_date"`
    StartTime     string `json:"start_time"`
    EndTime       string `json:"end_time"`
    DepositAmount int64  `json:"deposit_amount"`
    Reason        string `json:"reason"`
    OccurredAt    string `json:"occurred_at"`
}
