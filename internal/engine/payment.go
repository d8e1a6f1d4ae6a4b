package engine

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/happyhu/event-booking/internal/model"
    "github.com/happyhu/event-booking/internal/payment"
    "github.com/happyhu/event-booking/internal/queue"
    "github.com/happyhu/event-booking/internal/staged"
)

// Reasons recorded on a rejected staged reservation so a replayed
// confirmation can reproduce the original outcome.
const (
    rejectNotAuthorized = "payment_not_authorized"
    rejectSlotTaken     = "slot_taken"
)

// StageResult is returned to the caller of StageBooking: where to
// send the customer and the token the provider will echo back.
type StageResult struct {
    RedirectURL   string
    Token         string
    TotalPrice    int64
    DepositAmount int64
}

// StageBooking starts the paid flow: validate the request, price the
// selected products, compute the deposit and open an external payment
// transaction for it.  The staged reservation is written to the
// staging store only after the provider call succeeds, so a provider
// timeout never leaves a staged record with no transaction behind it.
//
// The conflict check here is advisory; no lock spans the external
// wait, and the authoritative check runs again inside ConfirmPayment.
func (e *Engine) StageBooking(ctx context.Context, req BookingRequest, productIDs []uint64, sessionID string) (*StageResult, error) {
    if err := e.validate(req); err != nil {
        return nil, err
    }
    if existing, err := e.detector.Detect(ctx, req.slot(), 0); err != nil {
        return nil, err
    } else if existing != nil {
        return nil, &SlotConflictError{Existing: existing}
    }

    items, err := e.catalog.PriceLineItems(ctx, productIDs)
    if err != nil {
        return nil, err
    }
    var total int64
    for _, it := range items {
        total += it.Price
    }
    deposit := total * depositPercent / 100
    if deposit <= 0 {
        return nil, ErrZeroDeposit
    }

    buyOrder := uuid.NewString()
    redirectURL, token, err := e.provider.CreateTransaction(ctx, buyOrder, sessionID, deposit, e.returnURL)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrExternalProvider, err)
    }

    st := &model.StagedReservation{
        Token:         token,
        BuyOrder:      buyOrder,
        SessionID:     sessionID,
        State:         model.StagedStatePending,
        CustomerName:  req.CustomerName,
        CustomerEmail: req.CustomerEmail,
        CustomerPhone: req.CustomerPhone,
        EventDate:     req.EventDate,
        StartTime:     req.StartTime,
        EndTime:       req.EndTime,
        Location:      req.Location,
        Notes:         req.Notes,
        Items:         items,
        TotalPrice:    total,
        DepositAmount: deposit,
        StagedAt:      e.now().UTC(),
    }
    if err := e.staged.Put(ctx, st); err != nil {
        // The provider transaction exists but we cannot remember it;
        // it will expire on the provider side unconfirmed.
        log.Printf("engine: staging store write failed for buy order %s: %v", buyOrder, err)
        return nil, err
    }
    return &StageResult{
        RedirectURL:   redirectURL,
        Token:         token,
        TotalPrice:    total,
        DepositAmount: deposit,
    }, nil
}

// ConfirmPayment consumes the provider callback for a staged
// reservation.  It is idempotent per token: a replay after the
// booking was materialized returns the existing booking, and a replay
// after a rejection reproduces the rejection.
//
// For a pending staged reservation it commits the external
// transaction; anything but an authorized status discards the staged
// data.  When authorized, the slot is re-validated against the
// current store state under the date lock — the slot may have been
// taken during the external wait — and only then is the booking
// materialized in both stores.  If the slot was lost, no booking is
// created even though payment was authorized: the staged record is
// rejected, a reconciliation event is published and the distinct
// ErrPaymentReconcile (wrapping the slot conflict) is returned.
func (e *Engine) ConfirmPayment(ctx context.Context, token string) (*model.Booking, error) {
    // Confirmations are serialized per token: two concurrent
    // callbacks for the same token must not both see a pending
    // staged record, or the loser would commit the provider
    // transaction a second time and treat the winner's booking as a
    // foreign conflict.  The staged read happens under this lock.
    unlockToken := e.confirms.lock(token)
    defer unlockToken()

    st, err := e.staged.Get(ctx, token)
    if err != nil {
        if errors.Is(err, staged.ErrNotFound) {
            return nil, ErrStagedNotFound
        }
        return nil, err
    }

    switch st.State {
    case model.StagedStateConfirmed:
        return e.bookings.GetByID(ctx, st.BookingID)
    case model.StagedStateRejected:
        return nil, e.rejectedOutcome(st)
    }

    providerStatus, err := e.provider.CommitTransaction(ctx, token)
    if err != nil {
        // Staged record left intact; the caller may retry the same
        // token once the provider recovers.
        return nil, fmt.Errorf("%w: %v", ErrExternalProvider, err)
    }
    if providerStatus != payment.StatusAuthorized {
        st.State = model.StagedStateRejected
        st.RejectReason = rejectNotAuthorized
        if saveErr := e.staged.Save(ctx, st); saveErr != nil {
            log.Printf("engine: could not record rejection of staged %s: %v", token, saveErr)
        }
        return nil, fmt.Errorf("%w: provider status %q", ErrPaymentNotAuthorized, providerStatus)
    }

    unlock := e.locks.lock(st.EventDate)
    defer unlock()

    req := BookingRequest{
        CustomerName:  st.CustomerName,
        CustomerEmail: st.CustomerEmail,
        CustomerPhone: st.CustomerPhone,
        EventDate:     st.EventDate,
        StartTime:     st.StartTime,
        EndTime:       st.EndTime,
        Location:      st.Location,
        Notes:         st.Notes,
    }
    if err := e.validate(req); err != nil {
        return nil, e.rejectPaidSlot(ctx, st, err)
    }
    if existing, err := e.detector.Detect(ctx, req.slot(), 0); err != nil {
        return nil, err
    } else if existing != nil {
        // A booking carrying this very token means an earlier
        // confirmation already materialized it but the staged state
        // write was lost.  That is not a foreign conflict; repair
        // the record and return the booking.
        if existing.PaymentToken != nil && *existing.PaymentToken == token {
            st.State = model.StagedStateConfirmed
            st.BookingID = existing.ID
            if saveErr := e.staged.Save(ctx, st); saveErr != nil {
                log.Printf("engine: could not re-mark staged %s confirmed: %v", token, saveErr)
            }
            return existing, nil
        }
        return nil, e.rejectPaidSlot(ctx, st, &SlotConflictError{Existing: existing})
    }

    now := e.now().UTC()
    tok := token
    b := &model.Booking{
        CustomerName:  st.CustomerName,
        CustomerEmail: st.CustomerEmail,
        CustomerPhone: st.CustomerPhone,
        EventDate:     st.EventDate,
        StartTime:     st.StartTime,
        EndTime:       st.EndTime,
        Location:      st.Location,
        Notes:         st.Notes,
        Status:        model.StatusPending,
        TotalPrice:    st.TotalPrice,
        DepositAmount: st.DepositAmount,
        IsPaid:        true,
        PaymentToken:  &tok,
        PaymentDate:   &now,
        Items:         st.Items,
    }
    if err := e.bookings.Create(ctx, b); err != nil {
        // Payment is committed but nothing was written; the staged
        // record stays pending so the callback can be retried.
        log.Printf("engine: materializing staged %s failed: %v", token, err)
        return nil, err
    }
    if err := e.commitIndex(ctx, b); err != nil {
        return nil, e.rejectPaidSlot(ctx, st, err)
    }

    st.State = model.StagedStateConfirmed
    st.BookingID = b.ID
    if saveErr := e.staged.Save(ctx, st); saveErr != nil {
        log.Printf("engine: booking %d created but staged %s not marked confirmed: %v", b.ID, token, saveErr)
    }

    if pubErr := e.events.PublishReservationConfirmed(ctx, queue.ReservationConfirmedEvent{
        BookingID:     b.ID,
        CustomerName:  b.CustomerName,
        CustomerEmail: b.CustomerEmail,
        CustomerPhone: b.CustomerPhone,
        EventDate:     b.EventDate,
        StartTime:     b.StartTime,
        EndTime:       b.EndTime,
        TotalPrice:    b.TotalPrice,
        DepositAmount: b.DepositAmount,
        PaymentToken:  token,
        ConfirmedAt:   now.Format(time.RFC3339),
    }); pubErr != nil {
        log.Printf("engine: booking %d confirmed but event publish failed: %v", b.ID, pubErr)
    }
    return b, nil
}

// rejectPaidSlot records that an authorized payment could not become
// a booking, publishes the reconciliation event for operators and
// wraps the underlying cause in ErrPaymentReconcile.
func (e *Engine) rejectPaidSlot(ctx context.Context, st *model.StagedReservation, cause error) error {
    st.State = model.StagedStateRejected
    st.RejectReason = rejectSlotTaken
    if saveErr := e.staged.Save(ctx, st); saveErr != nil {
        log.Printf("engine: could not record rejection of staged %s: %v", st.Token, saveErr)
    }
    log.Printf("engine: RECONCILE: payment %s (buy order %s) authorized but slot %s %s-%s unavailable: %v",
        st.Token, st.BuyOrder, st.EventDate, st.StartTime, st.EndTime, cause)
    if pubErr := e.events.PublishPaymentReconcile(ctx, queue.PaymentReconcileEvent{
        BuyOrder:      st.BuyOrder,
        PaymentToken:  st.Token,
        CustomerName:  st.CustomerName,
        CustomerEmail: st.CustomerEmail,
        EventDate:     st.EventDate,
        StartTime:     st.StartTime,
        EndTime:       st.EndTime,
        DepositAmount: st.DepositAmount,
        Reason:        cause.Error(),
        OccurredAt:    e.now().UTC().Format(time.RFC3339),
    }); pubErr != nil {
        log.Printf("engine: reconcile event publish failed for staged %s: %v", st.Token, pubErr)
    }
    return fmt.Errorf("%w: %w", ErrPaymentReconcile, cause)
}

// rejectedOutcome reproduces the outcome recorded on an already
// rejected staged reservation for an idempotent replay.
func (e *Engine) rejectedOutcome(st *model.StagedReservation) error {
    if st.RejectReason == rejectNotAuthorized {
        return ErrPaymentNotAuthorized
    }
    return fmt.Errorf("%w: %s", ErrPaymentReconcile, st.RejectReason)
}
