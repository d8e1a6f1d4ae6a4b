package engine

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/happyhu/event-booking/internal/model"
)

func TestStageBookingComputesDeposit(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1, 2}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    if res.TotalPrice != 80000 {
        t.Errorf("total = %d, want 80000", res.TotalPrice)
    }
    if res.DepositAmount != 24000 {
        t.Errorf("deposit = %d, want 24000 (30%% of total)", res.DepositAmount)
    }
    if f.provider.lastAmount != 24000 {
        t.Errorf("provider charged %d, want the deposit", f.provider.lastAmount)
    }
    if res.RedirectURL == "" || res.Token == "" {
        t.Errorf("missing redirect data: %+v", res)
    }
    st, err := f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record not stored: %v", err)
    }
    if st.State != model.StagedStatePending {
        t.Errorf("state = %s, want %s", st.State, model.StagedStatePending)
    }
    if f.store.count() != 0 {
        t.Errorf("staging must not create a booking, store holds %d", f.store.count())
    }
}

func TestStageBookingRejectsZeroDeposit(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    _, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{3}, "sess-1")
    if !errors.Is(err, ErrZeroDeposit) {
        t.Fatalf("got %v, want ErrZeroDeposit", err)
    }
    if f.provider.creates != 0 {
        t.Errorf("provider must not be called, got %d creates", f.provider.creates)
    }
    if f.staged.size() != 0 {
        t.Errorf("nothing should be staged, got %d records", f.staged.size())
    }
}

func TestStageBookingUnknownProduct(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    _, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1, 77}, "sess-1")
    if err == nil {
        t.Fatal("want error for unknown product")
    }
    if f.staged.size() != 0 {
        t.Errorf("nothing should be staged, got %d records", f.staged.size())
    }
}

func TestStageBookingProviderFailureStagesNothing(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    f.provider.createErr = errors.New("gateway timeout")
    _, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if !errors.Is(err, ErrExternalProvider) {
        t.Fatalf("got %v, want ErrExternalProvider", err)
    }
    if f.staged.size() != 0 {
        t.Errorf("nothing should be staged after provider failure, got %d", f.staged.size())
    }
}

func TestStageBookingAdvisoryConflict(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    if _, err := f.engine.CreateBooking(ctx, request("2026-03-11", "10:00", "11:00")); err != nil {
        t.Fatalf("CreateBooking: %v", err)
    }
    _, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    var conflict *SlotConflictError
    if !errors.As(err, &conflict) {
        t.Fatalf("got %v, want SlotConflictError", err)
    }
    if f.provider.creates != 0 {
        t.Errorf("provider must not be called for an occupied slot")
    }
}

func TestConfirmPaymentMaterializesBooking(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1, 2}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    b, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("ConfirmPayment: %v", err)
    }
    if b.ID == 0 || b.Status != model.StatusPending {
        t.Fatalf("got %+v, want a pending booking", b)
    }
    if !b.IsPaid {
        t.Error("booking must be flagged paid")
    }
    if b.PaymentToken == nil || *b.PaymentToken != res.Token {
        t.Errorf("payment token not recorded: %+v", b.PaymentToken)
    }
    if b.TotalPrice != 80000 || b.DepositAmount != 24000 {
        t.Errorf("prices not carried over: total=%d deposit=%d", b.TotalPrice, b.DepositAmount)
    }
    if len(b.Items) != 2 {
        t.Errorf("line items not carried over: %v", b.Items)
    }
    entries, _ := f.index.ListForDate("2026-03-11")
    if len(entries) != 1 || entries[0].BookingID != b.ID {
        t.Errorf("confirmed booking not indexed: %v", entries)
    }
    if len(f.publisher.confirmed) != 1 {
        t.Errorf("published %d confirmed events, want 1", len(f.publisher.confirmed))
    }
    st, err := f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record must survive for replays: %v", err)
    }
    if st.State != model.StagedStateConfirmed || st.BookingID != b.ID {
        t.Errorf("staged record = %+v, want confirmed with booking id %d", st, b.ID)
    }
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    first, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("first confirm: %v", err)
    }
    second, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("replayed confirm: %v", err)
    }
    if second.ID != first.ID {
        t.Errorf("replay returned booking %d, want %d", second.ID, first.ID)
    }
    if f.provider.commits != 1 {
        t.Errorf("provider committed %d times, want exactly 1", f.provider.commits)
    }
    if f.store.count() != 1 {
        t.Errorf("store holds %d bookings, want 1", f.store.count())
    }
    if len(f.publisher.confirmed) != 1 {
        t.Errorf("published %d confirmed events, want 1", len(f.publisher.confirmed))
    }
}

func TestConfirmPaymentConcurrentCallbacks(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    // A slow provider commit widens the window in which a second
    // callback for the same token could slip past the state check.
    f.provider.commitDelay = 20 * time.Millisecond

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }

    var wg sync.WaitGroup
    results := make([]*model.Booking, 2)
    errs := make([]error, 2)
    for i := 0; i < 2; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            results[i], errs[i] = f.engine.ConfirmPayment(ctx, res.Token)
        }(i)
    }
    wg.Wait()

    for i, err := range errs {
        if err != nil {
            t.Fatalf("confirm %d: %v", i, err)
        }
    }
    if results[0].ID != results[1].ID {
        t.Errorf("callbacks returned bookings %d and %d, want the same one", results[0].ID, results[1].ID)
    }
    if f.provider.commits != 1 {
        t.Errorf("provider committed %d times, want exactly 1", f.provider.commits)
    }
    if f.store.count() != 1 {
        t.Errorf("store holds %d bookings, want 1", f.store.count())
    }
    if len(f.publisher.reconcile) != 0 {
        t.Errorf("published %d reconcile events, want none", len(f.publisher.reconcile))
    }
    if len(f.publisher.confirmed) != 1 {
        t.Errorf("published %d confirmed events, want 1", len(f.publisher.confirmed))
    }
    st, err := f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record: %v", err)
    }
    if st.State != model.StagedStateConfirmed {
        t.Errorf("staged state = %s, want %s", st.State, model.StagedStateConfirmed)
    }
}

func TestConfirmPaymentRecoversLostConfirmationRecord(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    first, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("first confirm: %v", err)
    }

    // Roll the staged record back to pending, as if the confirmation
    // write had been lost after the booking was materialized.
    st, err := f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record: %v", err)
    }
    st.State = model.StagedStatePending
    st.BookingID = 0
    if err := f.staged.Save(ctx, st); err != nil {
        t.Fatalf("Save: %v", err)
    }

    again, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("replay over lost record: %v", err)
    }
    if again.ID != first.ID {
        t.Errorf("replay returned booking %d, want %d", again.ID, first.ID)
    }
    if f.store.count() != 1 {
        t.Errorf("store holds %d bookings, want 1", f.store.count())
    }
    if len(f.publisher.reconcile) != 0 {
        t.Errorf("the booking's own slot is not a foreign conflict, got %d reconcile events", len(f.publisher.reconcile))
    }
    st, err = f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record: %v", err)
    }
    if st.State != model.StagedStateConfirmed || st.BookingID != first.ID {
        t.Errorf("staged record not repaired: %+v", st)
    }
}

func TestConfirmPaymentNotAuthorized(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    f.provider.status = "FAILED"
    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    _, err = f.engine.ConfirmPayment(ctx, res.Token)
    if !errors.Is(err, ErrPaymentNotAuthorized) {
        t.Fatalf("got %v, want ErrPaymentNotAuthorized", err)
    }
    if f.store.count() != 0 {
        t.Errorf("rejected payment must not create a booking")
    }
    entries, _ := f.index.ListForDate("2026-03-11")
    if len(entries) != 0 {
        t.Errorf("rejected payment must not touch the index: %v", entries)
    }

    // The replay reproduces the recorded outcome without a second commit.
    commits := f.provider.commits
    _, err = f.engine.ConfirmPayment(ctx, res.Token)
    if !errors.Is(err, ErrPaymentNotAuthorized) {
        t.Fatalf("replay got %v, want ErrPaymentNotAuthorized", err)
    }
    if f.provider.commits != commits {
        t.Errorf("replay must not commit again: %d -> %d", commits, f.provider.commits)
    }
}

func TestConfirmPaymentProviderErrorIsRetryable(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    res, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-1")
    if err != nil {
        t.Fatalf("StageBooking: %v", err)
    }
    f.provider.commitErr = errors.New("connection reset")
    _, err = f.engine.ConfirmPayment(ctx, res.Token)
    if !errors.Is(err, ErrExternalProvider) {
        t.Fatalf("got %v, want ErrExternalProvider", err)
    }
    st, err := f.staged.Get(ctx, res.Token)
    if err != nil {
        t.Fatalf("staged record must survive a provider blip: %v", err)
    }
    if st.State != model.StagedStatePending {
        t.Errorf("state = %s, want still %s", st.State, model.StagedStatePending)
    }

    // Once the provider recovers, the retry completes the reservation.
    f.provider.commitErr = nil
    b, err := f.engine.ConfirmPayment(ctx, res.Token)
    if err != nil {
        t.Fatalf("retry after recovery: %v", err)
    }
    if b.ID == 0 || !b.IsPaid {
        t.Errorf("retry did not materialize the booking: %+v", b)
    }
}

func TestConfirmPaymentUnknownToken(t *testing.T) {
    f := newFixture(t)
    _, err := f.engine.ConfirmPayment(context.Background(), "no-such-token")
    if !errors.Is(err, ErrStagedNotFound) {
        t.Fatalf("got %v, want ErrStagedNotFound", err)
    }
}

func TestConfirmPaymentSlotTakenNeedsReconciliation(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    // Two customers stage the same slot; both cards get authorized.
    resA, err := f.engine.StageBooking(ctx, request("2026-03-11", "10:00", "11:00"), []uint64{1}, "sess-a")
    if err != nil {
        t.Fatalf("stage A: %v", err)
    }
    reqB := request("2026-03-11", "10:00", "11:00")
    reqB.CustomerName = "Benito Prueba"
    reqB.CustomerEmail = "benito@example.com"
    resB, err := f.engine.StageBooking(ctx, reqB, []uint64{2}, "sess-b")
    if err != nil {
        t.Fatalf("stage B: %v", err)
    }

    winner, err := f.engine.ConfirmPayment(ctx, resA.Token)
    if err != nil {
        t.Fatalf("first confirm: %v", err)
    }

    _, err = f.engine.ConfirmPayment(ctx, resB.Token)
    if !errors.Is(err, ErrPaymentReconcile) {
        t.Fatalf("got %v, want ErrPaymentReconcile", err)
    }
    var conflict *SlotConflictError
    if !errors.As(err, &conflict) {
        t.Fatalf("error %v must carry the conflicting booking", err)
    }
    if conflict.Existing.ID != winner.ID {
        t.Errorf("conflict reports booking %d, want %d", conflict.Existing.ID, winner.ID)
    }
    if len(f.publisher.reconcile) != 1 {
        t.Fatalf("published %d reconcile events, want 1", len(f.publisher.reconcile))
    }
    if f.publisher.reconcile[0].PaymentToken != resB.Token {
        t.Errorf("reconcile event carries token %q, want %q", f.publisher.reconcile[0].PaymentToken, resB.Token)
    }
    st, _ := f.staged.Get(ctx, resB.Token)
    if st.State != model.StagedStateRejected {
        t.Errorf("loser state = %s, want %s", st.State, model.StagedStateRejected)
    }
    if f.store.count() != 1 {
        t.Errorf("store holds %d bookings, want only the winner", f.store.count())
    }

    // Replaying the loser's return keeps reporting the same outcome.
    _, err = f.engine.ConfirmPayment(ctx, resB.Token)
    if !errors.Is(err, ErrPaymentReconcile) {
        t.Fatalf("replay got %v, want ErrPaymentReconcile", err)
    }
}
