package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/happyhu/event-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their line
// items.  Line items live in the booking_items table and are written
// in the same transaction as the booking row.  Status changes go
// through UpdateStatus, which appends an audit row to
// booking_status_events alongside the update.
//
// The repo performs no slot validation or conflict detection of its
// own; the scheduling engine is the only caller of the write methods
// and runs those checks inside its per-date critical section first.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// bookingColumns is the select list shared by every booking query.
// DATE/TIME columns are formatted in SQL so they scan directly into
// the string representations the rest of the system uses.
const bookingColumns = `id, customer_name, customer_email, customer_phone,
       DATE_FORMAT(event_date, '%Y-%m-%d'),
       TIME_FORMAT(start_time, '%H:%i'),
       TIME_FORMAT(end_time, '%H:%i'),
       location, notes, status, total_price, deposit_amount,
       is_paid, payment_token, payment_date, created_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
    var b model.Booking
    var token sql.NullString
    var paidAt sql.NullTime
    err := row.Scan(
        &b.ID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
        &b.EventDate, &b.StartTime, &b.EndTime,
        &b.Location, &b.Notes, &b.Status, &b.TotalPrice, &b.DepositAmount,
        &b.IsPaid, &token, &paidAt, &b.CreatedAt,
    )
    if err != nil {
        return nil, err
    }
    if token.Valid {
        t := token.String
        b.PaymentToken = &t
    }
    if paidAt.Valid {
        ts := paidAt.Time
        b.PaymentDate = &ts
    }
    return &b, nil
}

// Create inserts a booking and its line items in one transaction and
// populates the generated ID and CreatedAt on the provided record.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const q = `INSERT INTO bookings
        (customer_name, customer_email, customer_phone, event_date, start_time, end_time,
         location, notes, status, total_price, deposit_amount, is_paid, payment_token, payment_date)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var token interface{}
    if b.PaymentToken != nil {
        token = *b.PaymentToken
    }
    var paidAt interface{}
    if b.PaymentDate != nil {
        paidAt = b.PaymentDate.UTC().Format("2006-01-02 15:04:05")
    }
    result, err := tx.ExecContext(ctx, q,
        b.CustomerName, b.CustomerEmail, b.CustomerPhone,
        b.EventDate, b.StartTime, b.EndTime,
        b.Location, b.Notes, string(b.Status),
        b.TotalPrice, b.DepositAmount, b.IsPaid, token, paidAt,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)

    if err := r.createItemsTx(ctx, tx, b.ID, b.Items); err != nil {
        return err
    }

    // Read back the creation timestamp assigned by the database.
    if err := tx.QueryRowContext(ctx, `SELECT created_at FROM bookings WHERE id = ?`, b.ID).Scan(&b.CreatedAt); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// createItemsTx bulk-inserts line items for a booking.  An empty
// slice has no effect and returns nil.
func (r *BookingRepo) createItemsTx(ctx context.Context, tx *sql.Tx, bookingID uint64, items []model.LineItem) error {
    if len(items) == 0 {
        return nil
    }
    query := `INSERT INTO booking_items (booking_id, product_id, name, price) VALUES `
    args := make([]interface{}, 0, len(items)*4)
    for i, it := range items {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, bookingID, it.ProductID, it.Name, it.Price)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// Update rewrites an existing booking's customer and slot fields.
// Status, payment fields and line items are not touched here; status
// moves through UpdateStatus and payment data is written once at
// creation.  Returns ErrBookingNotFound when the id is unknown.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
    const q = `UPDATE bookings
        SET customer_name = ?, customer_email = ?, customer_phone = ?,
            event_date = ?, start_time = ?, end_time = ?,
            location = ?, notes = ?, total_price = ?, deposit_amount = ?
        WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q,
        b.CustomerName, b.CustomerEmail, b.CustomerPhone,
        b.EventDate, b.StartTime, b.EndTime,
        b.Location, b.Notes, b.TotalPrice, b.DepositAmount,
        b.ID,
    )
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    // RowsAffected is 0 both for a missing row and for a no-op update,
    // so distinguish by checking existence.
    if n == 0 {
        var exists bool
        if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = ?)`, b.ID).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return ErrBookingNotFound
        }
    }
    return nil
}

// Delete removes a booking together with its line items and status
// history.  Returns ErrBookingNotFound when the id is unknown.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx, `DELETE FROM booking_items WHERE booking_id = ?`, id); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM booking_status_events WHERE booking_id = ?`, id); err != nil {
        return err
    }
    result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrBookingNotFound
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID loads one booking with its line items.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, ErrBookingNotFound
        }
        return nil, err
    }
    const itemQ = `SELECT product_id, name, price FROM booking_items WHERE booking_id = ?`
    rows, err := r.db.QueryContext(ctx, itemQ, id)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var it model.LineItem
        if err := rows.Scan(&it.ProductID, &it.Name, &it.Price); err != nil {
            return nil, err
        }
        b.Items = append(b.Items, it)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return b, nil
}

// ListActiveByDate returns every non-cancelled booking on the given
// date ordered by start time.  This is the query the conflict
// detector runs; line items are not loaded.
func (r *BookingRepo) ListActiveByDate(ctx context.Context, date string) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE event_date = ? AND status <> 'cancelled'
        ORDER BY start_time`
    return r.queryBookings(ctx, q, date)
}

// ListBetween returns the non-cancelled bookings with event dates in
// [from, to], ordered chronologically.  Used by the calendar view.
func (r *BookingRepo) ListBetween(ctx context.Context, from, to string) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE event_date BETWEEN ? AND ? AND status <> 'cancelled'
        ORDER BY event_date, start_time`
    return r.queryBookings(ctx, q, from, to)
}

// List returns a page of non-cancelled bookings, most recent event
// first, for the administrative listing.
func (r *BookingRepo) List(ctx context.Context, limit, offset int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
        WHERE status <> 'cancelled'
        ORDER BY event_date DESC, start_time DESC
        LIMIT ? OFFSET ?`
    return r.queryBookings(ctx, q, limit, offset)
}

func (r *BookingRepo) queryBookings(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpdateStatus moves a booking from one status to another and appends
// a booking_status_events audit row in the same transaction.  The
// update is guarded on the expected current status; if another writer
// got there first the method returns ErrStaleStatus and writes
// nothing.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.Status) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    result, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
        string(to), id, string(from),
    )
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var exists bool
        if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = ?)`, id).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return ErrBookingNotFound
        }
        return ErrStaleStatus
    }
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO booking_status_events (booking_id, from_status, to_status, created_at) VALUES (?, ?, ?, ?)`,
        id, string(from), string(to), time.Now().UTC().Format("2006-01-02 15:04:05"),
    ); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
