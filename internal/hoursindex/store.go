// Package hoursindex maintains the flat-file index of booked hours per
// date.  The index is a denormalized projection of the active bookings
// in the relational store and exists so availability can be answered
// with a single file read.  It also acts as a second, independent
// guard rail: Add refuses overlapping entries even if the relational
// check was somehow bypassed.
package hoursindex

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"

    "github.com/happyhu/event-booking/internal/slot"
)

// ErrOverlap is returned by Add when the candidate range intersects an
// entry already recorded for that date.  The relational store performs
// the same check first, so hitting this error means the two stores
// disagree; callers must compensate and propagate it loudly.
var ErrOverlap = errors.New("hoursindex: range overlaps an existing entry")

// Entry is one booked range on a date.
type Entry struct {
    Start     string `json:"start"`      // HH:MM
    End       string `json:"end"`        // HH:MM
    BookingID uint64 `json:"booking_id"` // originating booking
}

// Store owns the JSON index file.  All mutations rewrite the whole
// file through a temp-file-and-rename so that a reader or a crash
// never observes a partial write.  An internal mutex serializes
// access; concurrency across processes is not supported.
type Store struct {
    mu   sync.Mutex
    path string
}

// New returns a Store backed by the file at path.  The parent
// directory is created if missing; the file itself is created lazily
// on first write.
func New(path string) (*Store, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, fmt.Errorf("hoursindex: create data dir: %w", err)
    }
    return &Store{path: path}, nil
}

// Add records a booked range for date, refusing overlaps.  The check
// is minute-bucketed, half-open: touching ranges are accepted.
func (s *Store) Add(date, start, end string, bookingID uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    db, err := s.load()
    if err != nil {
        return err
    }
    cs, ce := slot.Minutes(start), slot.Minutes(end)
    if cs < 0 || ce < 0 {
        return fmt.Errorf("hoursindex: malformed range %q-%q", start, end)
    }
    for _, e := range db[date] {
        if slot.Overlaps(cs, ce, slot.Minutes(e.Start), slot.Minutes(e.End)) {
            return fmt.Errorf("%w: %s %s-%s held by booking %d", ErrOverlap, date, e.Start, e.End, e.BookingID)
        }
    }
    db[date] = append(db[date], Entry{Start: start, End: end, BookingID: bookingID})
    return s.save(db)
}

// RemoveByBookingID drops every entry recorded for the given booking,
// scanning all dates.  It reports whether anything was removed; false
// with a nil error means the booking had no index entry.
func (s *Store) RemoveByBookingID(bookingID uint64) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    db, err := s.load()
    if err != nil {
        return false, err
    }
    changed := false
    for date, entries := range db {
        kept := entries[:0]
        for _, e := range entries {
            if e.BookingID != bookingID {
                kept = append(kept, e)
            }
        }
        if len(kept) != len(entries) {
            changed = true
            if len(kept) == 0 {
                delete(db, date)
            } else {
                db[date] = kept
            }
        }
    }
    if !changed {
        return false, nil
    }
    return true, s.save(db)
}

// ListForDate returns the recorded ranges for a date.  An unknown date
// yields an empty slice.
func (s *Store) ListForDate(date string) ([]Entry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    db, err := s.load()
    if err != nil {
        return nil, err
    }
    out := make([]Entry, len(db[date]))
    copy(out, db[date])
    return out, nil
}

// load reads and decodes the whole index.  A missing file is an empty
// index; a corrupt file is an error, not silently discarded data.
func (s *Store) load() (map[string][]Entry, error) {
    raw, err := os.ReadFile(s.path)
    if err != nil {
        if os.IsNotExist(err) {
            return map[string][]Entry{}, nil
        }
        return nil, fmt.Errorf("hoursindex: read %s: %w", s.path, err)
    }
    db := map[string][]Entry{}
    if len(raw) == 0 {
        return db, nil
    }
    if err := json.Unmarshal(raw, &db); err != nil {
        return nil, fmt.Errorf("hoursindex: decode %s: %w", s.path, err)
    }
    return db, nil
}

// save writes the full index atomically: marshal, write to a temp file
// in the same directory, fsync, then rename over the target.
func (s *Store) save(db map[string][]Entry) error {
    raw, err := json.MarshalIndent(db, "", "  ")
    if err != nil {
        return fmt.Errorf("hoursindex: encode: %w", err)
    }
    dir := filepath.Dir(s.path)
    tmp, err := os.CreateTemp(dir, ".hours-*.json")
    if err != nil {
        return fmt.Errorf("hoursindex: create temp file: %w", err)
    }
    defer os.Remove(tmp.Name())
    if _, err := tmp.Write(raw); err != nil {
        tmp.Close()
        return fmt.Errorf("hoursindex: write temp file: %w", err)
    }
    if err := tmp.Sync(); err != nil {
        tmp.Close()
        return fmt.Errorf("hoursindex: sync temp file: %w", err)
    }
    if err := tmp.Close(); err != nil {
        return fmt.Errorf("hoursindex: close temp file: %w", err)
    }
    if err := os.Rename(tmp.Name(), s.path); err != nil {
        return fmt.Errorf("hoursindex: replace %s: %w", s.path, err)
    }
    return nil
}
