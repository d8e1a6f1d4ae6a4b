package hoursindex

import (
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "testing"
)

func newStore(t *testing.T) *Store {
    t.Helper()
    s, err := New(filepath.Join(t.TempDir(), "data", "hours_db.json"))
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    return s
}

func TestAddAndList(t *testing.T) {
    s := newStore(t)
    if err := s.Add("2026-03-11", "10:00", "11:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    if err := s.Add("2026-03-11", "12:00", "13:00", 2); err != nil {
        t.Fatalf("Add second range: %v", err)
    }
    if err := s.Add("2026-03-12", "10:00", "11:00", 3); err != nil {
        t.Fatalf("Add other date: %v", err)
    }
    entries, err := s.ListForDate("2026-03-11")
    if err != nil {
        t.Fatalf("ListForDate: %v", err)
    }
    if len(entries) != 2 {
        t.Fatalf("got %d entries, want 2: %v", len(entries), entries)
    }
    empty, err := s.ListForDate("2026-01-01")
    if err != nil {
        t.Fatalf("ListForDate empty: %v", err)
    }
    if len(empty) != 0 {
        t.Fatalf("unknown date should be empty, got %v", empty)
    }
}

func TestAddRefusesOverlap(t *testing.T) {
    s := newStore(t)
    if err := s.Add("2026-03-11", "10:00", "12:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    overlapping := [][2]string{
        {"10:00", "12:00"}, // identical
        {"11:00", "13:00"}, // partial
        {"09:00", "11:00"}, // partial from below
        {"10:30", "11:30"}, // contained (minute-bucketed)
        {"09:00", "13:00"}, // containing
    }
    for _, r := range overlapping {
        err := s.Add("2026-03-11", r[0], r[1], 99)
        if !errors.Is(err, ErrOverlap) {
            t.Errorf("Add(%s-%s) = %v, want ErrOverlap", r[0], r[1], err)
        }
    }
    // Same range on another date is fine.
    if err := s.Add("2026-03-12", "10:00", "12:00", 99); err != nil {
        t.Errorf("Add on other date: %v", err)
    }
}

func TestTouchingRangesDoNotConflict(t *testing.T) {
    s := newStore(t)
    if err := s.Add("2026-03-11", "10:00", "11:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    if err := s.Add("2026-03-11", "11:00", "12:00", 2); err != nil {
        t.Errorf("touching range should not conflict: %v", err)
    }
    if err := s.Add("2026-03-11", "09:00", "10:00", 3); err != nil {
        t.Errorf("touching range below should not conflict: %v", err)
    }
}

func TestRemoveByBookingID(t *testing.T) {
    s := newStore(t)
    if err := s.Add("2026-03-11", "10:00", "11:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    if err := s.Add("2026-03-12", "10:00", "11:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    if err := s.Add("2026-03-11", "12:00", "13:00", 2); err != nil {
        t.Fatalf("Add: %v", err)
    }

    removed, err := s.RemoveByBookingID(1)
    if err != nil {
        t.Fatalf("RemoveByBookingID: %v", err)
    }
    if !removed {
        t.Fatal("RemoveByBookingID(1) = false, want true")
    }
    for _, date := range []string{"2026-03-11", "2026-03-12"} {
        entries, err := s.ListForDate(date)
        if err != nil {
            t.Fatalf("ListForDate(%s): %v", date, err)
        }
        for _, e := range entries {
            if e.BookingID == 1 {
                t.Errorf("booking 1 still indexed on %s", date)
            }
        }
    }
    // The slot is free again.
    if err := s.Add("2026-03-11", "10:00", "11:00", 3); err != nil {
        t.Errorf("slot should be free after removal: %v", err)
    }

    removed, err = s.RemoveByBookingID(42)
    if err != nil {
        t.Fatalf("RemoveByBookingID(42): %v", err)
    }
    if removed {
        t.Error("RemoveByBookingID(42) = true, want false for unknown id")
    }
}

func TestWritesAreWholeFileReplacements(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "hours_db.json")
    s, err := New(path)
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    if err := s.Add("2026-03-11", "10:00", "11:00", 7); err != nil {
        t.Fatalf("Add: %v", err)
    }
    raw, err := os.ReadFile(path)
    if err != nil {
        t.Fatalf("read index file: %v", err)
    }
    var db map[string][]Entry
    if err := json.Unmarshal(raw, &db); err != nil {
        t.Fatalf("index file is not valid JSON: %v", err)
    }
    got := db["2026-03-11"]
    if len(got) != 1 || got[0].BookingID != 7 || got[0].Start != "10:00" || got[0].End != "11:00" {
        t.Fatalf("unexpected file contents: %v", db)
    }
    // No temp files left behind.
    entries, err := os.ReadDir(dir)
    if err != nil {
        t.Fatalf("read dir: %v", err)
    }
    if len(entries) != 1 {
        t.Errorf("expected only the index file in %s, found %d entries", dir, len(entries))
    }
}

func TestSurvivesReopen(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "hours_db.json")
    s, err := New(path)
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    if err := s.Add("2026-03-11", "10:00", "11:00", 1); err != nil {
        t.Fatalf("Add: %v", err)
    }
    reopened, err := New(path)
    if err != nil {
        t.Fatalf("reopen: %v", err)
    }
    entries, err := reopened.ListForDate("2026-03-11")
    if err != nil {
        t.Fatalf("ListForDate: %v", err)
    }
    if len(entries) != 1 || entries[0].BookingID != 1 {
        t.Fatalf("reopened store lost data: %v", entries)
    }
}
