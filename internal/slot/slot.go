// Package slot implements validation of candidate reservation time
// ranges.  It is pure: no clock access and no I/O, so the same rules
// run identically at creation, staging, payment confirmation and edit
// time, and can be unit tested standalone.
package slot

import (
    "fmt"
    "time"
)

// DateLayout and TimeLayout are the canonical string forms used for
// slots throughout the system: database columns, the hours index file
// and the HTTP API all exchange the same representations.
const (
    DateLayout = "2006-01-02"
    TimeLayout = "15:04"
)

// Slot is one reservable interval: a calendar date plus a half-open
// [Start, End) wall-clock range within that date.
type Slot struct {
    EventDate string // YYYY-MM-DD
    Start     string // HH:MM
    End       string // HH:MM
}

func (s Slot) String() string {
    return fmt.Sprintf("%s %s-%s", s.EventDate, s.Start, s.End)
}

// Minutes converts an HH:MM string to minutes since midnight.  It
// returns -1 when the value does not parse; validation reports that as
// a structural error before any caller relies on the number.
func Minutes(hm string) int {
    t, err := time.Parse(TimeLayout, hm)
    if err != nil {
        return -1
    }
    return t.Hour()*60 + t.Minute()
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect.  Touching endpoints do not overlap, so a
// booking ending at 11:00 coexists with one starting at 11:00.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
    return aStart < bEnd && aEnd > bStart
}
