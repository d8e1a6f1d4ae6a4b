package slot

import (
    "strings"
    "time"
)

// InvalidSlotError reports the structural rules a candidate slot
// violates, keyed by field so callers can surface them next to the
// offending form input.  Possible keys are "event_date", "start_time"
// and "end_time".
type InvalidSlotError struct {
    Fields map[string]string
}

func (e *InvalidSlotError) Error() string {
    parts := make([]string, 0, len(e.Fields))
    for f, msg := range e.Fields {
        parts = append(parts, f+": "+msg)
    }
    return "invalid slot: " + strings.Join(parts, "; ")
}

// Validate checks a candidate slot against the structural booking
// rules.  today is the caller's current local date; passing it in
// keeps the function deterministic.  It returns an *InvalidSlotError
// carrying every violated rule, or nil when the slot is well formed.
//
// Rules:
//   - both times must parse as zero-padded HH:MM
//   - reservations start and end on the hour (minute 00)
//   - 00:00 is forbidden on either endpoint; it is the sentinel value
//     for "unset" carried over from the booking form
//   - start must be strictly before end
//   - the event date must not lie before today
func Validate(s Slot, today time.Time) error {
    fields := map[string]string{}

    start, startErr := time.Parse(TimeLayout, s.Start)
    if startErr != nil {
        fields["start_time"] = "start time is required in HH:MM format"
    }
    end, endErr := time.Parse(TimeLayout, s.End)
    if endErr != nil {
        fields["end_time"] = "end time is required in HH:MM format"
    }

    if startErr == nil {
        if start.Minute() != 0 {
            fields["start_time"] = "reservations must start on the hour (minute 00)"
        } else if start.Hour() == 0 {
            fields["start_time"] = "reservations cannot start at midnight"
        }
    }
    if endErr == nil {
        if end.Minute() != 0 {
            fields["end_time"] = "reservations must end on the hour (minute 00)"
        } else if end.Hour() == 0 {
            fields["end_time"] = "reservations cannot end at midnight"
        }
    }
    if startErr == nil && endErr == nil && !start.Before(end) {
        fields["end_time"] = "end time must be after start time"
    }

    date, dateErr := time.Parse(DateLayout, s.EventDate)
    if dateErr != nil {
        fields["event_date"] = "event date is required in YYYY-MM-DD format"
    } else {
        day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
        if date.Before(day) {
            fields["event_date"] = "reservations cannot be created for past dates"
        }
    }

    if len(fields) > 0 {
        return &InvalidSlotError{Fields: fields}
    }
    return nil
}
