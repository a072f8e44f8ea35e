package schedule

import (
	"errors"
	"time"
)

const (
	// A technician is busy from 30 minutes before a booking until 2 hours after it.
	ConflictLead  = 30 * time.Minute
	ConflictTrail = 2 * time.Hour

	// Customers cannot cancel a booking that starts in less than this.
	CustomerCancelCutoff = 2 * time.Hour
)

var ErrInvalidTime = errors.New("invalid time format")

type Window struct {
	Start time.Time
	End   time.Time
}

// Contains treats both ends as part of the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func ConflictWindow(booking time.Time) Window {
	return Window{Start: booking.Add(-ConflictLead), End: booking.Add(ConflictTrail)}
}

func CanCustomerCancel(booking, now time.Time) bool {
	return booking.Sub(now) >= CustomerCancelCutoff
}

type TimeRange struct {
	Start string
	End   string
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func dayRanges(day time.Weekday) []TimeRange {
	switch day {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday:
		return []TimeRange{{Start: "08:00", End: "18:00"}}
	case time.Saturday:
		return []TimeRange{{Start: "08:00", End: "12:00"}}
	default:
		return nil
	}
}

// IsWithinOpeningHours reports whether a booking may start at t in the workshop's time zone.
// The closing time itself is not a valid start.
func IsWithinOpeningHours(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	for _, tr := range dayRanges(local.Weekday()) {
		start, err := ParseClockToMinutes(tr.Start)
		if err != nil {
			return false
		}
		end, err := ParseClockToMinutes(tr.End)
		if err != nil {
			return false
		}
		if minutes >= start && minutes < end {
			return true
		}
	}
	return false
}

func IsPast(t, now time.Time) bool {
	return !t.After(now)
}
