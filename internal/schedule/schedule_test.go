package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestConflictWindowBounds(t *testing.T) {
	booking := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	w := ConflictWindow(booking)
	if !w.Start.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", w.Start)
	}
	if !w.End.Equal(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end: %v", w.End)
	}
}

func TestConflictWindowContains(t *testing.T) {
	w := ConflictWindow(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 9, 29, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 2, 12, 1, 0, 0, time.UTC), false},
	}
	for _, c := range cases {
		if got := w.Contains(c.at); got != c.want {
			t.Fatalf("Contains(%v) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestCanCustomerCancel(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if !CanCustomerCancel(now.Add(2*time.Hour), now) {
		t.Fatalf("expected cancel allowed at exactly the cutoff")
	}
	if CanCustomerCancel(now.Add(119*time.Minute), now) {
		t.Fatalf("expected cancel refused inside the cutoff")
	}
}

func TestIsWithinOpeningHours(t *testing.T) {
	loc := mustLoadLoc(t)
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday morning", time.Date(2026, 3, 2, 8, 0, 0, 0, loc), true},
		{"weekday last start", time.Date(2026, 3, 2, 17, 59, 0, 0, loc), true},
		{"weekday closing", time.Date(2026, 3, 2, 18, 0, 0, 0, loc), false},
		{"weekday early", time.Date(2026, 3, 2, 7, 30, 0, 0, loc), false},
		{"saturday morning", time.Date(2026, 3, 7, 11, 0, 0, 0, loc), true},
		{"saturday afternoon", time.Date(2026, 3, 7, 13, 0, 0, 0, loc), false},
		{"sunday", time.Date(2026, 3, 8, 10, 0, 0, 0, loc), false},
	}
	for _, c := range cases {
		if got := IsWithinOpeningHours(c.at, loc); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsWithinOpeningHoursConvertsZone(t *testing.T) {
	loc := mustLoadLoc(t)
	// 02:00 UTC is 09:00 in Ho Chi Minh City.
	if !IsWithinOpeningHours(time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), loc) {
		t.Fatalf("expected UTC instant to be converted to the workshop zone")
	}
}

func TestParseClockToMinutes(t *testing.T) {
	m, err := ParseClockToMinutes("09:45")
	if err != nil || m != 585 {
		t.Fatalf("got %d, %v", m, err)
	}
	if _, err := ParseClockToMinutes("9h"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsPast(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if !IsPast(now, now) || IsPast(now.Add(time.Second), now) {
		t.Fatalf("unexpected IsPast results")
	}
}
