package activehours

import (
	"testing"
	"time"
)

func ny(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

func TestAllowDefaultWindow(t *testing.T) {
	t.Parallel()
	loc := ny(t)
	w := DefaultWindow()

	// 2025-09-04 is a Thursday.
	at := func(day, h, m, s int) time.Time { return time.Date(2025, 9, day, h, m, s, 0, loc) }

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"sat noon", at(6, 12, 0, 0), true},
		{"tue noon", at(9, 12, 0, 0), false},
		{"wed evening", at(3, 21, 0, 0), false},
		{"thu before start", at(4, 19, 59, 59), false},
		{"thu at start", at(4, 20, 0, 0), true},
		{"fri afternoon", at(5, 15, 0, 0), true},
		{"sun in skip", at(7, 8, 59, 0), false},
		{"sat midnight skip", at(6, 0, 0, 0), false},
		{"skip end inclusive", at(6, 9, 0, 0), false},
		{"just after skip", at(6, 9, 0, 1), true},
		{"mon at end", at(8, 22, 0, 0), true},
		{"mon after end", at(8, 22, 0, 1), false},
		{"mon morning", at(8, 10, 0, 0), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := w.Allow(tt.now); got != tt.want {
				t.Fatalf("Allow(%s) = %v, want %v", tt.now.Format(time.RFC1123), got, tt.want)
			}
		})
	}
}

func TestAllowFullWeekWindow(t *testing.T) {
	t.Parallel()
	w := Window{
		StartDay:  time.Thursday,
		StartTime: 20 * time.Hour,
		EndDay:    time.Thursday,
		EndTime:   10 * time.Hour,
		Location:  time.UTC,
	}
	at := func(day, h int) time.Time { return time.Date(2025, 9, day, h, 30, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"thu morning tail", at(4, 9), true},
		{"thu gap", at(4, 15), false},
		{"thu evening start", at(4, 20), true},
		{"sat", at(6, 12), true},
		{"next thu morning", at(11, 9), true},
		{"next thu after end", at(11, 10), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := w.Allow(tt.now); got != tt.want {
				t.Fatalf("Allow(%s) = %v, want %v", tt.now.Format(time.RFC1123), got, tt.want)
			}
		})
	}
}

func TestBoundsFullWeekTail(t *testing.T) {
	t.Parallel()
	w := Window{StartDay: time.Thursday, StartTime: 20 * time.Hour, EndDay: time.Thursday, EndTime: 10 * time.Hour, Location: time.UTC}

	if got := w.Identity(time.Date(2025, 9, 11, 9, 30, 0, 0, time.UTC)); got != "2025-09-04_to_2025-09-11" {
		t.Fatalf("tail identity = %s", got)
	}
	if got := w.Identity(time.Date(2025, 9, 11, 15, 0, 0, 0, time.UTC)); got != "2025-09-11_to_2025-09-18" {
		t.Fatalf("gap identity = %s", got)
	}
}

func TestAllowUsesWindowLocation(t *testing.T) {
	t.Parallel()
	w := DefaultWindow()
	// Saturday 05:00 UTC is Saturday 01:00 EDT: inside the skip range.
	if w.Allow(time.Date(2025, 9, 6, 5, 0, 0, 0, time.UTC)) {
		t.Fatal("expected skip range to apply in New York time")
	}
	// Saturday 16:00 UTC is noon EDT.
	if !w.Allow(time.Date(2025, 9, 6, 16, 0, 0, 0, time.UTC)) {
		t.Fatal("expected Saturday noon EDT to be active")
	}
}

func TestSkipRangeWrappingMidnight(t *testing.T) {
	t.Parallel()
	w := DefaultWindow()
	w.SkipStart = 23 * time.Hour
	w.SkipEnd = 6 * time.Hour
	loc := w.Location
	if w.Allow(time.Date(2025, 9, 6, 23, 30, 0, 0, loc)) {
		t.Fatal("23:30 should be skipped")
	}
	if w.Allow(time.Date(2025, 9, 6, 5, 0, 0, 0, loc)) {
		t.Fatal("05:00 should be skipped")
	}
	if !w.Allow(time.Date(2025, 9, 6, 7, 0, 0, 0, loc)) {
		t.Fatal("07:00 should be active")
	}
}

func TestBoundsAndIdentity(t *testing.T) {
	t.Parallel()
	loc := ny(t)
	w := DefaultWindow()

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"wednesday looks ahead", time.Date(2025, 9, 3, 12, 0, 0, 0, loc), "2025-09-04_to_2025-09-08"},
		{"thursday morning", time.Date(2025, 9, 4, 8, 0, 0, 0, loc), "2025-09-04_to_2025-09-08"},
		{"saturday", time.Date(2025, 9, 6, 12, 0, 0, 0, loc), "2025-09-04_to_2025-09-08"},
		{"monday late", time.Date(2025, 9, 8, 23, 30, 0, 0, loc), "2025-09-04_to_2025-09-08"},
		{"tuesday rolls over", time.Date(2025, 9, 9, 0, 30, 0, 0, loc), "2025-09-11_to_2025-09-15"},
		{"utc instant uses local date", time.Date(2025, 9, 9, 2, 0, 0, 0, time.UTC), "2025-09-04_to_2025-09-08"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := w.Identity(tt.now); got != tt.want {
				t.Fatalf("Identity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoundsEdges(t *testing.T) {
	t.Parallel()
	loc := ny(t)
	w := DefaultWindow()
	start, end := ActiveWeekBounds(time.Date(2025, 9, 6, 12, 0, 0, 0, loc), w)

	wantStart := time.Date(2025, 9, 4, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 9, 8, 22, 0, 0, 0, loc)
	if !start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("end = %v, want %v", end, wantEnd)
	}
}

func TestBoundsAcrossDSTChange(t *testing.T) {
	t.Parallel()
	loc := ny(t)
	w := DefaultWindow()
	// DST ends 2025-11-02 (Sunday) inside the week of Thu 2025-10-30.
	start, end := w.Bounds(time.Date(2025, 11, 2, 12, 0, 0, 0, loc))
	if h, m, _ := end.Clock(); h != 22 || m != 0 {
		t.Fatalf("end clock = %02d:%02d, want 22:00", h, m)
	}
	if got := WeekIdentity(start, end); got != "2025-10-30_to_2025-11-03" {
		t.Fatalf("identity = %q", got)
	}
}
