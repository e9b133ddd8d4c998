// Package activehours decides when polling may run and which game week is current.
//
// Both questions derive from the same weekly Window, so the gate and the
// schedule cache can never disagree about where a week starts.
package activehours

import (
	"time"
	_ "time/tzdata"
)

const day = 24 * time.Hour

// Window is a weekly active range plus a daily skip range, evaluated in Location.
// Times are offsets from local midnight.
type Window struct {
	StartDay  time.Weekday
	StartTime time.Duration
	EndDay    time.Weekday
	EndTime   time.Duration

	SkipStart time.Duration
	SkipEnd   time.Duration

	Location *time.Location
}

// DefaultWindow is Thursday 20:00 to Monday 22:00 with no polling 00:00-09:00,
// America/New_York.
func DefaultWindow() Window {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Window{
		StartDay:  time.Thursday,
		StartTime: 20 * time.Hour,
		EndDay:    time.Monday,
		EndTime:   22 * time.Hour,
		SkipStart: 0,
		SkipEnd:   9 * time.Hour,
		Location:  loc,
	}
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// span is the number of whole days from StartDay to EndDay. A window that
// starts and ends on the same weekday with EndTime before StartTime wraps a
// full week.
func (w Window) span() int {
	l := (int(w.EndDay) - int(w.StartDay) + 7) % 7
	if l == 0 && w.EndTime < w.StartTime {
		l = 7
	}
	return l
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func (w Window) inSkip(tod time.Duration) bool {
	if w.SkipStart <= w.SkipEnd {
		return tod >= w.SkipStart && tod <= w.SkipEnd
	}
	// wraps midnight, e.g. 23:00-06:00
	return tod >= w.SkipStart || tod <= w.SkipEnd
}

// Allow reports whether a polling cycle may run at now.
//
// The skip range wins over everything. Otherwise now must fall inside the
// inclusive weekly range (StartDay, StartTime)..(EndDay, EndTime); days in
// between are fully active.
func (w Window) Allow(now time.Time) bool {
	n := now.In(w.loc())
	tod := timeOfDay(n)
	if w.inSkip(tod) {
		return false
	}
	d := (int(n.Weekday()) - int(w.StartDay) + 7) % 7
	pos := time.Duration(d)*day + tod
	l := w.span()
	end := time.Duration(l)*day + w.EndTime
	if pos >= w.StartTime && pos <= end {
		return true
	}
	// a full-week window's tail reaches into the start day
	return l == 7 && pos+7*day <= end
}

// Bounds returns the active week containing now, or the next one if now
// falls in the gap between weeks.
//
// start is local midnight of StartDay; end is EndDay at EndTime.
func (w Window) Bounds(now time.Time) (start, end time.Time) {
	loc := w.loc()
	n := now.In(loc)
	d := (int(n.Weekday()) - int(w.StartDay) + 7) % 7
	l := w.span()

	offset := -d
	switch {
	case d > l:
		offset = 7 - d
	case l == 7 && d == 0 && timeOfDay(n) <= w.EndTime:
		offset = -7
	}
	y, m, dd := n.Date()
	start = time.Date(y, m, dd+offset, 0, 0, 0, 0, loc)

	sy, sm, sd := start.Date()
	h := int(w.EndTime / time.Hour)
	mins := int((w.EndTime % time.Hour) / time.Minute)
	end = time.Date(sy, sm, sd+l, h, mins, 0, 0, loc)
	return start, end
}

// ActiveWeekBounds is Bounds as a free function, for callers holding a Window value.
func ActiveWeekBounds(now time.Time, w Window) (time.Time, time.Time) {
	return w.Bounds(now)
}

// WeekIdentity renders the cache key for a week, e.g. "2025-09-04_to_2025-09-08".
func WeekIdentity(start, end time.Time) string {
	return start.Format(time.DateOnly) + "_to_" + end.Format(time.DateOnly)
}

// Identity is WeekIdentity of the week containing now.
func (w Window) Identity(now time.Time) string {
	return WeekIdentity(w.Bounds(now))
}
