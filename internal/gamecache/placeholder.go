package gamecache

import "time"

// Placeholder is a guessed start-day game for one team, used when no provider
// reports any game on the first day of the week. It is a heuristic, not a
// schedule fact, and can be turned off.
type Placeholder struct {
	Enabled bool
	Team    string
	Kickoff time.Duration // offset from local midnight of the start day
}

func DefaultPlaceholder() Placeholder {
	return Placeholder{Enabled: true, Team: "PHI", Kickoff: 20 * time.Hour}
}

// apply adds the placeholder to gt unless disabled or the team already has a
// real game this week.
func (p Placeholder) apply(gt GameTimes, weekStart time.Time) (string, time.Time, bool) {
	if !p.Enabled || p.Team == "" {
		return "", time.Time{}, false
	}
	if _, ok := gt[p.Team]; ok {
		return "", time.Time{}, false
	}
	y, m, d := weekStart.Date()
	h := int(p.Kickoff / time.Hour)
	mins := int((p.Kickoff % time.Hour) / time.Minute)
	at := time.Date(y, m, d, h, mins, 0, 0, weekStart.Location())
	gt[p.Team] = at
	return p.Team, at, true
}
