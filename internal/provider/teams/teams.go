// Package teams maps NFL team display names to the team codes MFL uses.
package teams

import "strings"

var byName = map[string]string{
	"Arizona Cardinals":     "ARI",
	"Atlanta Falcons":       "ATL",
	"Baltimore Ravens":      "BAL",
	"Buffalo Bills":         "BUF",
	"Carolina Panthers":     "CAR",
	"Chicago Bears":         "CHI",
	"Cincinnati Bengals":    "CIN",
	"Cleveland Browns":      "CLE",
	"Dallas Cowboys":        "DAL",
	"Denver Broncos":        "DEN",
	"Detroit Lions":         "DET",
	"Green Bay Packers":     "GBP",
	"Houston Texans":        "HOU",
	"Indianapolis Colts":    "IND",
	"Jacksonville Jaguars":  "JAX",
	"Kansas City Chiefs":    "KCC",
	"Las Vegas Raiders":     "LVR",
	"Los Angeles Chargers":  "LAC",
	"Los Angeles Rams":      "LAR",
	"Miami Dolphins":        "MIA",
	"Minnesota Vikings":     "MIN",
	"New England Patriots":  "NEP",
	"New Orleans Saints":    "NOS",
	"New York Giants":       "NYG",
	"New York Jets":         "NYJ",
	"Philadelphia Eagles":   "PHI",
	"Pittsburgh Steelers":   "PIT",
	"San Francisco 49ers":   "SFO",
	"Seattle Seahawks":      "SEA",
	"Tampa Bay Buccaneers":  "TBB",
	"Tennessee Titans":      "TEN",
	"Washington Commanders": "WAS",
}

var codes = func() map[string]bool {
	m := make(map[string]bool, len(byName))
	for _, c := range byName {
		m[c] = true
	}
	return m
}()

// Code returns the MFL code for a full team name. Unknown names come back
// trimmed but otherwise unchanged, so they simply never match a player's team.
func Code(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := byName[name]; ok {
		return c
	}
	return name
}

// Known reports whether code is one of the 32 MFL team codes.
func Known(code string) bool { return codes[code] }
