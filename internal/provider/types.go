package provider

import "time"

// Game is one scheduled NFL game. Team fields hold MFL team codes when the
// provider's name was recognized, otherwise the raw provider name.
type Game struct {
	Home  string
	Away  string
	Start time.Time
}

// Quota is the metered provider's view of our budget, taken from response headers.
// OK is false when the response carried no usable quota headers.
type Quota struct {
	Used      int
	Remaining int
	OK        bool
}
