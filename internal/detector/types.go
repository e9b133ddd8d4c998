package detector

import (
	"strings"
	"time"
)

type Kind string

const (
	KindAdd        Kind = "add"
	KindWaiver     Kind = "waiver"
	KindAutoWaiver Kind = "auto-waiver"
	KindOther      Kind = "other"
)

// KindFromMFL maps an MFL transaction type to a Kind.
func KindFromMFL(t string) Kind {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "FREE_AGENT":
		return KindAdd
	case "BBID_WAIVER":
		return KindWaiver
	case "BBID_AUTO_PROCESS_WAIVERS":
		return KindAutoWaiver
	default:
		return KindOther
	}
}

// IsAdd reports whether transactions of this kind can put a player on a roster.
func (k Kind) IsAdd() bool {
	return k == KindAdd || k == KindWaiver || k == KindAutoWaiver
}

type Transaction struct {
	ID         string
	Kind       Kind
	OccurredAt time.Time
	ActorID    string // franchise id
	Payload    string // "added1,added2,|dropped1,"
}

// AddedPlayers decodes the added player ids from an MFL payload: a
// comma-separated id list, optionally followed by "|" and the dropped ids.
// A payload with no added id (empty, or drop-only like "|123,") yields ok=false.
func AddedPlayers(payload string) (ids []string, ok bool) {
	added, _, _ := strings.Cut(payload, "|")
	added = strings.TrimRight(strings.TrimSpace(added), ",")
	if added == "" {
		return nil, false
	}
	for _, id := range strings.Split(added, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || strings.HasPrefix(added, ",") {
		return nil, false
	}
	return ids, true
}

type Player struct {
	ID       string
	Name     string // MFL order: "Last, First"
	Position string
	Team     string
}

// DisplayName renders "Last, First" as "First Last".
func (p Player) DisplayName() string {
	if last, first, ok := strings.Cut(p.Name, ", "); ok {
		return first + " " + last
	}
	if p.Name == "" {
		return "Unknown Player"
	}
	return p.Name
}

type Franchise struct {
	ID        string
	Name      string
	OwnerName string
}
