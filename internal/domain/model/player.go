package model

import (
	"github.com/shopspring/decimal"
)

// Status is the availability code published for a player.
type Status string

// Availability codes.
const (
	StatusAvailable   Status = "a"
	StatusDoubtful    Status = "d"
	StatusInjured     Status = "i"
	StatusSuspended   Status = "s"
	StatusUnavailable Status = "u"
	StatusIneligible  Status = "n"
)

// Available reports whether the player can be picked. An empty status counts
// as available.
func (s Status) Available() bool {
	return s == "" || s == StatusAvailable || s == StatusDoubtful
}

// Player is a snapshot of a footballer for one gameweek. Predicted points are
// resolved separately and never stored here.
type Player struct {
	ID       int
	Name     string
	Position Position
	Team     string
	Cost     decimal.Decimal
	Status   Status
}

// SquadEntry is one slot in a manager's squad.
type SquadEntry struct {
	Player
	Starter bool
	Captain bool
	// PurchaseCost is what the manager paid, when known.
	PurchaseCost *decimal.Decimal
	// DisplayPoints is caller supplied and only used for display.
	DisplayPoints *float64
}

// Squad is an ordered, read-only snapshot of a manager's 15 players.
type Squad struct {
	entries []SquadEntry
}

// StartingSlots is the number of starters in a valid squad.
const StartingSlots = 11

// Bounds is an inclusive range of players.
type Bounds struct {
	Min int
	Max int
}

// StartingBounds is how many starters each position may field.
var StartingBounds = map[Position]Bounds{
	Goalkeeper: {Min: 1, Max: 1},
	Defender:   {Min: 3, Max: 5},
	Midfielder: {Min: 2, Max: 5},
	Forward:    {Min: 1, Max: 3},
}

// NewSquad copies entries into a Squad. When no entry is flagged as a starter
// the first eleven start if they field a legal formation with the captain
// among them. Otherwise a legal eleven is picked in payload order: the
// captain, the first goalkeeper, the first 3 defenders, 2 midfielders and
// 1 forward, then the remaining outfielders up to each position's maximum.
func NewSquad(entries []SquadEntry) Squad {
	cp := make([]SquadEntry, len(entries))
	copy(cp, entries)

	for _, e := range cp {
		if e.Starter {
			return Squad{entries: cp}
		}
	}
	if leadingElevenFits(cp) {
		for i := range cp {
			cp[i].Starter = i < StartingSlots
		}
	} else {
		pickStarters(cp)
	}
	return Squad{entries: cp}
}

func leadingElevenFits(entries []SquadEntry) bool {
	if len(entries) < StartingSlots {
		return false
	}
	counts := make(map[Position]int, len(Positions))
	for _, e := range entries[:StartingSlots] {
		counts[e.Position]++
	}
	for _, pos := range Positions {
		b := StartingBounds[pos]
		if counts[pos] < b.Min || counts[pos] > b.Max {
			return false
		}
	}
	for _, e := range entries[StartingSlots:] {
		if e.Captain {
			return false
		}
	}
	return true
}

func pickStarters(entries []SquadEntry) {
	counts := make(map[Position]int, len(Positions))
	picked := 0
	take := func(i int) {
		entries[i].Starter = true
		counts[entries[i].Position]++
		picked++
	}

	for i, e := range entries {
		if e.Captain && e.Position.Valid() {
			take(i)
			break
		}
	}
	for _, pos := range Positions {
		for i, e := range entries {
			if counts[pos] >= StartingBounds[pos].Min {
				break
			}
			if e.Position == pos && !e.Starter {
				take(i)
			}
		}
	}
	for i, e := range entries {
		if picked >= StartingSlots {
			return
		}
		if e.Starter || !e.Position.Valid() || counts[e.Position] >= StartingBounds[e.Position].Max {
			continue
		}
		take(i)
	}
}

// Entries returns a copy of the squad entries in payload order.
func (s Squad) Entries() []SquadEntry {
	out := make([]SquadEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s Squad) Len() int { return len(s.entries) }

// Starters returns the starting entries in payload order.
func (s Squad) Starters() []SquadEntry {
	out := make([]SquadEntry, 0, StartingSlots)
	for _, e := range s.entries {
		if e.Starter {
			out = append(out, e)
		}
	}
	return out
}

// Captain returns the captain entry, if any.
func (s Squad) Captain() (SquadEntry, bool) {
	for _, e := range s.entries {
		if e.Captain {
			return e, true
		}
	}
	return SquadEntry{}, false
}

// Contains reports whether a player with id is in the squad.
func (s Squad) Contains(id int) bool {
	for _, e := range s.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// IDs returns every player id in payload order.
func (s Squad) IDs() []int {
	ids := make([]int, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ID
	}
	return ids
}

// Value returns the summed current cost of the squad.
func (s Squad) Value() decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.entries {
		total = total.Add(e.Cost)
	}
	return total
}

// ClubCounts returns how many entries each club contributes.
func (s Squad) ClubCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.Team]++
	}
	return counts
}
