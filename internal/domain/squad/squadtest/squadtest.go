// Package squadtest builds valid squads for tests.
package squadtest

import (
	"fmt"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Player ids of the default squad. Starters play 1-4-4-2 and FwdA is captain.
const (
	GK1 = 1
	GK2 = 2
	// Defenders are 3..7, midfielders 8..12, forwards 13..15.
	FwdA = 13
	FwdB = 14
	FwdC = 15
)

var layout = []struct {
	pos     model.Position
	cost    string
	starter bool
}{
	{model.Goalkeeper, "4.5", true},
	{model.Goalkeeper, "4.0", false},
	{model.Defender, "5.0", true},
	{model.Defender, "4.5", true},
	{model.Defender, "4.5", true},
	{model.Defender, "4.5", true},
	{model.Defender, "4.0", false},
	{model.Midfielder, "8.0", true},
	{model.Midfielder, "7.0", true},
	{model.Midfielder, "6.0", true},
	{model.Midfielder, "5.5", true},
	{model.Midfielder, "4.5", false},
	{model.Forward, "8.0", true},
	{model.Forward, "7.0", true},
	{model.Forward, "5.0", false},
}

// Entries returns the default 15 entries. Every player has its own club.
func Entries() []model.SquadEntry {
	out := make([]model.SquadEntry, len(layout))
	for i, l := range layout {
		id := i + 1
		out[i] = model.SquadEntry{
			Player: model.Player{
				ID:       id,
				Name:     fmt.Sprintf("Player %02d", id),
				Position: l.pos,
				Team:     fmt.Sprintf("C%02d", id),
				Cost:     decimal.RequireFromString(l.cost),
			},
			Starter: l.starter,
			Captain: id == FwdA,
		}
	}
	return out
}

// Squad returns the default squad.
func Squad() model.Squad {
	return model.NewSquad(Entries())
}
