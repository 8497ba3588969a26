package prediction

import (
	"sort"

	"github.com/okian/fplcoach/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Reference is the league-wide yardstick a squad is rated against.
type Reference struct {
	// Averages holds mean predicted points per position.
	Averages map[model.Position]float64
	// Floor and Ceiling bound the achievable aggregate for the gameweek.
	Floor   float64
	Ceiling float64
}

// BuildReference derives position averages and the best achievable starting
// aggregate from every resolvable player. The ceiling picks the best keeper,
// fills the formation minimums, adds the best remaining outfielders and
// counts the top starter twice.
func BuildReference(players []model.Player, lookup Lookup, floor float64) Reference {
	byPos := make(map[model.Position][]float64, len(model.Positions))
	for _, p := range players {
		pts, ok := lookup.Points(p.ID)
		if !ok {
			continue
		}
		byPos[p.Position] = append(byPos[p.Position], pts)
	}

	ref := Reference{Averages: make(map[model.Position]float64, len(model.Positions)), Floor: floor}
	for pos, pts := range byPos {
		ref.Averages[pos] = stat.Mean(pts, nil)
		sort.Sort(sort.Reverse(sort.Float64Slice(pts)))
	}

	minimums := map[model.Position]int{model.Goalkeeper: 1, model.Defender: 3, model.Midfielder: 2, model.Forward: 1}
	maximums := map[model.Position]int{model.Goalkeeper: 1, model.Defender: 5, model.Midfielder: 5, model.Forward: 3}

	var starters []float64
	var rest []float64
	for _, pos := range model.Positions {
		pts := byPos[pos]
		for i, p := range pts {
			switch {
			case i < minimums[pos]:
				starters = append(starters, p)
			case i < maximums[pos]:
				rest = append(rest, p)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rest)))
	for _, p := range rest {
		if len(starters) >= model.StartingSlots {
			break
		}
		starters = append(starters, p)
	}

	best := 0.0
	total := 0.0
	for i, p := range starters {
		total += p
		if i == 0 || p > best {
			best = p
		}
	}
	if len(starters) > 0 {
		total += best
	}
	ref.Ceiling = total
	return ref
}
