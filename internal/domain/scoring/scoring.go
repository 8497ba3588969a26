// Package scoring rates a squad from per-player predictions.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Default scoring configuration constants.
const (
	defaultWeakSpotFraction = 0.8
	defaultMaxPerClub       = 3
	defaultMinSquadValue    = 90
	captainMultiplier       = 2
	maxScoreValue           = 100
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeakSpotFraction sets the share of the league average below which a
// position is flagged.
func WithWeakSpotFraction(f float64) Option {
	return func(s *Scorer) {
		if f > 0 && f <= 1 {
			s.weakSpotFraction = f
		}
	}
}

// WithMaxPerClub sets the club concentration warning threshold. Zero disables it.
func WithMaxPerClub(n int) Option {
	return func(s *Scorer) {
		if n >= 0 {
			s.maxPerClub = n
		}
	}
}

// WithMinSquadValue sets the squad value below which an upgrade is advised.
// Zero disables it.
func WithMinSquadValue(v decimal.Decimal) Option {
	return func(s *Scorer) {
		if !v.IsNegative() {
			s.minSquadValue = v
		}
	}
}

// Scorer rates squads. It is safe for concurrent use.
type Scorer struct {
	weakSpotFraction float64
	maxPerClub       int
	minSquadValue    decimal.Decimal
}

// New creates a Scorer with configuration options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weakSpotFraction: defaultWeakSpotFraction,
		maxPerClub:       defaultMaxPerClub,
		minSquadValue:    decimal.NewFromInt(defaultMinSquadValue),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate aggregates starter predictions, counting the captain twice, and maps
// the aggregate onto 0-100 against ref. Starters without a prediction are
// excluded and mark the score as degraded. When no starter resolves Rate
// returns model.ErrNoUsablePlayers.
func (s *Scorer) Rate(sq model.Squad, lookup prediction.Lookup, ref prediction.Reference) (model.TeamScore, error) {
	starters := sq.Starters()
	var (
		aggregate float64
		resolved  int
		excluded  []int
	)
	for _, e := range starters {
		pts, ok := lookup.Points(e.ID)
		if !ok {
			excluded = append(excluded, e.ID)
			continue
		}
		resolved++
		if e.Captain {
			pts *= captainMultiplier
		}
		aggregate += pts
	}
	if resolved == 0 {
		return model.TeamScore{}, fmt.Errorf("rate squad: %w", model.ErrNoUsablePlayers)
	}

	score := round(normalize(aggregate, ref.Floor, ref.Ceiling), 1)
	suggestions := s.weakSpots(sq, lookup, ref)
	suggestions = append(suggestions, s.advisories(sq)...)

	return model.TeamScore{
		Score:           score,
		Rating:          model.RatingLabel(score),
		Suggestions:     suggestions,
		AggregatePoints: round(aggregate, 2),
		Degraded:        len(excluded) > 0,
		Confidence:      round(float64(resolved)/float64(len(starters)), 2),
		Excluded:        excluded,
	}, nil
}

// normalize maps aggregate onto [0,100] with a min-max clamp.
func normalize(aggregate, floor, ceiling float64) float64 {
	if ceiling <= floor {
		if aggregate > floor {
			return maxScoreValue
		}
		return 0
	}
	v := (aggregate - floor) / (ceiling - floor) * maxScoreValue
	return math.Max(0, math.Min(maxScoreValue, v))
}

type weakSpot struct {
	pos     model.Position
	squad   float64
	league  float64
	deficit float64
}

// weakSpots flags positions whose squad average trails the league average,
// largest deficit first.
func (s *Scorer) weakSpots(sq model.Squad, lookup prediction.Lookup, ref prediction.Reference) []string {
	byPos := make(map[model.Position][]float64, len(model.Positions))
	for _, e := range sq.Entries() {
		if pts, ok := lookup.Points(e.ID); ok {
			byPos[e.Position] = append(byPos[e.Position], pts)
		}
	}

	var spots []weakSpot
	for _, pos := range model.Positions {
		pts := byPos[pos]
		league, ok := ref.Averages[pos]
		if len(pts) == 0 || !ok || league <= 0 {
			continue
		}
		avg := stat.Mean(pts, nil)
		if avg < s.weakSpotFraction*league {
			spots = append(spots, weakSpot{pos: pos, squad: avg, league: league, deficit: league - avg})
		}
	}
	sort.SliceStable(spots, func(i, j int) bool {
		return spots[i].deficit > spots[j].deficit
	})

	out := make([]string, 0, len(spots))
	for _, w := range spots {
		out = append(out, fmt.Sprintf("Strengthen your %s: squad average %.1f pts vs league average %.1f pts",
			w.pos.Plural(), w.squad, w.league))
	}
	return out
}

// advisories adds availability, club concentration and squad value advice.
func (s *Scorer) advisories(sq model.Squad) []string {
	var out []string
	for _, e := range sq.Entries() {
		if !e.Status.Available() {
			out = append(out, "Replace injured/unavailable player: "+e.Name)
		}
	}

	if s.maxPerClub > 0 {
		counts := sq.ClubCounts()
		clubs := make([]string, 0, len(counts))
		for club, n := range counts {
			if club != "" && n > s.maxPerClub {
				clubs = append(clubs, club)
			}
		}
		sort.Strings(clubs)
		for _, club := range clubs {
			out = append(out, "Too many players from "+club)
		}
	}

	if s.minSquadValue.IsPositive() && sq.Value().LessThan(s.minSquadValue) {
		out = append(out, "Consider upgrading to higher-value players.")
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
