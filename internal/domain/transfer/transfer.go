// Package transfer suggests single-player swaps under a budget.
//
// The search is a best-swap ranking, not a squad optimiser. Every
// (incumbent, candidate) pair is scored on its own against the same budget,
// the pairs are sorted, and suggestions are picked greedily so that no
// player leaves or arrives twice. Each accepted suggestion was the best
// remaining pair when it was picked; the returned set is not a jointly
// optimal multi-transfer plan.
//
// Two filters shrink the candidate pool by default. A swap may not leave
// more than three players from one club in the squad (WithMaxPerClub, zero
// disables it), and candidates whose status is not available or doubtful are
// never suggested.
package transfer

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/shopspring/decimal"
)

const defaultMaxPerClub = 3

var (
	// sellStep is the price rise that earns one sellTick of profit.
	sellStep = decimal.RequireFromString("0.2")
	sellTick = decimal.RequireFromString("0.1")
)

// Option applies a configuration option to the Recommender.
type Option func(*Recommender)

// WithMaxPerClub limits how many players one club may contribute after a
// swap. Zero disables the check.
func WithMaxPerClub(n int) Option {
	return func(r *Recommender) {
		if n >= 0 {
			r.maxPerClub = n
		}
	}
}

// WithLogger sets the logger used for skipped players.
func WithLogger(l logger.Logger) Option {
	return func(r *Recommender) {
		if l != nil {
			r.log = l
		}
	}
}

// Recommender ranks transfer suggestions. It holds no per-request state.
type Recommender struct {
	maxPerClub int
	log        logger.Logger
}

// New creates a Recommender.
func New(opts ...Option) *Recommender {
	r := &Recommender{
		maxPerClub: defaultMaxPerClub,
		log:        logger.FromZap(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaleValue is what selling the entry returns. Without a purchase cost, or
// when the price fell, it is the current cost. Otherwise the manager keeps
// half of the rise, rounded down to 0.1.
func SaleValue(e model.SquadEntry) decimal.Decimal {
	if e.PurchaseCost == nil || !e.PurchaseCost.LessThan(e.Cost) {
		return e.Cost
	}
	steps := e.Cost.Sub(*e.PurchaseCost).Div(sellStep).Floor()
	return e.PurchaseCost.Add(steps.Mul(sellTick))
}

type swap struct {
	out       model.Player
	in        model.Player
	outPoints float64
	inPoints  float64
	impact    float64
	costDelta decimal.Decimal
}

// Suggest returns at most limit improving swaps, best first.
func (r *Recommender) Suggest(
	ctx context.Context,
	sq model.Squad,
	budget decimal.Decimal,
	cat *catalog.Catalog,
	lookup prediction.Lookup,
	limit int,
) ([]model.TransferSuggestion, error) {
	if err := squad.ValidateBudget(budget); err != nil {
		return nil, err
	}

	clubs := sq.ClubCounts()
	var (
		swaps    []swap
		resolved int
	)
	for _, p := range sq.Entries() {
		outPts, ok := lookup.Points(p.ID)
		if !ok {
			r.log.Debug(ctx, "skipping incumbent without prediction", logger.Int("player_id", p.ID))
			continue
		}
		resolved++

		available := budget.Add(SaleValue(p))
		for _, c := range cat.Affordable(p.Position, available) {
			if sq.Contains(c.ID) || !c.Status.Available() || !r.clubFits(clubs, p.Team, c.Team) {
				continue
			}
			inPts, ok := lookup.Points(c.ID)
			if !ok {
				r.log.Debug(ctx, "skipping candidate without prediction", logger.Int("player_id", c.ID))
				continue
			}
			impact := inPts - outPts
			if impact <= 0 {
				continue
			}
			swaps = append(swaps, swap{
				out:       p.Player,
				in:        c,
				outPoints: outPts,
				inPoints:  inPts,
				impact:    impact,
				costDelta: c.Cost.Sub(p.Cost),
			})
		}
	}
	if resolved == 0 {
		return nil, fmt.Errorf("suggest transfers: %w", model.ErrNoUsablePlayers)
	}

	sortSwaps(swaps)
	return pick(swaps, limit), nil
}

// clubFits reports whether bringing in a player from club in, for one from
// club out, keeps club in within the cap.
func (r *Recommender) clubFits(counts map[string]int, out, in string) bool {
	if r.maxPerClub == 0 || in == "" || in == out {
		return true
	}
	return counts[in]+1 <= r.maxPerClub
}

// sortSwaps orders by impact, then cheaper cost delta, then candidate name,
// then ids so the order is total.
func sortSwaps(swaps []swap) {
	sort.Slice(swaps, func(i, j int) bool {
		a, b := swaps[i], swaps[j]
		if a.impact != b.impact {
			return a.impact > b.impact
		}
		if cmp := a.costDelta.Cmp(b.costDelta); cmp != 0 {
			return cmp < 0
		}
		if a.in.Name != b.in.Name {
			return a.in.Name < b.in.Name
		}
		if a.in.ID != b.in.ID {
			return a.in.ID < b.in.ID
		}
		return a.out.ID < b.out.ID
	})
}

// pick walks the sorted swaps and keeps each one whose players are still
// unused.
func pick(swaps []swap, limit int) []model.TransferSuggestion {
	if limit <= 0 {
		return []model.TransferSuggestion{}
	}
	out := make([]model.TransferSuggestion, 0, min(limit, len(swaps)))
	usedOut := make(map[int]bool)
	usedIn := make(map[int]bool)
	for _, s := range swaps {
		if usedOut[s.out.ID] || usedIn[s.in.ID] {
			continue
		}
		usedOut[s.out.ID] = true
		usedIn[s.in.ID] = true
		out = append(out, model.TransferSuggestion{
			Out:       s.out,
			In:        s.in,
			OutPoints: s.outPoints,
			InPoints:  s.inPoints,
			Impact:    s.impact,
			CostDelta: s.costDelta,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}
