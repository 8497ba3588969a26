package smoke

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

// ErrPoolTooSmall is returned when the player pool cannot fill a legal squad.
var ErrPoolTooSmall = errors.New("player pool too small for a legal squad")

// maxPerClub mirrors the service default; generated squads never break it.
const maxPerClub = 3

// Pool holds the candidate players per position.
type Pool map[model.Position][]types.TopPlayer

// Generator builds random legal squads from a pool.
type Generator struct {
	pool Pool
	rng  *rand.Rand
}

// NewGenerator creates a Generator. The same seed and pool yield the same squads.
func NewGenerator(pool Pool, seed uint64) *Generator {
	return &Generator{
		pool: pool,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // test data only
	}
}

// Squad returns one legal fifteen-man squad with a 1-4-4-2 starting eleven
// and the first starting forward as captain.
func (g *Generator) Squad() ([]Member, error) {
	clubs := make(map[string]int)
	members := make([]Member, 0, squad.Size)
	for _, rule := range squad.Quota {
		picked, err := g.pick(rule.Position, rule.Min, clubs)
		if err != nil {
			return nil, err
		}
		members = append(members, picked...)
	}

	starters := map[model.Position]int{
		model.Goalkeeper: 1,
		model.Defender:   4,
		model.Midfielder: 4,
		model.Forward:    2,
	}
	captainSet := false
	for i := range members {
		pos, _ := model.ParsePosition(members[i].Position)
		if starters[pos] == 0 {
			continue
		}
		starters[pos]--
		members[i].Starter = true
		if pos == model.Forward && !captainSet {
			members[i].Captain = true
			captainSet = true
		}
	}
	return members, nil
}

func (g *Generator) pick(pos model.Position, n int, clubs map[string]int) ([]Member, error) {
	candidates := g.pool[pos]
	order := g.rng.Perm(len(candidates))
	out := make([]Member, 0, n)
	for _, idx := range order {
		if len(out) == n {
			break
		}
		p := candidates[idx]
		if clubs[p.Team] >= maxPerClub {
			continue
		}
		clubs[p.Team]++
		out = append(out, Member{
			ID:       p.ID,
			Name:     p.Name,
			Position: pos.String(),
			Team:     p.Team,
			Cost:     p.Cost,
		})
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: %s needs %d, found %d", ErrPoolTooSmall, pos, n, len(out))
	}
	return out, nil
}

// generateSquads creates config.Squads squads.
func generateSquads(ctx context.Context, config *Config, pool Pool, stats *Stats) ([][]Member, error) {
	logger.Get().Info(ctx, "generating squads", logger.Int("squads", config.Squads))

	gen := NewGenerator(pool, config.Seed)
	squads := make([][]Member, 0, config.Squads)
	for i := 0; i < config.Squads; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during squad generation: %w", err)
		}
		s, err := gen.Squad()
		if err != nil {
			return nil, fmt.Errorf("failed to generate squad %d: %w", i, err)
		}
		squads = append(squads, s)
	}

	stats.SquadsGenerated = len(squads)
	logger.Get().Info(ctx, "generated squads successfully", logger.Int("count", len(squads)))
	return squads, nil
}
