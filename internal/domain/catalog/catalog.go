// Package catalog holds the universe of known players that transfer
// candidates are drawn from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Sentinel kinds for catalog errors.
var (
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrEmptyCatalog   = errors.New("catalog not loaded")
)

// Catalog is an immutable, indexed set of players.
type Catalog struct {
	players []model.Player
	byID    map[int]model.Player
	byPos   map[model.Position][]model.Player
}

// New indexes players. Ids must be unique and positions valid.
func New(players []model.Player) (*Catalog, error) {
	c := &Catalog{
		players: make([]model.Player, len(players)),
		byID:    make(map[int]model.Player, len(players)),
		byPos:   make(map[model.Position][]model.Player, len(model.Positions)),
	}
	copy(c.players, players)
	for _, p := range c.players {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate player id %d", ErrInvalidCatalog, p.ID)
		}
		if !p.Position.Valid() {
			return nil, fmt.Errorf("%w: player %d has no position", ErrInvalidCatalog, p.ID)
		}
		if p.Cost.IsNegative() {
			return nil, fmt.Errorf("%w: player %d has a negative cost", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = p
		c.byPos[p.Position] = append(c.byPos[p.Position], p)
	}
	sort.Slice(c.players, func(i, j int) bool { return c.players[i].ID < c.players[j].ID })
	for _, list := range c.byPos {
		sort.Slice(list, func(i, j int) bool {
			if cmp := list[i].Cost.Cmp(list[j].Cost); cmp != 0 {
				return cmp < 0
			}
			return list[i].ID < list[j].ID
		})
	}
	return c, nil
}

// Len returns the number of players.
func (c *Catalog) Len() int { return len(c.players) }

// Get returns the player with id.
func (c *Catalog) Get(id int) (model.Player, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns every player ordered by id.
func (c *Catalog) All() []model.Player {
	out := make([]model.Player, len(c.players))
	copy(out, c.players)
	return out
}

// IDs returns every player id in ascending order.
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.players))
	for i, p := range c.players {
		ids[i] = p.ID
	}
	return ids
}

// ByPosition returns the players at pos ordered by cost then id.
func (c *Catalog) ByPosition(pos model.Position) []model.Player {
	list := c.byPos[pos]
	out := make([]model.Player, len(list))
	copy(out, list)
	return out
}

// Affordable returns the players at pos costing at most maxCost, cheapest first.
func (c *Catalog) Affordable(pos model.Position, maxCost decimal.Decimal) []model.Player {
	list := c.byPos[pos]
	n := sort.Search(len(list), func(i int) bool { return list[i].Cost.GreaterThan(maxCost) })
	out := make([]model.Player, n)
	copy(out, list[:n])
	return out
}

// Source loads a catalog from somewhere.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Store publishes the active catalog. Swaps replace the whole catalog.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a store holding c, which may be nil.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	if c != nil {
		s.current.Store(c)
	}
	return s
}

// Current returns the active catalog.
func (s *Store) Current() (*Catalog, error) {
	c := s.current.Load()
	if c == nil {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Swap installs c as the active catalog.
func (s *Store) Swap(c *Catalog) {
	if c != nil {
		s.current.Store(c)
	}
}

// Reload loads from src and installs the result.
func (s *Store) Reload(ctx context.Context, src Source) (*Catalog, error) {
	c, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload catalog: %w", err)
	}
	s.Swap(c)
	return c, nil
}
