package prediction

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const defaultRandomSeed = 42

// Entry is one published prediction.
type Entry struct {
	PlayerID int     `koanf:"player_id"`
	Gameweek int     `koanf:"gameweek"`
	Variant  string  `koanf:"variant"`
	Points   float64 `koanf:"points"`
}

// StaticOption configures a StaticProvider.
type StaticOption func(*StaticProvider)

// WithLatencyRange simulates the latency of a remote model server.
func WithLatencyRange(minLatency, maxLatency time.Duration) StaticOption {
	return func(s *StaticProvider) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithVariants declares model variants that exist even if they have no entries yet.
func WithVariants(variants ...string) StaticOption {
	return func(s *StaticProvider) {
		for _, v := range variants {
			s.variants[v] = true
		}
	}
}

// StaticProvider serves predictions from an in-memory table.
type StaticProvider struct {
	points   map[Key]map[int]float64
	variants map[string]bool

	minLatency time.Duration
	maxLatency time.Duration
	rngMu      sync.Mutex
	rng        *rand.Rand
}

// NewStaticProvider builds a provider from entries. A variant exists when at
// least one entry uses it or it was declared with WithVariants.
func NewStaticProvider(entries []Entry, opts ...StaticOption) *StaticProvider {
	s := &StaticProvider{
		points:   make(map[Key]map[int]float64),
		variants: make(map[string]bool),
		rng:      rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}
	for _, e := range entries {
		k := Key{Gameweek: e.Gameweek, Variant: e.Variant}
		if s.points[k] == nil {
			s.points[k] = make(map[int]float64)
		}
		s.points[k][e.PlayerID] = e.Points
		s.variants[e.Variant] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict implements Provider.
func (s *StaticProvider) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	if s.maxLatency > 0 {
		s.rngMu.Lock()
		latency := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
		s.rngMu.Unlock()
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("static predict: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if !s.variants[variant] {
		return 0, fmt.Errorf("variant %q: %w", variant, ErrModelUnavailable)
	}
	p, ok := s.points[Key{Gameweek: gameweek, Variant: variant}][playerID]
	if !ok {
		return 0, fmt.Errorf("player %d gameweek %d: %w", playerID, gameweek, ErrPlayerNotFound)
	}
	return p, nil
}
