// Package prediction defines the contract for per-player point predictions,
// the immutable tables handed to recommendation components and the shared
// snapshot cache.
package prediction

import "context"

// Provider returns predicted points for one player in one gameweek from the
// model behind variant. Implementations must be deterministic for a fixed
// model snapshot and return ErrPlayerNotFound or ErrModelUnavailable (wrapped)
// when they cannot answer.
type Provider interface {
	Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, playerID, gameweek int, variant string) (float64, error)

// Predict implements Provider.
func (f ProviderFunc) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	return f(ctx, playerID, gameweek, variant)
}

// Lookup is the read side used by scoring components.
type Lookup interface {
	// Points returns the prediction for id and whether one was resolved.
	Points(id int) (float64, bool)
}

// Table is an immutable set of resolved predictions for one request.
type Table struct {
	points map[int]float64
}

// NewTable copies points into a Table.
func NewTable(points map[int]float64) Table {
	cp := make(map[int]float64, len(points))
	for id, p := range points {
		cp[id] = p
	}
	return Table{points: cp}
}

// Points implements Lookup.
func (t Table) Points(id int) (float64, bool) {
	p, ok := t.points[id]
	return p, ok
}

// Len returns the number of resolved players.
func (t Table) Len() int { return len(t.points) }
