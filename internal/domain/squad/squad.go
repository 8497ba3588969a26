// Package squad validates inbound squads before any prediction work is done.
package squad

import (
	"fmt"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Size is the number of players in a squad.
const Size = 15

// PositionRule bounds how many players of a position a squad or starting XI holds.
type PositionRule struct {
	Position model.Position
	Min      int
	Max      int
}

// Quota is the required squad composition.
var Quota = []PositionRule{
	{Position: model.Goalkeeper, Min: 2, Max: 2},
	{Position: model.Defender, Min: 5, Max: 5},
	{Position: model.Midfielder, Min: 5, Max: 5},
	{Position: model.Forward, Min: 3, Max: 3},
}

// Formation is what the starting eleven must satisfy.
var Formation = formation()

func formation() []PositionRule {
	rules := make([]PositionRule, 0, len(model.Positions))
	for _, pos := range model.Positions {
		b := model.StartingBounds[pos]
		rules = append(rules, PositionRule{Position: pos, Min: b.Min, Max: b.Max})
	}
	return rules
}

// Validator checks squad shape.
type Validator struct {
	budgetCeiling decimal.Decimal
}

// Option configures a Validator.
type Option func(*Validator)

// WithBudgetCeiling rejects squads whose value exceeds ceiling. Zero disables the check.
func WithBudgetCeiling(ceiling decimal.Decimal) Option {
	return func(v *Validator) {
		if ceiling.IsPositive() {
			v.budgetCeiling = ceiling
		}
	}
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns a ValidationError describing the first broken rule.
func (v *Validator) Validate(s model.Squad) error {
	entries := s.Entries()
	if len(entries) != Size {
		return Invalid("team", "expected %d players, got %d", Size, len(entries))
	}

	seen := make(map[int]bool, Size)
	counts := make(map[model.Position]int, len(model.Positions))
	for i, e := range entries {
		field := fmt.Sprintf("team[%d]", i)
		if e.ID <= 0 {
			return Invalid(field, "id must be positive")
		}
		if seen[e.ID] {
			return Invalid(field, "duplicate player id %d", e.ID)
		}
		seen[e.ID] = true
		if !e.Position.Valid() {
			return Invalid(field, "unknown position")
		}
		if e.Cost.IsNegative() {
			return Invalid(field, "cost must not be negative")
		}
		counts[e.Position]++
	}
	if err := checkRules("team", counts, Quota); err != nil {
		return err
	}

	if err := validateStarters(s); err != nil {
		return err
	}

	if !v.budgetCeiling.IsZero() && s.Value().GreaterThan(v.budgetCeiling) {
		return Invalid("team", "squad value %s exceeds budget ceiling %s", s.Value().StringFixed(1), v.budgetCeiling.StringFixed(1))
	}
	return nil
}

func validateStarters(s model.Squad) error {
	starters := s.Starters()
	if len(starters) != model.StartingSlots {
		return Invalid("team", "expected %d starters, got %d", model.StartingSlots, len(starters))
	}
	counts := make(map[model.Position]int, len(model.Positions))
	for _, e := range starters {
		counts[e.Position]++
	}
	if err := checkRules("starters", counts, Formation); err != nil {
		return err
	}

	captains := 0
	for _, e := range s.Entries() {
		if !e.Captain {
			continue
		}
		captains++
		if !e.Starter {
			return Invalid("team", "captain %d is not a starter", e.ID)
		}
	}
	if captains > 1 {
		return Invalid("team", "at most one captain allowed, got %d", captains)
	}
	return nil
}

func checkRules(field string, counts map[model.Position]int, rules []PositionRule) error {
	for _, r := range rules {
		n := counts[r.Position]
		if n < r.Min || n > r.Max {
			if r.Min == r.Max {
				return Invalid(field, "expected %d %s, got %d", r.Min, r.Position.Plural(), n)
			}
			return Invalid(field, "expected %d-%d %s, got %d", r.Min, r.Max, r.Position.Plural(), n)
		}
	}
	return nil
}

// ValidateBudget rejects negative budgets.
func ValidateBudget(budget decimal.Decimal) error {
	if budget.IsNegative() {
		return fmt.Errorf("%w: budget %s is negative", ErrInvalidBudget, budget.String())
	}
	return nil
}
