// Package tier maps subscription tiers onto the behavioural parameters the
// recommendation components consume.
package tier

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is a subscription level.
type Tier string

// Known tiers, lowest first.
const (
	Basic   Tier = "basic"
	Premium Tier = "premium"
	Elite   Tier = "elite"
)

// Ordered lists the tiers from lowest to highest.
var Ordered = []Tier{Basic, Premium, Elite}

// Sentinel kinds for tier errors.
var (
	ErrUnknownTier  = errors.New("unknown subscription tier")
	ErrInvalidTable = errors.New("invalid tier table")
)

// Parse resolves a tier name. The empty string means Basic.
func Parse(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case "", Basic:
		return Basic, nil
	case Premium:
		return Premium, nil
	case Elite:
		return Elite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Policy holds the resolved parameters for one tier.
type Policy struct {
	TransferSuggestionLimit int    `koanf:"transfer_suggestion_limit"`
	CaptainPickLimit        int    `koanf:"captain_pick_limit"`
	ModelVariant            string `koanf:"model_variant"`
	ExtendedFields          bool   `koanf:"extended_fields"`
}

// Table is the single lookup from tier to policy.
type Table struct {
	policies map[Tier]Policy
}

// DefaultPolicies returns the built-in policy set.
func DefaultPolicies() map[Tier]Policy {
	return map[Tier]Policy{
		Basic:   {TransferSuggestionLimit: 3, CaptainPickLimit: 2, ModelVariant: "basic", ExtendedFields: false},
		Premium: {TransferSuggestionLimit: 5, CaptainPickLimit: 3, ModelVariant: "premium", ExtendedFields: true},
		Elite:   {TransferSuggestionLimit: 10, CaptainPickLimit: 5, ModelVariant: "elite", ExtendedFields: true},
	}
}

// Default returns the table built from DefaultPolicies.
func Default() *Table {
	t, _ := NewTable(DefaultPolicies())
	return t
}

// NewTable validates and copies policies. Every tier must be present, limits
// must be positive and must not shrink from one tier to the next.
func NewTable(policies map[Tier]Policy) (*Table, error) {
	cp := make(map[Tier]Policy, len(Ordered))
	var prev *Policy
	for _, t := range Ordered {
		p, ok := policies[t]
		if !ok {
			return nil, fmt.Errorf("%w: missing tier %s", ErrInvalidTable, t)
		}
		if p.TransferSuggestionLimit < 1 || p.CaptainPickLimit < 1 {
			return nil, fmt.Errorf("%w: tier %s limits must be positive", ErrInvalidTable, t)
		}
		if strings.TrimSpace(p.ModelVariant) == "" {
			return nil, fmt.Errorf("%w: tier %s has no model variant", ErrInvalidTable, t)
		}
		if prev != nil && (p.TransferSuggestionLimit < prev.TransferSuggestionLimit || p.CaptainPickLimit < prev.CaptainPickLimit) {
			return nil, fmt.Errorf("%w: tier %s limits are below the previous tier", ErrInvalidTable, t)
		}
		cp[t] = p
		prev = &p
	}
	return &Table{policies: cp}, nil
}

// Resolve returns the policy for t.
func (tb *Table) Resolve(t Tier) (Policy, error) {
	p, ok := tb.policies[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return p, nil
}

// Variants returns the distinct model variants in tier order.
func (tb *Table) Variants() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range Ordered {
		v := tb.policies[t].ModelVariant
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
