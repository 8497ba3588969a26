package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/fplcoach/internal/domain/captain"
	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/internal/domain/tier"
	"github.com/okian/fplcoach/internal/domain/transfer"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/okian/fplcoach/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RateRequest asks for a squad rating.
type RateRequest struct {
	Squad    model.Squad
	Gameweek int
	Tier     string
}

// RateResult is a squad rating plus the policy that shaped it.
type RateResult struct {
	Score  model.TeamScore
	Policy tier.Policy
}

// TransferRequest asks for transfer suggestions.
type TransferRequest struct {
	Squad    model.Squad
	Budget   decimal.Decimal
	Gameweek int
	Tier     string
}

// TransferResult holds ranked suggestions.
type TransferResult struct {
	Suggestions []model.TransferSuggestion
	Policy      tier.Policy
}

// CaptainRequest asks for captain candidates.
type CaptainRequest struct {
	Squad    model.Squad
	Gameweek int
	Tier     string
}

// CaptainResult holds ranked captain picks.
type CaptainResult struct {
	Picks  []model.CaptainPick
	Policy tier.Policy
}

// TopPlayersRequest asks for the best predicted players. A zero Position
// means every position.
type TopPlayersRequest struct {
	Gameweek int
	Tier     string
	Position model.Position
	Limit    int
}

// RankedPlayer is one row of a TopPlayers answer.
type RankedPlayer struct {
	Rank            int
	Player          model.Player
	PredictedPoints float64
}

// TopPlayersResult holds the ranked players.
type TopPlayersResult struct {
	Players []RankedPlayer
	Policy  tier.Policy
}

// PlayerPredictionRequest asks for one player's prediction.
type PlayerPredictionRequest struct {
	PlayerID int
	Gameweek int
	Tier     string
}

// PlayerPredictionResult is a single resolved prediction.
type PlayerPredictionResult struct {
	Player          model.Player
	Gameweek        int
	Variant         string
	PredictedPoints float64
}

// operation tracks one call for tracing and metrics.
type operation struct {
	name  string
	tier  string
	span  trace.Span
	start time.Time
}

func (s *Service) begin(ctx context.Context, name string, gameweek int, rawTier string) (context.Context, *operation) {
	ctx, span := s.tracer.Start(ctx, "service."+name, trace.WithAttributes(
		attribute.Int("fpl.gameweek", gameweek),
		attribute.String("fpl.tier", rawTier),
	))
	tierLabel := "invalid"
	if t, err := tier.Parse(rawTier); err == nil {
		tierLabel = string(t)
	}
	return ctx, &operation{name: name, tier: tierLabel, span: span, start: time.Now()}
}

func (o *operation) end(err error) {
	outcome := outcomeOf(err)
	o.span.SetAttributes(attribute.String("fpl.outcome", outcome))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.End()
	metrics.RecordRecommendation(o.name, o.tier, outcome, float64(time.Since(o.start).Milliseconds()))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, squad.ErrValidation):
		return "validation"
	case errors.Is(err, ErrNoUsablePlayers):
		return "no_usable_players"
	case errors.Is(err, prediction.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, prediction.ErrPlayerNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// prepare validates the gameweek and tier and resolves the policy. It must
// run before any prediction lookup.
func (s *Service) prepare(gameweek int, rawTier string) (tier.Policy, error) {
	if !s.started {
		return tier.Policy{}, ErrNotStarted
	}
	if gameweek < 1 || gameweek > s.maxGameweek {
		return tier.Policy{}, squad.Invalid("gameweek", "must be between 1 and %d, got %d", s.maxGameweek, gameweek)
	}
	t, err := tier.Parse(rawTier)
	if err != nil {
		return tier.Policy{}, squad.Invalid("subscription_tier", "%v", err)
	}
	return s.tiers.Resolve(t)
}

// lookupTable resolves ids and turns a model that is missing for every
// player into an error.
func (s *Service) lookupTable(ctx context.Context, gameweek int, variant string, ids []int) (prediction.Table, lookupReport, error) {
	key := prediction.Key{Gameweek: gameweek, Variant: variant}
	table, report, err := s.resolve(ctx, key, ids)
	if err != nil {
		return table, report, err
	}
	if report.modelMissing(table) {
		return table, report, fmt.Errorf("%w: variant %q gameweek %d", prediction.ErrModelUnavailable, variant, gameweek)
	}
	s.logger.Debug(ctx, "predictions resolved",
		logger.String("variant", variant),
		logger.Int("gameweek", gameweek),
		logger.Int("hits", report.hits),
		logger.Int("misses", report.misses),
		logger.Int("not_found", report.notFound),
		logger.Int("timed_out", report.timedOut),
		logger.Int("retries", report.retries),
	)
	return table, report, nil
}

// Rate scores a squad against the gameweek reference built from the catalog.
func (s *Service) Rate(ctx context.Context, req RateRequest) (res RateResult, err error) {
	ctx, op := s.begin(ctx, "rate", req.Gameweek, req.Tier)
	defer func() { op.end(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, err := s.prepare(req.Gameweek, req.Tier)
	if err != nil {
		return RateResult{}, err
	}
	if err = s.validator.Validate(req.Squad); err != nil {
		return RateResult{}, err
	}
	cat, err := s.catalogs.Current()
	if err != nil {
		return RateResult{}, err
	}

	universe := league(cat, req.Squad)
	ids := make([]int, 0, len(universe))
	for _, p := range universe {
		ids = append(ids, p.ID)
	}
	table, _, err := s.lookupTable(ctx, req.Gameweek, policy.ModelVariant, ids)
	if err != nil {
		return RateResult{}, err
	}

	ref := prediction.BuildReference(universe, table, s.ratingFloor)
	score, err := s.scorer.Rate(req.Squad, table, ref)
	if err != nil {
		return RateResult{}, err
	}
	if score.Degraded {
		metrics.RecordDegraded("rate")
	}
	metrics.RecordSuggestionsReturned("rate", len(score.Suggestions))
	return RateResult{Score: score, Policy: policy}, nil
}

// league returns the catalog players plus any squad player the catalog does
// not know, ordered by id.
func league(cat *catalog.Catalog, sq model.Squad) []model.Player {
	players := cat.All()
	for _, e := range sq.Entries() {
		if _, ok := cat.Get(e.ID); !ok {
			players = append(players, e.Player)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// SuggestTransfers ranks single-player swaps for the squad.
func (s *Service) SuggestTransfers(ctx context.Context, req TransferRequest) (res TransferResult, err error) {
	ctx, op := s.begin(ctx, "transfers", req.Gameweek, req.Tier)
	defer func() { op.end(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, err := s.prepare(req.Gameweek, req.Tier)
	if err != nil {
		return TransferResult{}, err
	}
	if err = squad.ValidateBudget(req.Budget); err != nil {
		return TransferResult{}, err
	}
	if err = s.validator.Validate(req.Squad); err != nil {
		return TransferResult{}, err
	}
	cat, err := s.catalogs.Current()
	if err != nil {
		return TransferResult{}, err
	}

	ids := append(req.Squad.IDs(), candidateIDs(cat, req.Squad, req.Budget)...)
	table, _, err := s.lookupTable(ctx, req.Gameweek, policy.ModelVariant, ids)
	if err != nil {
		return TransferResult{}, err
	}

	suggestions, err := s.recommender.Suggest(ctx, req.Squad, req.Budget, cat, table, policy.TransferSuggestionLimit)
	if err != nil {
		return TransferResult{}, err
	}
	metrics.RecordSuggestionsReturned("transfers", len(suggestions))
	return TransferResult{Suggestions: suggestions, Policy: policy}, nil
}

// candidateIDs returns catalog players that at least one incumbent could be
// swapped for, so only they are looked up.
func candidateIDs(cat *catalog.Catalog, sq model.Squad, budget decimal.Decimal) []int {
	best := make(map[model.Position]decimal.Decimal)
	for _, e := range sq.Entries() {
		sale := transfer.SaleValue(e)
		if cur, ok := best[e.Position]; !ok || sale.GreaterThan(cur) {
			best[e.Position] = sale
		}
	}

	var ids []int
	for _, pos := range model.Positions {
		sale, ok := best[pos]
		if !ok {
			continue
		}
		for _, p := range cat.Affordable(pos, budget.Add(sale)) {
			if !sq.Contains(p.ID) && p.Status.Available() {
				ids = append(ids, p.ID)
			}
		}
	}
	return ids
}

// PickCaptain ranks starters as captain candidates.
func (s *Service) PickCaptain(ctx context.Context, req CaptainRequest) (res CaptainResult, err error) {
	ctx, op := s.begin(ctx, "captain", req.Gameweek, req.Tier)
	defer func() { op.end(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, err := s.prepare(req.Gameweek, req.Tier)
	if err != nil {
		return CaptainResult{}, err
	}
	if err = s.validator.Validate(req.Squad); err != nil {
		return CaptainResult{}, err
	}

	starters := req.Squad.Starters()
	ids := make([]int, len(starters))
	for i, e := range starters {
		ids[i] = e.ID
	}
	table, _, err := s.lookupTable(ctx, req.Gameweek, policy.ModelVariant, ids)
	if err != nil {
		return CaptainResult{}, err
	}

	picks, err := captain.Pick(req.Squad, table, policy.CaptainPickLimit)
	if err != nil {
		return CaptainResult{}, err
	}
	metrics.RecordSuggestionsReturned("captain", len(picks))
	return CaptainResult{Picks: picks, Policy: policy}, nil
}

// TopPlayers returns the best predicted catalog players, optionally for one
// position.
func (s *Service) TopPlayers(ctx context.Context, req TopPlayersRequest) (res TopPlayersResult, err error) {
	ctx, op := s.begin(ctx, "top_players", req.Gameweek, req.Tier)
	defer func() { op.end(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, err := s.prepare(req.Gameweek, req.Tier)
	if err != nil {
		return TopPlayersResult{}, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultTopPlayers
	}
	if limit < 1 || limit > s.maxTopPlayers {
		return TopPlayersResult{}, squad.Invalid("limit", "must be between 1 and %d, got %d", s.maxTopPlayers, req.Limit)
	}
	if req.Position != model.PositionUnknown && !req.Position.Valid() {
		return TopPlayersResult{}, squad.Invalid("position", "unknown position %d", int(req.Position))
	}
	cat, err := s.catalogs.Current()
	if err != nil {
		return TopPlayersResult{}, err
	}

	players := cat.All()
	if req.Position != model.PositionUnknown {
		players = cat.ByPosition(req.Position)
	}
	ids := make([]int, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	table, _, err := s.lookupTable(ctx, req.Gameweek, policy.ModelVariant, ids)
	if err != nil {
		return TopPlayersResult{}, err
	}

	ranked := make([]RankedPlayer, 0, len(players))
	for _, p := range players {
		if pts, ok := table.Points(p.ID); ok {
			ranked = append(ranked, RankedPlayer{Player: p, PredictedPoints: pts})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PredictedPoints != ranked[j].PredictedPoints {
			return ranked[i].PredictedPoints > ranked[j].PredictedPoints
		}
		return ranked[i].Player.ID < ranked[j].Player.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return TopPlayersResult{Players: ranked, Policy: policy}, nil
}

// PlayerPrediction resolves one catalog player's prediction.
func (s *Service) PlayerPrediction(ctx context.Context, req PlayerPredictionRequest) (res PlayerPredictionResult, err error) {
	ctx, op := s.begin(ctx, "player_prediction", req.Gameweek, req.Tier)
	defer func() { op.end(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, err := s.prepare(req.Gameweek, req.Tier)
	if err != nil {
		return PlayerPredictionResult{}, err
	}
	if req.PlayerID <= 0 {
		return PlayerPredictionResult{}, squad.Invalid("id", "must be positive, got %d", req.PlayerID)
	}
	cat, err := s.catalogs.Current()
	if err != nil {
		return PlayerPredictionResult{}, err
	}
	player, ok := cat.Get(req.PlayerID)
	if !ok {
		return PlayerPredictionResult{}, fmt.Errorf("%w: player %d", prediction.ErrPlayerNotFound, req.PlayerID)
	}

	table, _, err := s.lookupTable(ctx, req.Gameweek, policy.ModelVariant, []int{req.PlayerID})
	if err != nil {
		return PlayerPredictionResult{}, err
	}
	pts, ok := table.Points(req.PlayerID)
	if !ok {
		return PlayerPredictionResult{}, fmt.Errorf("%w: player %d gameweek %d", prediction.ErrPlayerNotFound, req.PlayerID, req.Gameweek)
	}
	return PlayerPredictionResult{
		Player:          player,
		Gameweek:        req.Gameweek,
		Variant:         policy.ModelVariant,
		PredictedPoints: pts,
	}, nil
}
