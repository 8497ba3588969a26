package api

import (
	"context"
	"net/http"

	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/types"
)

// RecommendationDependencies defines the squad recommendation operations.
type RecommendationDependencies interface {
	Rate(ctx context.Context, req service.RateRequest) (service.RateResult, error)
	SuggestTransfers(ctx context.Context, req service.TransferRequest) (service.TransferResult, error)
	PickCaptain(ctx context.Context, req service.CaptainRequest) (service.CaptainResult, error)
}

// RecommendationHandler handles the squad recommendation routes.
type RecommendationHandler struct {
	deps RecommendationDependencies
}

// NewRecommendationHandler creates a new recommendation handler.
func NewRecommendationHandler(deps RecommendationDependencies) *RecommendationHandler {
	return &RecommendationHandler{deps: deps}
}

// HandleRate handles POST /team-score/rate requests.
func (h *RecommendationHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	const op = "api.rate"
	var req types.RateRequest
	if err := decodeBody(r, w, rateSchema, &req); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	res, err := h.deps.Rate(r.Context(), service.RateRequest{
		Squad:    types.Squad(req.Team),
		Gameweek: req.Gameweek,
		Tier:     req.SubscriptionTier,
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.Score(res.Score, res.Policy.ExtendedFields))
}

// HandleTransfers handles POST /recommendations/transfers requests.
func (h *RecommendationHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	const op = "api.transfers"
	var req types.TransferRequest
	if err := decodeBody(r, w, transferSchema, &req); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	res, err := h.deps.SuggestTransfers(r.Context(), service.TransferRequest{
		Squad:    types.Squad(req.Team),
		Budget:   req.Budget,
		Gameweek: req.Gameweek,
		Tier:     req.SubscriptionTier,
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.Transfers(res.Suggestions, res.Policy.ExtendedFields))
}

// HandleCaptain handles POST /captain/best requests.
func (h *RecommendationHandler) HandleCaptain(w http.ResponseWriter, r *http.Request) {
	const op = "api.captain"
	var req types.CaptainRequest
	if err := decodeBody(r, w, captainSchema, &req); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	res, err := h.deps.PickCaptain(r.Context(), service.CaptainRequest{
		Squad:    types.Squad(req.Team),
		Gameweek: req.Gameweek,
		Tier:     req.SubscriptionTier,
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.Captains(res.Picks, res.Policy.CaptainPickLimit))
}
