package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/types"
)

// PlayerDependencies defines the catalog read operations.
type PlayerDependencies interface {
	TopPlayers(ctx context.Context, req service.TopPlayersRequest) (service.TopPlayersResult, error)
	PlayerPrediction(ctx context.Context, req service.PlayerPredictionRequest) (service.PlayerPredictionResult, error)
}

// PlayerHandler handles player read requests.
type PlayerHandler struct {
	deps PlayerDependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// HandleTopPlayers handles GET /players/top?gameweek=N&position=P&tier=T&limit=L requests.
func (h *PlayerHandler) HandleTopPlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.top_players"
	q := r.URL.Query()

	gameweek, err := intParam("gameweek", q.Get("gameweek"), true)
	if err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := intParam("limit", q.Get("limit"), false)
	if err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	pos := model.PositionUnknown
	if raw := q.Get("position"); raw != "" {
		if pos, err = model.ParsePosition(raw); err != nil {
			writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	res, err := h.deps.TopPlayers(r.Context(), service.TopPlayersRequest{
		Gameweek: gameweek,
		Tier:     q.Get("tier"),
		Position: pos,
		Limit:    limit,
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	out := make([]types.TopPlayer, len(res.Players))
	for i, p := range res.Players {
		out[i] = types.Top(p.Rank, p.Player, p.PredictedPoints)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePrediction handles GET /players/{id}/prediction?gameweek=N&tier=T requests.
func (h *PlayerHandler) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	const op = "api.player_prediction"
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeError(r.Context(), w, NewKind(op, ErrBadRequest))
		return
	}
	gameweek, err := intParam("gameweek", r.URL.Query().Get("gameweek"), true)
	if err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.PlayerPrediction(r.Context(), service.PlayerPredictionRequest{
		PlayerID: id,
		Gameweek: gameweek,
		Tier:     r.URL.Query().Get("tier"),
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.PlayerPrediction{
		ID:              res.Player.ID,
		Name:            res.Player.Name,
		Gameweek:        res.Gameweek,
		Variant:         res.Variant,
		PredictedPoints: res.PredictedPoints,
	})
}

// intParam parses an integer query value. An absent optional value is 0.
func intParam(name, raw string, required bool) (int, error) {
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%s: required", name)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", name, raw)
	}
	return n, nil
}
