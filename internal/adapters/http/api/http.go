// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendationDependencies
	PlayerDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler         *HealthHandler
	statsHandler          *StatsHandler
	recommendationHandler *RecommendationHandler
	playerHandler         *PlayerHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:         NewHealthHandler(),
		statsHandler:          NewStatsHandler(statsProvider),
		recommendationHandler: NewRecommendationHandler(deps),
		playerHandler:         NewPlayerHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /team-score/rate", MetricsMiddleware(s.recommendationHandler.HandleRate, "rate"))
	mux.HandleFunc("POST /recommendations/transfers", MetricsMiddleware(s.recommendationHandler.HandleTransfers, "transfers"))
	mux.HandleFunc("POST /captain/best", MetricsMiddleware(s.recommendationHandler.HandleCaptain, "captain"))
	mux.HandleFunc("GET /players/top", MetricsMiddleware(s.playerHandler.HandleTopPlayers, "players_top"))
	mux.HandleFunc("GET /players/{id}/prediction", MetricsMiddleware(s.playerHandler.HandlePrediction, "player_prediction"))
}

// Compile-time check that the service satisfies the handler contracts.
var _ Dependencies = (*service.Service)(nil)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err, logs server-side failures and writes the error
// body.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error(), Code: code})
}
