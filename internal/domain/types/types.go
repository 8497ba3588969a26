// Package types contains the wire shapes shared by the HTTP and MCP surfaces.
package types

import (
	"github.com/shopspring/decimal"

	"github.com/okian/fplcoach/internal/domain/model"
)

// TeamMember is one element of a submitted team.
type TeamMember struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Position        model.Position   `json:"position"`
	Team            string           `json:"team"`
	Cost            decimal.Decimal  `json:"cost"`
	PredictedPoints *float64         `json:"predicted_points,omitempty"`
	Starter         bool             `json:"starter,omitempty"`
	Captain         bool             `json:"captain,omitempty"`
	Status          string           `json:"status,omitempty"`
	PurchaseCost    *decimal.Decimal `json:"purchase_cost,omitempty"`
}

// Squad converts submitted members into a domain squad.
func Squad(members []TeamMember) model.Squad {
	entries := make([]model.SquadEntry, len(members))
	for i, m := range members {
		entries[i] = model.SquadEntry{
			Player: model.Player{
				ID:       m.ID,
				Name:     m.Name,
				Position: m.Position,
				Team:     m.Team,
				Cost:     m.Cost,
				Status:   model.Status(m.Status),
			},
			Starter:       m.Starter,
			Captain:       m.Captain,
			PurchaseCost:  m.PurchaseCost,
			DisplayPoints: m.PredictedPoints,
		}
	}
	return model.NewSquad(entries)
}

// RateRequest is the body of POST /team-score/rate.
type RateRequest struct {
	Team             []TeamMember `json:"team"`
	Gameweek         int          `json:"gameweek"`
	SubscriptionTier string       `json:"subscription_tier,omitempty"`
}

// TransferRequest is the body of POST /recommendations/transfers.
type TransferRequest struct {
	Team             []TeamMember    `json:"team"`
	Budget           decimal.Decimal `json:"budget"`
	Gameweek         int             `json:"gameweek"`
	SubscriptionTier string          `json:"subscription_tier,omitempty"`
}

// CaptainRequest is the body of POST /captain/best.
type CaptainRequest struct {
	Team             []TeamMember `json:"team"`
	Gameweek         int          `json:"gameweek"`
	SubscriptionTier string       `json:"subscription_tier,omitempty"`
}

// RateResponse is the basic rating answer.
type RateResponse struct {
	Score       float64  `json:"score"`
	Suggestions []string `json:"suggestions"`
	Rating      string   `json:"rating"`
}

// ExtendedRateResponse adds the degradation annotations.
type ExtendedRateResponse struct {
	RateResponse
	Degraded        bool    `json:"degraded"`
	Confidence      float64 `json:"confidence"`
	ExcludedPlayers []int   `json:"excluded_players"`
}

// PlayerRef is a player snapshot inside a transfer suggestion.
type PlayerRef struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Position        string   `json:"position"`
	Team            string   `json:"team"`
	Cost            float64  `json:"cost"`
	PredictedPoints *float64 `json:"predicted_points,omitempty"`
}

// TransferResponse is one transfer suggestion.
type TransferResponse struct {
	PlayerOut       PlayerRef `json:"player_out"`
	PlayerIn        PlayerRef `json:"player_in"`
	PredictedImpact float64   `json:"predicted_impact"`
	CostDelta       *float64  `json:"cost_delta,omitempty"`
}

// CaptainChoice is the single-captain answer.
type CaptainChoice struct {
	Name            string  `json:"name"`
	PredictedPoints float64 `json:"predicted_points"`
}

// RankedCaptain is one entry of a ranked captain answer.
type RankedCaptain struct {
	Rank            int     `json:"rank"`
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	PredictedPoints float64 `json:"predicted_points"`
}

// TopPlayer is one row of GET /players/top.
type TopPlayer struct {
	Rank            int     `json:"rank"`
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	Cost            float64 `json:"cost"`
	PredictedPoints float64 `json:"predicted_points"`
}

// PlayerPrediction is the answer of GET /players/{id}/prediction.
type PlayerPrediction struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Gameweek        int     `json:"gameweek"`
	Variant         string  `json:"variant"`
	PredictedPoints float64 `json:"predicted_points"`
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Score renders a team score. Extended responses carry the degradation fields.
func Score(s model.TeamScore, extended bool) any {
	base := RateResponse{Score: s.Score, Suggestions: s.Suggestions, Rating: s.Rating}
	if base.Suggestions == nil {
		base.Suggestions = []string{}
	}
	if !extended {
		return base
	}
	excluded := s.Excluded
	if excluded == nil {
		excluded = []int{}
	}
	return ExtendedRateResponse{
		RateResponse:    base,
		Degraded:        s.Degraded,
		Confidence:      s.Confidence,
		ExcludedPlayers: excluded,
	}
}

// Transfers renders transfer suggestions. Extended responses carry the cost
// delta and both predictions.
func Transfers(suggestions []model.TransferSuggestion, extended bool) []TransferResponse {
	out := make([]TransferResponse, len(suggestions))
	for i, s := range suggestions {
		out[i] = TransferResponse{
			PlayerOut:       playerRef(s.Out),
			PlayerIn:        playerRef(s.In),
			PredictedImpact: s.Impact,
		}
		if extended {
			outPts, inPts := s.OutPoints, s.InPoints
			delta := s.CostDelta.InexactFloat64()
			out[i].PlayerOut.PredictedPoints = &outPts
			out[i].PlayerIn.PredictedPoints = &inPts
			out[i].CostDelta = &delta
		}
	}
	return out
}

// Captains renders captain picks: a single object when limit is 1, otherwise
// a ranked array.
func Captains(picks []model.CaptainPick, limit int) any {
	if limit == 1 && len(picks) > 0 {
		return CaptainChoice{Name: picks[0].Player.Name, PredictedPoints: picks[0].PredictedPoints}
	}
	out := make([]RankedCaptain, len(picks))
	for i, p := range picks {
		out[i] = RankedCaptain{Rank: p.Rank, ID: p.Player.ID, Name: p.Player.Name, PredictedPoints: p.PredictedPoints}
	}
	return out
}

// Top renders one ranked catalog player.
func Top(rank int, p model.Player, points float64) TopPlayer {
	return TopPlayer{
		Rank:            rank,
		ID:              p.ID,
		Name:            p.Name,
		Position:        p.Position.String(),
		Team:            p.Team,
		Cost:            p.Cost.InexactFloat64(),
		PredictedPoints: points,
	}
}

func playerRef(p model.Player) PlayerRef {
	return PlayerRef{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position.String(),
		Team:     p.Team,
		Cost:     p.Cost.InexactFloat64(),
	}
}
