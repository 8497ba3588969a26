package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fplcoach/internal/adapters/http/api"
	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/internal/domain/squad/squadtest"
	"github.com/okian/fplcoach/internal/domain/tier"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

func init() {
	logger.InitNop()
}

// mockDependencies answers every operation from canned values.
type mockDependencies struct {
	calls int32
	err   error

	rate      service.RateResult
	transfers service.TransferResult
	captain   service.CaptainResult
	top       service.TopPlayersResult
	single    service.PlayerPredictionResult

	lastTop service.TopPlayersRequest
}

func (m *mockDependencies) Rate(_ context.Context, _ service.RateRequest) (service.RateResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.rate, m.err
}

func (m *mockDependencies) SuggestTransfers(_ context.Context, _ service.TransferRequest) (service.TransferResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.transfers, m.err
}

func (m *mockDependencies) PickCaptain(_ context.Context, _ service.CaptainRequest) (service.CaptainResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.captain, m.err
}

func (m *mockDependencies) TopPlayers(_ context.Context, req service.TopPlayersRequest) (service.TopPlayersResult, error) {
	atomic.AddInt32(&m.calls, 1)
	m.lastTop = req
	return m.top, m.err
}

func (m *mockDependencies) PlayerPrediction(_ context.Context, _ service.PlayerPredictionRequest) (service.PlayerPredictionResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.single, m.err
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps api.Dependencies) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return api.RequestIDMiddleware(mux)
}

// teamBody renders the default squad the way a client would send it.
func teamBody() []map[string]any {
	entries := squadtest.Entries()
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{
			"id":       e.ID,
			"name":     e.Name,
			"position": e.Position.String(),
			"team":     e.Team,
			"cost":     e.Cost.InexactFloat64(),
			"starter":  e.Starter,
			"captain":  e.Captain,
		}
	}
	return out
}

func post(h http.Handler, path string, body any) *httptest.ResponseRecorder {
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func decodeError(w *httptest.ResponseRecorder) types.ErrorResponse {
	var e types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		h := newMux(&mockDependencies{})

		Convey("Then the health endpoint serves metrics", func() {
			w := get(h, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := get(h, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then every response carries a request id", func() {
			w := get(h, "/stats")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("Then an incoming request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})

		Convey("Then the wrong method is rejected", func() {
			w := get(h, "/team-score/rate")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestRecommendationHandler_Rate(t *testing.T) {
	Convey("Given a rate handler", t, func() {
		deps := &mockDependencies{
			rate: service.RateResult{
				Score:  model.TeamScore{Score: 64.2, Rating: model.RatingNeedsImprovement, Suggestions: []string{"Strengthen your forwards"}, Degraded: true, Confidence: 0.91, Excluded: []int{3}},
				Policy: tier.DefaultPolicies()[tier.Basic],
			},
		}
		h := newMux(deps)

		Convey("When a valid basic request is posted", func() {
			w := post(h, "/team-score/rate", map[string]any{"team": teamBody(), "gameweek": 5})

			Convey("Then the basic fields are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["score"], ShouldEqual, 64.2)
				So(body["rating"], ShouldEqual, model.RatingNeedsImprovement)
				So(body, ShouldNotContainKey, "degraded")
			})
		})

		Convey("When the tier exposes extended fields", func() {
			deps.rate.Policy = tier.DefaultPolicies()[tier.Premium]
			w := post(h, "/team-score/rate", map[string]any{"team": teamBody(), "gameweek": 5, "subscription_tier": "premium"})

			Convey("Then the degradation annotations are included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"degraded":true`)
				So(w.Body.String(), ShouldContainSubstring, `"excluded_players":[3]`)
			})
		})

		Convey("When the gameweek is missing", func() {
			w := post(h, "/team-score/rate", map[string]any{"team": teamBody()})

			Convey("Then the schema rejects it before the service runs", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "validation")
				So(decodeError(w).Error, ShouldContainSubstring, "gameweek")
				So(atomic.LoadInt32(&deps.calls), ShouldEqual, 0)
			})
		})

		Convey("When a team member has a negative cost", func() {
			team := teamBody()
			team[0]["cost"] = -1
			w := post(h, "/team-score/rate", map[string]any{"team": team, "gameweek": 5})

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(atomic.LoadInt32(&deps.calls), ShouldEqual, 0)
			})
		})

		Convey("When the body is not JSON", func() {
			w := post(h, "/team-score/rate", "{not json")

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "validation")
			})
		})

		Convey("When the position cannot be parsed", func() {
			team := teamBody()
			team[0]["position"] = "keeper"
			w := post(h, "/team-score/rate", map[string]any{"team": team, "gameweek": 5})

			Convey("Then decoding fails with a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(atomic.LoadInt32(&deps.calls), ShouldEqual, 0)
			})
		})
	})
}

func TestRecommendationHandler_Errors(t *testing.T) {
	Convey("Given a service that fails", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{squad.Invalid("team", "must contain 15 players, got 14"), http.StatusBadRequest, "validation"},
			{squad.ErrInvalidBudget, http.StatusBadRequest, "validation"},
			{fmt.Errorf("rate: %w", model.ErrNoUsablePlayers), http.StatusUnprocessableEntity, "no_usable_players"},
			{prediction.ErrModelUnavailable, http.StatusServiceUnavailable, "model_unavailable"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			Convey("When the error is "+tc.err.Error(), func() {
				h := newMux(&mockDependencies{err: tc.err})
				w := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1})

				Convey("Then it maps onto its status and code", func() {
					So(w.Code, ShouldEqual, tc.status)
					e := decodeError(w)
					So(e.Code, ShouldEqual, tc.code)
					So(e.Error, ShouldContainSubstring, tc.err.Error())
				})
			})
		}
	})
}

func TestRecommendationHandler_TransfersAndCaptain(t *testing.T) {
	Convey("Given canned suggestions and picks", t, func() {
		out := model.Player{ID: 13, Name: "Player 13", Position: model.Forward, Team: "C13", Cost: decimal.RequireFromString("8.0")}
		in := model.Player{ID: 100, Name: "Striker", Position: model.Forward, Team: "NEW", Cost: decimal.RequireFromString("12.5")}
		deps := &mockDependencies{
			transfers: service.TransferResult{
				Suggestions: []model.TransferSuggestion{{Out: out, In: in, OutPoints: 9, InPoints: 11, Impact: 2, CostDelta: decimal.RequireFromString("4.5")}},
				Policy:      tier.DefaultPolicies()[tier.Basic],
			},
			captain: service.CaptainResult{
				Picks:  []model.CaptainPick{{Player: out, PredictedPoints: 9, Rank: 1}, {Player: in, PredictedPoints: 4, Rank: 2}},
				Policy: tier.DefaultPolicies()[tier.Basic],
			},
		}
		h := newMux(deps)

		Convey("When transfers are requested", func() {
			w := post(h, "/recommendations/transfers", map[string]any{"team": teamBody(), "budget": 5.0, "gameweek": 1, "subscription_tier": "basic"})

			Convey("Then the suggestion array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body []types.TransferResponse
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldHaveLength, 1)
				So(body[0].PlayerOut.Name, ShouldEqual, "Player 13")
				So(body[0].PlayerIn.Name, ShouldEqual, "Striker")
				So(body[0].PredictedImpact, ShouldEqual, 2.0)
				So(body[0].CostDelta, ShouldBeNil)
			})
		})

		Convey("When the budget is missing", func() {
			w := post(h, "/recommendations/transfers", map[string]any{"team": teamBody(), "gameweek": 1})

			Convey("Then the schema rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Error, ShouldContainSubstring, "budget")
			})
		})

		Convey("When the captain limit is one", func() {
			deps.captain.Policy.CaptainPickLimit = 1
			deps.captain.Picks = deps.captain.Picks[:1]
			w := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1})

			Convey("Then a single object is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body types.CaptainChoice
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldResemble, types.CaptainChoice{Name: "Player 13", PredictedPoints: 9})
			})
		})

		Convey("When the captain limit is above one", func() {
			w := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1})

			Convey("Then a ranked array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body []types.RankedCaptain
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldHaveLength, 2)
				So(body[0].Rank, ShouldEqual, 1)
				So(body[0].ID, ShouldEqual, 13)
			})
		})
	})
}

func TestPlayerHandler(t *testing.T) {
	Convey("Given a player handler", t, func() {
		p := model.Player{ID: 7, Name: "Saka", Position: model.Midfielder, Team: "ARS", Cost: decimal.RequireFromString("8.5")}
		deps := &mockDependencies{
			top:    service.TopPlayersResult{Players: []service.RankedPlayer{{Rank: 1, Player: p, PredictedPoints: 7.2}}},
			single: service.PlayerPredictionResult{Player: p, Gameweek: 3, Variant: "basic", PredictedPoints: 7.2},
		}
		h := newMux(deps)

		Convey("When the top players are requested", func() {
			w := get(h, "/players/top?gameweek=3&position=MID&limit=5&tier=elite")

			Convey("Then the query reaches the service and rows come back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastTop, ShouldResemble, service.TopPlayersRequest{Gameweek: 3, Tier: "elite", Position: model.Midfielder, Limit: 5})
				var body []types.TopPlayer
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldResemble, []types.TopPlayer{{Rank: 1, ID: 7, Name: "Saka", Position: "MID", Team: "ARS", Cost: 8.5, PredictedPoints: 7.2}})
			})
		})

		Convey("When the gameweek is missing", func() {
			w := get(h, "/players/top")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(atomic.LoadInt32(&deps.calls), ShouldEqual, 0)
			})
		})

		Convey("When the position is unknown", func() {
			w := get(h, "/players/top?gameweek=3&position=SWEEPER")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When one player's prediction is requested", func() {
			w := get(h, "/players/7/prediction?gameweek=3")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body types.PlayerPrediction
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldResemble, types.PlayerPrediction{ID: 7, Name: "Saka", Gameweek: 3, Variant: "basic", PredictedPoints: 7.2})
			})
		})

		Convey("When the player id is not a number", func() {
			w := get(h, "/players/abc/prediction?gameweek=3")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the player is unknown", func() {
			deps.err = fmt.Errorf("%w: player 99", prediction.ErrPlayerNotFound)
			w := get(h, "/players/99/prediction?gameweek=3")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "not_found")
			})
		})
	})
}

func TestAPI_WithService(t *testing.T) {
	Convey("Given the real service behind the API", t, func() {
		var calls int32
		players := make([]model.Player, 0, 16)
		pts := map[int]float64{}
		for _, e := range squadtest.Entries() {
			players = append(players, e.Player)
			pts[e.ID] = 4
		}
		pts[squadtest.FwdA] = 9
		players = append(players, model.Player{ID: 100, Name: "Striker", Position: model.Forward, Team: "NEW", Cost: decimal.RequireFromString("12.5")})
		pts[100] = 11
		cat, err := catalog.New(players)
		So(err, ShouldBeNil)

		provider := prediction.ProviderFunc(func(_ context.Context, id, _ int, _ string) (float64, error) {
			atomic.AddInt32(&calls, 1)
			if p, ok := pts[id]; ok {
				return p, nil
			}
			return 0, prediction.ErrPlayerNotFound
		})
		svc := service.New(
			service.WithProvider(provider),
			service.WithCatalog(cat),
			service.WithWorkerCount(4),
			service.WithRefreshCron(""),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		h := newMux(svc)

		Convey("When the budget is negative", func() {
			w := post(h, "/recommendations/transfers", map[string]any{"team": teamBody(), "budget": -1, "gameweek": 1, "subscription_tier": "basic"})

			Convey("Then it fails validation before any lookup", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "validation")
				So(atomic.LoadInt32(&calls), ShouldEqual, 0)
			})
		})

		Convey("When the tier is unknown", func() {
			w := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1, "subscription_tier": "gold"})

			Convey("Then it fails validation", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Error, ShouldContainSubstring, "subscription_tier")
			})
		})

		Convey("When the scenario squad asks for transfers", func() {
			w := post(h, "/recommendations/transfers", map[string]any{"team": teamBody(), "budget": 5.0, "gameweek": 1, "subscription_tier": "basic"})

			Convey("Then one suggestion with impact 2 comes back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body []types.TransferResponse
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body, ShouldHaveLength, 1)
				So(body[0].PlayerIn.ID, ShouldEqual, 100)
				So(body[0].PredictedImpact, ShouldEqual, 2.0)
			})
		})

		Convey("When a grouped squad arrives without starter flags", func() {
			team := teamBody()
			for _, m := range team {
				delete(m, "starter")
			}
			rate := post(h, "/team-score/rate", map[string]any{"team": team, "gameweek": 1, "subscription_tier": "basic"})
			captain := post(h, "/captain/best", map[string]any{"team": team, "gameweek": 1, "subscription_tier": "basic"})

			Convey("Then a legal eleven is defaulted and both calls succeed", func() {
				So(rate.Code, ShouldEqual, http.StatusOK)
				var score types.RateResponse
				So(json.Unmarshal(rate.Body.Bytes(), &score), ShouldBeNil)
				So(score.Score, ShouldBeGreaterThanOrEqualTo, 0.0)

				So(captain.Code, ShouldEqual, http.StatusOK)
				var picks []types.RankedCaptain
				So(json.Unmarshal(captain.Body.Bytes(), &picks), ShouldBeNil)
				So(picks[0].ID, ShouldEqual, squadtest.FwdA)
			})
		})

		Convey("When the best captain is requested twice", func() {
			first := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1, "subscription_tier": "basic"})
			second := post(h, "/captain/best", map[string]any{"team": teamBody(), "gameweek": 1, "subscription_tier": "basic"})

			Convey("Then the answers are byte identical and led by the nine point forward", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Body.String(), ShouldEqual, first.Body.String())
				var body []types.RankedCaptain
				So(json.Unmarshal(first.Body.Bytes(), &body), ShouldBeNil)
				So(body[0].ID, ShouldEqual, squadtest.FwdA)
				So(body[0].PredictedPoints, ShouldEqual, 9.0)
			})
		})
	})
}
