package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/internal/domain/squad/squadtest"
	"github.com/okian/fplcoach/internal/domain/tier"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

type fakeDeps struct {
	err      error
	lastRate service.RateRequest
	lastTx   service.TransferRequest
}

func (f *fakeDeps) Rate(_ context.Context, req service.RateRequest) (service.RateResult, error) {
	f.lastRate = req
	if f.err != nil {
		return service.RateResult{}, f.err
	}
	return service.RateResult{
		Score:  model.TeamScore{Score: 81, Rating: model.RatingGood, Suggestions: []string{}},
		Policy: tier.DefaultPolicies()[tier.Basic],
	}, nil
}

func (f *fakeDeps) SuggestTransfers(_ context.Context, req service.TransferRequest) (service.TransferResult, error) {
	f.lastTx = req
	if f.err != nil {
		return service.TransferResult{}, f.err
	}
	out := model.Player{ID: 13, Name: "Player 13", Position: model.Forward, Team: "C13", Cost: decimal.RequireFromString("8")}
	in := model.Player{ID: 100, Name: "Striker", Position: model.Forward, Team: "NEW", Cost: decimal.RequireFromString("12.5")}
	return service.TransferResult{
		Suggestions: []model.TransferSuggestion{{Out: out, In: in, OutPoints: 9, InPoints: 11, Impact: 2, CostDelta: decimal.RequireFromString("4.5")}},
		Policy:      tier.DefaultPolicies()[tier.Elite],
	}, nil
}

func (f *fakeDeps) PickCaptain(_ context.Context, _ service.CaptainRequest) (service.CaptainResult, error) {
	if f.err != nil {
		return service.CaptainResult{}, f.err
	}
	p := model.Player{ID: 13, Name: "Player 13"}
	return service.CaptainResult{
		Picks:  []model.CaptainPick{{Player: p, PredictedPoints: 9, Rank: 1}},
		Policy: tier.Policy{CaptainPickLimit: 1, TransferSuggestionLimit: 1, ModelVariant: "basic"},
	}, nil
}

func nopLogger() logger.Logger { return logger.FromZap(nil) }

func members() []Member {
	entries := squadtest.Entries()
	out := make([]Member, len(entries))
	for i, e := range entries {
		out[i] = Member{
			ID:       e.ID,
			Name:     e.Name,
			Position: e.Position.String(),
			Team:     e.Team,
			Cost:     e.Cost.InexactFloat64(),
			Starter:  e.Starter,
			Captain:  e.Captain,
		}
	}
	return out
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRateTeam(t *testing.T) {
	deps := &fakeDeps{}
	tl := &tools{deps: deps, log: nopLogger()}

	res, _, err := tl.rateTeam(context.Background(), nil, SquadArgs{Team: members(), Gameweek: 4})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"score":81,"suggestions":[],"rating":"Good"}`, text(t, res))

	assert.Equal(t, 4, deps.lastRate.Gameweek)
	assert.Equal(t, 15, deps.lastRate.Squad.Len())
	captain, ok := deps.lastRate.Squad.Captain()
	require.True(t, ok)
	assert.Equal(t, squadtest.FwdA, captain.ID)
}

func TestSuggestTransfers(t *testing.T) {
	deps := &fakeDeps{}
	tl := &tools{deps: deps, log: nopLogger()}

	res, _, err := tl.suggestTransfers(context.Background(), nil, TransferArgs{Team: members(), Budget: 5, Gameweek: 1, SubscriptionTier: "elite"})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var body []types.TransferResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	require.Len(t, body, 1)
	assert.Equal(t, 2.0, body[0].PredictedImpact)
	require.NotNil(t, body[0].CostDelta)
	assert.Equal(t, 4.5, *body[0].CostDelta)
	assert.True(t, deps.lastTx.Budget.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "elite", deps.lastTx.Tier)
}

func TestBestCaptain_SinglePick(t *testing.T) {
	tl := &tools{deps: &fakeDeps{}, log: nopLogger()}

	res, _, err := tl.bestCaptain(context.Background(), nil, SquadArgs{Team: members(), Gameweek: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Player 13","predicted_points":9}`, text(t, res))
}

func TestToolErrors(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		tl := &tools{deps: &fakeDeps{err: squad.Invalid("team", "must contain 15 players, got 3")}, log: nopLogger()}
		res, _, err := tl.rateTeam(context.Background(), nil, SquadArgs{Team: members()[:3], Gameweek: 1})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "must contain 15 players")
	})

	t.Run("bad position", func(t *testing.T) {
		deps := &fakeDeps{err: errors.New("not reached")}
		tl := &tools{deps: deps, log: nopLogger()}
		team := members()
		team[0].Position = "keeper"
		res, _, err := tl.bestCaptain(context.Background(), nil, SquadArgs{Team: team, Gameweek: 1})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "team[0]")
	})
}

func TestServer_InMemory(t *testing.T) {
	ctx := context.Background()
	server := NewServer(&fakeDeps{}, "test", nil)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = ss.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	list, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{ToolBestCaptain, ToolRateTeam, ToolSuggestTransfers}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolBestCaptain,
		Arguments: map[string]any{"team": members(), "gameweek": 1},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"predicted_points":9`)
}
