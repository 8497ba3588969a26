// Package mcpserver exposes the recommendation operations as MCP tools over the
// streamable HTTP transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

// Tool names.
const (
	ToolRateTeam         = "rate_team"
	ToolSuggestTransfers = "suggest_transfers"
	ToolBestCaptain      = "best_captain"
)

// Dependencies defines the operations the tools call.
type Dependencies interface {
	Rate(ctx context.Context, req service.RateRequest) (service.RateResult, error)
	SuggestTransfers(ctx context.Context, req service.TransferRequest) (service.TransferResult, error)
	PickCaptain(ctx context.Context, req service.CaptainRequest) (service.CaptainResult, error)
}

// Member is one squad element as tool arguments carry it.
type Member struct {
	ID              int      `json:"id" jsonschema:"Player id"`
	Name            string   `json:"name" jsonschema:"Player name"`
	Position        string   `json:"position" jsonschema:"GK, DEF, MID or FWD"`
	Team            string   `json:"team" jsonschema:"Club short name"`
	Cost            float64  `json:"cost" jsonschema:"Current price in millions"`
	PredictedPoints *float64 `json:"predicted_points,omitempty" jsonschema:"Display only"`
	Starter         bool     `json:"starter,omitempty" jsonschema:"Starting eleven; a legal eleven including the captain is picked when none is flagged"`
	Captain         bool     `json:"captain,omitempty"`
	Status          string   `json:"status,omitempty" jsonschema:"Availability code a, d, i, s, u or n"`
	PurchaseCost    *float64 `json:"purchase_cost,omitempty" jsonschema:"Price paid, used for sale value"`
}

// SquadArgs are the arguments of rate_team and best_captain.
type SquadArgs struct {
	Team             []Member `json:"team" jsonschema:"The 15 player squad"`
	Gameweek         int      `json:"gameweek" jsonschema:"Gameweek 1..38"`
	SubscriptionTier string   `json:"subscription_tier,omitempty" jsonschema:"basic, premium or elite (default basic)"`
}

// TransferArgs are the arguments of suggest_transfers.
type TransferArgs struct {
	Team             []Member `json:"team" jsonschema:"The 15 player squad"`
	Budget           float64  `json:"budget" jsonschema:"Money in the bank in millions"`
	Gameweek         int      `json:"gameweek" jsonschema:"Gameweek 1..38"`
	SubscriptionTier string   `json:"subscription_tier,omitempty" jsonschema:"basic, premium or elite (default basic)"`
}

type tools struct {
	deps Dependencies
	log  logger.Logger
}

// NewServer builds an MCP server with the recommendation tools registered.
func NewServer(deps Dependencies, version string, log logger.Logger) *mcp.Server {
	if log == nil {
		log = logger.FromZap(nil)
	}
	t := &tools{deps: deps, log: log.Named("mcp")}

	server := mcp.NewServer(&mcp.Implementation{Name: "fplcoach", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolRateTeam,
		Description: "Rate a 15 player squad from 0 to 100 with improvement suggestions",
	}, t.rateTeam)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSuggestTransfers,
		Description: "Suggest single-swap transfers that raise predicted points within budget",
	}, t.suggestTransfers)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolBestCaptain,
		Description: "Rank the starting eleven by predicted points for the captaincy",
	}, t.bestCaptain)

	return server
}

// Handler serves server over streamable HTTP with plain JSON responses.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func (t *tools) rateTeam(ctx context.Context, _ *mcp.CallToolRequest, args SquadArgs) (*mcp.CallToolResult, any, error) {
	sq, err := squadOf(args.Team)
	if err != nil {
		return toolError(err), nil, nil
	}
	res, err := t.deps.Rate(ctx, service.RateRequest{Squad: sq, Gameweek: args.Gameweek, Tier: args.SubscriptionTier})
	if err != nil {
		return t.fail(ctx, ToolRateTeam, err), nil, nil
	}
	return toolJSON(types.Score(res.Score, res.Policy.ExtendedFields))
}

func (t *tools) suggestTransfers(ctx context.Context, _ *mcp.CallToolRequest, args TransferArgs) (*mcp.CallToolResult, any, error) {
	sq, err := squadOf(args.Team)
	if err != nil {
		return toolError(err), nil, nil
	}
	res, err := t.deps.SuggestTransfers(ctx, service.TransferRequest{
		Squad:    sq,
		Budget:   decimal.NewFromFloat(args.Budget),
		Gameweek: args.Gameweek,
		Tier:     args.SubscriptionTier,
	})
	if err != nil {
		return t.fail(ctx, ToolSuggestTransfers, err), nil, nil
	}
	return toolJSON(types.Transfers(res.Suggestions, res.Policy.ExtendedFields))
}

func (t *tools) bestCaptain(ctx context.Context, _ *mcp.CallToolRequest, args SquadArgs) (*mcp.CallToolResult, any, error) {
	sq, err := squadOf(args.Team)
	if err != nil {
		return toolError(err), nil, nil
	}
	res, err := t.deps.PickCaptain(ctx, service.CaptainRequest{Squad: sq, Gameweek: args.Gameweek, Tier: args.SubscriptionTier})
	if err != nil {
		return t.fail(ctx, ToolBestCaptain, err), nil, nil
	}
	return toolJSON(types.Captains(res.Picks, res.Policy.CaptainPickLimit))
}

func (t *tools) fail(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	t.log.Debug(ctx, "tool call failed", logger.String("tool", tool), logger.Error(err))
	return toolError(err)
}

func squadOf(members []Member) (model.Squad, error) {
	out := make([]types.TeamMember, len(members))
	for i, m := range members {
		pos, err := model.ParsePosition(m.Position)
		if err != nil {
			return model.Squad{}, fmt.Errorf("team[%d]: %w", i, err)
		}
		out[i] = types.TeamMember{
			ID:              m.ID,
			Name:            m.Name,
			Position:        pos,
			Team:            m.Team,
			Cost:            decimal.NewFromFloat(m.Cost),
			PredictedPoints: m.PredictedPoints,
			Starter:         m.Starter,
			Captain:         m.Captain,
			Status:          m.Status,
		}
		if m.PurchaseCost != nil {
			pc := decimal.NewFromFloat(*m.PurchaseCost)
			out[i].PurchaseCost = &pc
		}
	}
	return types.Squad(out), nil
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
