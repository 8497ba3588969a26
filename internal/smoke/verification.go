package smoke

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

// checkRate returns the invariant violations in one rating.
func checkRate(r types.RateResponse) []string {
	var out []string
	if r.Score < 0 || r.Score > 100 {
		out = append(out, fmt.Sprintf("score %.2f outside [0,100]", r.Score))
	}
	if want := model.RatingLabel(r.Score); r.Rating != want {
		out = append(out, fmt.Sprintf("rating %q does not match score %.2f (want %q)", r.Rating, r.Score, want))
	}
	if r.Suggestions == nil {
		out = append(out, "suggestions missing")
	}
	return out
}

// checkTransfers returns the invariant violations in one suggestion list.
func checkTransfers(ts []types.TransferResponse) []string {
	var out []string
	for i, t := range ts {
		if t.PredictedImpact <= 0 {
			out = append(out, fmt.Sprintf("transfer %d has non-positive impact %.2f", i, t.PredictedImpact))
		}
		if t.PlayerIn.Position != t.PlayerOut.Position {
			out = append(out, fmt.Sprintf("transfer %d swaps %s for %s", i, t.PlayerOut.Position, t.PlayerIn.Position))
		}
		if i > 0 && t.PredictedImpact > ts[i-1].PredictedImpact {
			out = append(out, fmt.Sprintf("transfer %d out of order", i))
		}
	}
	return out
}

// verifyResults checks every response and that rating is repeatable.
func verifyResults(ctx context.Context, client *HTTPClient, config *Config, squads [][]Member, results []squadResult, stats *Stats) {
	logger.Get().Info(ctx, "verifying results", logger.Int("results", len(results)))

	for _, res := range results {
		if res.rate != nil {
			for _, v := range checkRate(*res.rate) {
				stats.Violations = append(stats.Violations, fmt.Sprintf("squad %d: %s", res.index, v))
			}
		}
		for _, v := range checkTransfers(res.transfers) {
			stats.Violations = append(stats.Violations, fmt.Sprintf("squad %d: %s", res.index, v))
		}
	}

	for _, res := range results {
		if res.rate == nil {
			continue
		}
		var again types.RateResponse
		req := SquadRequest{Team: squads[res.index], Gameweek: config.Gameweek, Tier: config.Tier}
		if outcome, err := client.call(ctx, routeRate, req, &again); outcome != outcomeSuccess {
			logger.Get().Warn(ctx, "repeat rating failed", logger.Error(err))
			break
		}
		if again.Score != res.rate.Score || again.Rating != res.rate.Rating {
			stats.Violations = append(stats.Violations,
				fmt.Sprintf("squad %d: repeat rating %.2f/%s differs from %.2f/%s",
					res.index, again.Score, again.Rating, res.rate.Score, res.rate.Rating))
		}
		break
	}

	if len(stats.Violations) == 0 {
		logger.Get().Info(ctx, "all responses satisfied the invariants")
		return
	}
	for _, v := range stats.Violations {
		logger.Get().Warn(ctx, "invariant violated", logger.String("detail", v))
	}
}

// latencyQuantiles returns the p50 and p95 latency in milliseconds.
func latencyQuantiles(latencies []time.Duration) (p50, p95 float64) {
	if len(latencies) == 0 {
		return 0, 0
	}
	ms := make([]float64, len(latencies))
	for i, l := range latencies {
		ms[i] = float64(l) / float64(time.Millisecond)
	}
	sort.Float64s(ms)
	return stat.Quantile(0.5, stat.Empirical, ms, nil), stat.Quantile(0.95, stat.Empirical, ms, nil)
}
