package smoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/okian/fplcoach/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrInvariantViolated is returned when any response broke a documented invariant.
var ErrInvariantViolated = errors.New("invariant violated")

// Run executes a complete smoke run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := newStats()

	logger.Get().Info(ctx, "starting fplcoach smoke run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("squads", config.Squads),
		logger.Int("workers", config.Workers),
		logger.Int("gameweek", config.Gameweek),
		logger.String("tier", config.Tier),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	client := NewHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch the player pool
	pool, err := fetchPool(ctx, client, config)
	if err != nil {
		return stats, fmt.Errorf("player pool retrieval failed: %w", err)
	}

	// Step 3: Generate squads
	squads, err := generateSquads(ctx, config, pool, stats)
	if err != nil {
		return stats, fmt.Errorf("squad generation failed: %w", err)
	}

	// Step 4: Submit squads concurrently
	results := submitSquads(ctx, client, config, squads, stats)

	// Step 5: Verify results
	verifyResults(ctx, client, config, squads, results, stats)

	// Step 6: Save squads to file
	if config.OutputFile != "" {
		if err := saveSquadsToFile(ctx, config.OutputFile, squads); err != nil {
			logger.Get().Warn(ctx, "failed to save squads to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if len(stats.Violations) > 0 {
		return stats, fmt.Errorf("%w: %d violations", ErrInvariantViolated, len(stats.Violations))
	}
	logger.Get().Info(ctx, "smoke run completed successfully")
	return stats, nil
}

// saveSquadsToFile writes the generated squads as a JSON array.
func saveSquadsToFile(ctx context.Context, filename string, squads [][]Member) error {
	if len(squads) == 0 {
		return fmt.Errorf("no squads to save")
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(squads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal squads: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "squads saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs per-route statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	routes := make([]string, 0, len(stats.Endpoints))
	for r := range stats.Endpoints {
		routes = append(routes, r)
	}
	sort.Strings(routes)

	for _, route := range routes {
		ep := stats.Endpoints[route]
		var successRate float64
		if ep.Requests > 0 {
			successRate = float64(ep.Successful) / float64(ep.Requests) * PercentageMultiplier
		}
		p50, p95 := latencyQuantiles(ep.Latencies)
		logger.Get().Info(ctx, "route statistics",
			logger.String("route", route),
			logger.Int("requests", ep.Requests),
			logger.Int("successful", ep.Successful),
			logger.Int("clientErrors", ep.ClientError),
			logger.Int("serverErrors", ep.ServerError),
			logger.Int("failed", ep.Failed),
			logger.Float64("successRate", successRate),
			logger.Float64("p50Ms", p50),
			logger.Float64("p95Ms", p95))
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("squadsGenerated", stats.SquadsGenerated),
		logger.Int("violations", len(stats.Violations)),
		logger.String("duration", stats.Duration.String()))
}
