// Package smoke drives a running fplcoach service with generated squads and
// checks every answer against the documented response invariants.
package smoke

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fplcoach/pkg/logger"
)

// Default configuration constants.
const (
	defaultSquads     = 200
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 10 * time.Second
	defaultRunTimeout = 10 * time.Minute
	defaultBudget     = 2.0
	defaultSeed       = 42
)

// NewCommand returns the smoke command.
func NewCommand() *cobra.Command {
	config := &Config{}
	var runTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Exercise a running fplcoach service with generated squads",
		Example: `  smoke --url http://localhost:9080
  smoke --squads 1000 --workers 16 --tier elite
  smoke --gameweek 5 --output squads.json --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if config.Verbose {
				_ = logger.SetLevelString("debug")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			_, err := Run(ctx, config)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	flags.IntVar(&config.Squads, "squads", defaultSquads, "Number of squads to generate and submit")
	flags.IntVar(&config.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
	flags.DurationVar(&config.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flags.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Timeout for the whole run")
	flags.IntVar(&config.Gameweek, "gameweek", 1, "Gameweek every request targets")
	flags.StringVar(&config.Tier, "tier", "basic", "Subscription tier: basic, premium or elite")
	flags.Float64Var(&config.Budget, "budget", defaultBudget, "Transfer budget in millions")
	flags.Uint64Var(&config.Seed, "seed", defaultSeed, "Seed for squad generation")
	flags.StringVar(&config.OutputFile, "output", "", "Write generated squads to this JSON file")
	flags.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")

	return cmd
}
