// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Derived values (durations, decimals, tier tables) are exposed as methods
//   so callers never convert raw fields themselves.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/fplcoach/internal/domain/tier"
)

// Prediction sources understood by the command.
const (
	SourceStatic   = "static"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
	SourceRemote   = "http"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of prediction lookup workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory lookup queue.
	QueueSize int `koanf:"queue_size"`

	// PredictionTimeoutMS bounds a single provider call.
	PredictionTimeoutMS int `koanf:"prediction_timeout_ms"`

	// PredictionRetryBudget caps timed-out lookups retried per request.
	PredictionRetryBudget int `koanf:"prediction_retry_budget"`

	// PredictionSource selects the provider: static, redis, postgres or http.
	PredictionSource string `koanf:"prediction_source"`

	// StaticLatencyMinMS and StaticLatencyMaxMS simulate model latency for the static provider.
	StaticLatencyMinMS int `koanf:"static_latency_min_ms"`
	StaticLatencyMaxMS int `koanf:"static_latency_max_ms"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// PostgresDSN is used by the postgres prediction source and, when
	// CatalogPath is empty, as the catalog source too.
	PostgresDSN string `koanf:"postgres_dsn"`

	RemoteURL string `koanf:"remote_url"`
	// RemoteRateLimit is requests per second against RemoteURL; 0 disables limiting.
	RemoteRateLimit float64 `koanf:"remote_rate_limit"`

	// CatalogPath points at a YAML or JSON player catalog.
	CatalogPath string `koanf:"catalog_path"`

	// MaxGameweek is the last gameweek of the season.
	MaxGameweek int `koanf:"max_gameweek"`

	WeakSpotFraction  float64 `koanf:"weak_spot_fraction"`
	RatingFloorPoints float64 `koanf:"rating_floor_points"`
	MaxPerClub        int     `koanf:"max_per_club"`
	MinSquadValue     float64 `koanf:"min_squad_value"`
	// BudgetCeiling rejects larger transfer budgets; 0 means unbounded.
	BudgetCeiling float64 `koanf:"budget_ceiling"`

	// SnapshotRefreshCron is a six-field cron spec; empty disables refresh.
	SnapshotRefreshCron   string `koanf:"snapshot_refresh_cron"`
	SnapshotMaxAgeMinutes int    `koanf:"snapshot_max_age_minutes"`

	// MaxTopPlayersLimit caps GET /players/top?limit.
	MaxTopPlayersLimit int `koanf:"max_top_players_limit"`

	// MCPEnabled mounts the MCP tool endpoint at /mcp.
	MCPEnabled bool `koanf:"mcp_enabled"`

	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// MetricsLatencyBucketsMS overrides the latency histogram buckets.
	MetricsLatencyBucketsMS []float64 `koanf:"metrics_latency_buckets_ms"`

	// Tiers overrides individual tier policies by name.
	Tiers map[string]tier.Policy `koanf:"tiers"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		WorkerCount:           runtime.NumCPU() * 4,
		QueueSize:             1024,
		PredictionTimeoutMS:   500,
		PredictionRetryBudget: 8,
		PredictionSource:      SourceStatic,
		StaticLatencyMinMS:    5,
		StaticLatencyMaxMS:    25,
		RedisAddr:             "localhost:6379",
		RemoteRateLimit:       50,
		MaxGameweek:           38,
		WeakSpotFraction:      0.8,
		MaxPerClub:            3,
		MinSquadValue:         90,
		SnapshotRefreshCron:   "0 */15 * * * *",
		SnapshotMaxAgeMinutes: 60,
		MaxTopPlayersLimit:    50,
		MetricsNamespace:      "fplcoach",
	}
}

// PredictionTimeout returns PredictionTimeoutMS as a duration.
func (c *Config) PredictionTimeout() time.Duration {
	return time.Duration(c.PredictionTimeoutMS) * time.Millisecond
}

// StaticLatency returns the simulated latency bounds.
func (c *Config) StaticLatency() (time.Duration, time.Duration) {
	return time.Duration(c.StaticLatencyMinMS) * time.Millisecond,
		time.Duration(c.StaticLatencyMaxMS) * time.Millisecond
}

// SnapshotMaxAge returns SnapshotMaxAgeMinutes as a duration.
func (c *Config) SnapshotMaxAge() time.Duration {
	return time.Duration(c.SnapshotMaxAgeMinutes) * time.Minute
}

func (c *Config) MinSquadValueDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinSquadValue)
}

func (c *Config) BudgetCeilingDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.BudgetCeiling)
}

// TierTable merges the configured tier overrides onto the built-in policies.
func (c *Config) TierTable() (*tier.Table, error) {
	policies := tier.DefaultPolicies()
	for name, p := range c.Tiers {
		t, err := tier.Parse(name)
		if err != nil || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: tiers: unknown tier %q", ErrInvalidConfig, name)
		}
		policies[t] = p
	}
	table, err := tier.NewTable(policies)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return table, nil
}

var metricNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive")
	case c.PredictionTimeoutMS < 1:
		return invalid("prediction_timeout_ms must be positive")
	case c.PredictionRetryBudget < 0:
		return invalid("prediction_retry_budget must not be negative")
	case c.StaticLatencyMinMS < 0 || c.StaticLatencyMaxMS < c.StaticLatencyMinMS:
		return invalid("static latency bounds must satisfy 0 <= min <= max")
	case c.MaxGameweek < 1:
		return invalid("max_gameweek must be positive")
	case c.WeakSpotFraction <= 0 || c.WeakSpotFraction > 1:
		return invalid("weak_spot_fraction must be in (0, 1]")
	case c.MaxPerClub < 0:
		return invalid("max_per_club must not be negative")
	case c.MinSquadValue < 0 || c.BudgetCeiling < 0:
		return invalid("min_squad_value and budget_ceiling must not be negative")
	case c.SnapshotMaxAgeMinutes < 0:
		return invalid("snapshot_max_age_minutes must not be negative")
	case c.MaxTopPlayersLimit < 1:
		return invalid("max_top_players_limit must be positive")
	case c.RemoteRateLimit < 0:
		return invalid("remote_rate_limit must not be negative")
	case !metricNamespacePattern.MatchString(c.MetricsNamespace):
		return invalid(fmt.Sprintf("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace))
	}

	for i, b := range c.MetricsLatencyBucketsMS {
		if b <= 0 || (i > 0 && b <= c.MetricsLatencyBucketsMS[i-1]) {
			return invalid("metrics_latency_buckets_ms must be positive and strictly increasing")
		}
	}

	switch c.PredictionSource {
	case SourceStatic:
	case SourceRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for the redis prediction source")
		}
	case SourcePostgres:
		if c.PostgresDSN == "" {
			return invalid("postgres_dsn is required for the postgres prediction source")
		}
	case SourceRemote:
		if c.RemoteURL == "" {
			return invalid("remote_url is required for the http prediction source")
		}
	default:
		return invalid(fmt.Sprintf("unknown prediction_source %q", c.PredictionSource))
	}

	if _, err := c.TierTable(); err != nil {
		return err
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
