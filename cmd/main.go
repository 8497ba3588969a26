package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/fplcoach/internal/adapters/http/api"
	"github.com/okian/fplcoach/internal/adapters/http/swagger"
	"github.com/okian/fplcoach/internal/adapters/mcpserver"
	service "github.com/okian/fplcoach/internal/app"
	"github.com/okian/fplcoach/internal/config"
	"github.com/okian/fplcoach/internal/domain/scoring"
	"github.com/okian/fplcoach/internal/domain/tier"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/okian/fplcoach/pkg/metrics"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "fplcoach exited", logger.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1) //nolint:gocritic // deferred calls are flushed above
	}
}

func run(ctx context.Context, loggerInstance logger.Logger) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	configureMetrics(cfg)

	tiers, err := cfg.TierTable()
	if err != nil {
		return err
	}

	src, err := buildSources(ctx, cfg, tiers.Variants())
	if err != nil {
		return err
	}
	defer src.Close(ctx, loggerInstance)

	svc := service.New(newServiceOptions(cfg, tiers, src, loggerInstance)...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("prediction_source", cfg.PredictionSource),
			logger.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// configureMetrics applies the configured metric namespace and latency buckets.
// It runs before anything records a metric.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithLatencyBuckets(cfg.MetricsLatencyBucketsMS),
	)
}

// newServiceOptions maps configuration onto service options.
func newServiceOptions(cfg *config.Config, tiers *tier.Table, src *sources, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log),
		service.WithProvider(src.provider),
		service.WithCatalogSource(src.catalog),
		service.WithTierTable(tiers),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithPredictionTimeout(cfg.PredictionTimeout()),
		service.WithRetryBudget(cfg.PredictionRetryBudget),
		service.WithMaxGameweek(cfg.MaxGameweek),
		service.WithMaxPerClub(cfg.MaxPerClub),
		service.WithRatingFloor(cfg.RatingFloorPoints),
		service.WithBudgetCeiling(cfg.BudgetCeilingDecimal()),
		service.WithScorerOptions(
			scoring.WithWeakSpotFraction(cfg.WeakSpotFraction),
			scoring.WithMaxPerClub(cfg.MaxPerClub),
			scoring.WithMinSquadValue(cfg.MinSquadValueDecimal()),
		),
		service.WithRefreshCron(cfg.SnapshotRefreshCron),
		service.WithSnapshotMaxAge(cfg.SnapshotMaxAge()),
		service.WithMaxTopPlayers(cfg.MaxTopPlayersLimit),
	}
}

// newHandler builds the HTTP routes: docs, business API and optionally MCP.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	if cfg.MCPEnabled {
		mux.Handle("/mcp", mcpserver.Handler(mcpserver.NewServer(svc, version, log)))
	}

	return api.RequestIDMiddleware(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the worker and snapshot gauges itself.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
