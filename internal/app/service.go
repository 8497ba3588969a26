// Package service orchestrates the recommendation engine. It validates
// requests, resolves predictions through the shared snapshot cache and the
// lookup worker pool, and hands immutable prediction tables to the scorer,
// the transfer recommender and the captain selector.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/fplcoach/internal/adapters/mq/queue"
	workerpool "github.com/okian/fplcoach/internal/adapters/mq/worker"
	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/internal/domain/scoring"
	"github.com/okian/fplcoach/internal/domain/squad"
	"github.com/okian/fplcoach/internal/domain/tier"
	"github.com/okian/fplcoach/internal/domain/transfer"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/okian/fplcoach/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName            = "github.com/okian/fplcoach/internal/app"
	defaultQueueSize      = 1024
	defaultRetryBudget    = 8
	defaultMaxGameweek    = 38
	defaultMaxPerClub     = 3
	defaultTopPlayers     = 10
	defaultMaxTopPlayers  = 50
	defaultCallTimeout    = 500 * time.Millisecond
	defaultSnapshotMaxAge = time.Hour
	defaultRefreshCron    = "0 */15 * * * *"
)

// Service implements the API dependencies for the recommendation engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	provider    prediction.Provider
	cache       *prediction.Cache
	catalogs    *catalog.Store
	catalogSrc  catalog.Source
	tiers       *tier.Table
	validator   *squad.Validator
	scorer      *scoring.Scorer
	recommender *transfer.Recommender
	lookupQueue *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	scheduler   *cron.Cron
	tracer      trace.Tracer

	// Configuration
	workerCount    int
	queueSize      int
	callTimeout    time.Duration
	retryBudget    int
	maxGameweek    int
	maxPerClub     int
	ratingFloor    float64
	budgetCeiling  decimal.Decimal
	scorerOpts     []scoring.Option
	refreshCron    string
	snapshotMaxAge time.Duration
	maxTopPlayers  int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of lookup workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the lookup queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProvider sets the prediction source.
func WithProvider(p prediction.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithCatalog installs a fixed player catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		s.catalogs.Swap(c)
	}
}

// WithCatalogSource sets where the catalog is loaded from on start and on
// every refresh.
func WithCatalogSource(src catalog.Source) Option {
	return func(s *Service) {
		s.catalogSrc = src
	}
}

// WithTierTable replaces the default tier policies.
func WithTierTable(t *tier.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.tiers = t
		}
	}
}

// WithPredictionTimeout bounds a single prediction call.
func WithPredictionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithRetryBudget sets how many timed out lookups one request may retry.
func WithRetryBudget(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retryBudget = n
		}
	}
}

// WithMaxGameweek sets the last valid gameweek.
func WithMaxGameweek(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxGameweek = n
		}
	}
}

// WithMaxPerClub sets the per-club limit used by both the scorer advice and
// the transfer candidate filter. Zero disables it.
func WithMaxPerClub(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxPerClub = n
		}
	}
}

// WithRatingFloor sets the aggregate that maps to a score of zero.
func WithRatingFloor(points float64) Option {
	return func(s *Service) {
		s.ratingFloor = points
	}
}

// WithBudgetCeiling rejects squads worth more than ceiling. Zero disables it.
func WithBudgetCeiling(ceiling decimal.Decimal) Option {
	return func(s *Service) {
		s.budgetCeiling = ceiling
	}
}

// WithScorerOptions passes options to the team scorer.
func WithScorerOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scorerOpts = append(s.scorerOpts, opts...)
	}
}

// WithRefreshCron sets the seconds-enabled cron spec for snapshot refresh.
// An empty spec disables the scheduler.
func WithRefreshCron(spec string) Option {
	return func(s *Service) {
		s.refreshCron = spec
	}
}

// WithSnapshotMaxAge sets how long a snapshot may serve before a refresh
// drops it.
func WithSnapshotMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotMaxAge = d
		}
	}
}

// WithMaxTopPlayers caps the limit accepted by TopPlayers.
func WithMaxTopPlayers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTopPlayers = n
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSnapshotCache shares a prediction cache, mainly for tests.
func WithSnapshotCache(c *prediction.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cache:          prediction.NewCache(),
		catalogs:       catalog.NewStore(nil),
		tiers:          tier.Default(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		workerCount:    runtime.NumCPU() * 4,
		queueSize:      defaultQueueSize,
		callTimeout:    defaultCallTimeout,
		retryBudget:    defaultRetryBudget,
		maxGameweek:    defaultMaxGameweek,
		maxPerClub:     defaultMaxPerClub,
		budgetCeiling:  decimal.Zero,
		refreshCron:    defaultRefreshCron,
		snapshotMaxAge: defaultSnapshotMaxAge,
		maxTopPlayers:  defaultMaxTopPlayers,
	}

	for _, opt := range opts {
		opt(s)
	}

	scorerOpts := append([]scoring.Option{scoring.WithMaxPerClub(s.maxPerClub)}, s.scorerOpts...)
	s.scorer = scoring.New(scorerOpts...)
	s.validator = squad.NewValidator(squad.WithBudgetCeiling(s.budgetCeiling))
	return s
}

// Start loads the catalog and starts the lookup workers and the refresh
// scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.provider == nil {
		return ErrNoProvider
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.recommender = transfer.New(
		transfer.WithMaxPerClub(s.maxPerClub),
		transfer.WithLogger(s.logger.Named("transfer")),
	)

	s.logger.Info(ctx, "starting recommendation service...")

	if s.catalogSrc != nil {
		c, err := s.catalogs.Reload(ctx, s.catalogSrc)
		if err != nil {
			metrics.RecordCatalogReload("error")
			return fmt.Errorf("start service: %w", err)
		}
		metrics.RecordCatalogReload("ok")
		metrics.UpdateCatalogPlayers(c.Len())
	}
	if _, err := s.catalogs.Current(); err != nil {
		empty, _ := catalog.New(nil)
		s.catalogs.Swap(empty)
		s.logger.Warn(ctx, "no player catalog configured, transfer candidates will be empty")
	}

	s.lookupQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.lookupQueue, s.provider,
		workerpool.WithCallTimeout(s.callTimeout),
		workerpool.WithLogger(s.logger.Named("lookup")),
	)
	s.workerPool.Start(context.WithoutCancel(ctx))

	if s.refreshCron != "" {
		s.scheduler = cron.New(cron.WithSeconds())
		if _, err := s.scheduler.AddFunc(s.refreshCron, func() { s.Refresh(context.Background()) }); err != nil {
			_ = s.workerPool.Shutdown(ctx)
			return fmt.Errorf("schedule snapshot refresh %q: %w", s.refreshCron, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("retryBudget", s.retryBudget),
		logger.String("refreshCron", s.refreshCron),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping recommendation service...")

	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "recommendation service stopped")
}

// Refresh reloads the catalog and drops snapshots older than the maximum
// age. It runs on the cron schedule and can be called directly.
func (s *Service) Refresh(ctx context.Context) {
	if s.catalogSrc != nil {
		c, err := s.catalogs.Reload(ctx, s.catalogSrc)
		if err != nil {
			metrics.RecordCatalogReload("error")
			s.log().Error(ctx, "catalog reload failed", logger.Error(err))
		} else {
			metrics.RecordCatalogReload("ok")
			metrics.UpdateCatalogPlayers(c.Len())
		}
	}

	evicted := s.cache.EvictOlderThan(s.snapshotMaxAge)
	metrics.RecordSnapshotEvictions(evicted)
	metrics.UpdateSnapshotCount(s.cache.Len())
	if evicted > 0 {
		s.log().Info(ctx, "evicted prediction snapshots", logger.Int("count", evicted))
	}
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":             s.started,
		"workerCount":         s.workerCount,
		"queueSize":           s.queueSize,
		"retryBudget":         s.retryBudget,
		"predictionTimeoutMs": s.callTimeout.Milliseconds(),
		"snapshots":           s.cache.Len(),
	}

	keys := s.cache.Keys()
	snapshotKeys := make([]string, len(keys))
	for i, k := range keys {
		snapshotKeys[i] = fmt.Sprintf("%s/%d", k.Variant, k.Gameweek)
	}
	stats["snapshotKeys"] = snapshotKeys

	if c, err := s.catalogs.Current(); err == nil {
		stats["catalogPlayers"] = c.Len()
	}

	if s.started {
		queueLen := s.lookupQueue.Len()
		stats["queueLength"] = queueLen
		stats["workers"] = s.workerPool.Size()

		metrics.UpdateWorkerCount(s.workerPool.Size())
		metrics.UpdateSnapshotCount(s.cache.Len())
	}

	return stats
}
