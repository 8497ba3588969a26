// Package worker resolves prediction lookup jobs against a provider.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/fplcoach/internal/adapters/mq/queue"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/okian/fplcoach/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultCallTimeout      = 500 * time.Millisecond
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
	Done() <-chan struct{}
	Len() int
}

// Worker resolves jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a prediction.Provider.
type InMemoryWorker struct {
	queue       Queue
	provider    prediction.Provider
	name        string
	callTimeout time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, provider prediction.Provider, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		provider:    provider,
		name:        "worker",
		callTimeout: defaultCallTimeout,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-w.queue.Done():
			return
		case job := <-jobs:
			w.process(job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process resolves one job and replies. A deadline on the call itself
// becomes prediction.ErrTimeout; a cancelled request is passed through.
func (w *InMemoryWorker) process(job queue.Job) {
	start := time.Now()
	metrics.WorkerBusy(1)
	defer func() {
		metrics.WorkerBusy(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	parent := job.Ctx
	if parent == nil {
		parent = context.Background()
	}

	res := queue.Result{PlayerID: job.PlayerID}
	if err := parent.Err(); err != nil {
		res.Err = err
		w.reply(job, res)
		return
	}

	callCtx, cancel := context.WithTimeout(parent, w.callTimeout)
	pts, err := w.provider.Predict(callCtx, job.PlayerID, job.Gameweek, job.Variant)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
	cancel()

	res.Latency = time.Since(start)
	switch {
	case err == nil:
		res.Points = pts
	case timedOut:
		res.Err = fmt.Errorf("predict player %d: %w", job.PlayerID, prediction.ErrTimeout)
	default:
		res.Err = err
	}

	metrics.RecordPredictionLookup(prediction.Outcome(res.Err), float64(res.Latency.Milliseconds()))
	if res.Err != nil && !errors.Is(res.Err, prediction.ErrPlayerNotFound) {
		w.logger.Debug(parent, "prediction lookup failed",
			logger.Int("player_id", job.PlayerID),
			logger.Int("gameweek", job.Gameweek),
			logger.String("variant", job.Variant),
			logger.Error(res.Err),
		)
	}
	w.reply(job, res)
}

func (w *InMemoryWorker) reply(job queue.Job, res queue.Result) {
	select {
	case job.Reply <- res:
	default:
		w.logger.Warn(context.Background(), "dropping lookup result, reply channel full",
			logger.Int("player_id", job.PlayerID))
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Shutdown control
	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers sharing q and provider.
// Options are applied to every worker.
func NewPool(workerCount int, q Queue, provider prediction.Provider, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, provider, workerOpts...)
	}
	pool.logger = pool.workers[0].logger

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater refreshes the queue gauges while the pool runs.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.queue.Len()
		}
	}
}

// Shutdown closes the queue, when it can be closed, and waits for every
// worker to finish its current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
