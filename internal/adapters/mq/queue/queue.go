// Package queue carries prediction lookup jobs from requests to workers.
//
// The queue is a bounded channel shared by every request. Enqueue blocks
// while the queue is full, so a burst of requests is throttled by the worker
// pool instead of growing memory.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fplcoach/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job asks for one player's prediction on behalf of a request.
type Job struct {
	// Ctx is the request context. Workers skip jobs whose request is gone.
	Ctx      context.Context
	PlayerID int
	Gameweek int
	Variant  string
	// Reply must be buffered for every job of the request so a worker never
	// blocks on a request that stopped listening.
	Reply chan<- Result
}

// Result is the outcome of one Job.
type Result struct {
	PlayerID int
	Points   float64
	Err      error
	Latency  time.Duration
}

// Queue is the contract between the service and the worker pool.
type Queue interface {
	// Enqueue blocks until the job is accepted, ctx is done or the queue closes.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the channel workers read jobs from.
	Dequeue() <-chan Job

	// Done is closed when the queue is closed.
	Done() <-chan struct{}

	// Len returns the number of waiting jobs.
	Len() int

	// Close stops accepting jobs.
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	once   sync.Once
	closed chan struct{}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	// A closed queue must win over a free slot.
	select {
	case <-q.closed:
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	default:
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue player %d: %w", j.PlayerID, ctx.Err())
	case <-q.closed:
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
}

// Dequeue returns the job channel. It is never closed; watch Done instead.
func (q *InMemoryQueue) Dequeue() <-chan Job { return q.jobs }

// Done is closed by Close.
func (q *InMemoryQueue) Done() <-chan struct{} { return q.closed }

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting jobs. Calling it more than once is safe.
func (q *InMemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
