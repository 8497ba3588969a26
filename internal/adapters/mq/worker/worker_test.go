package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/fplcoach/internal/adapters/mq/queue"
	worker "github.com/okian/fplcoach/internal/adapters/mq/worker"
	"github.com/okian/fplcoach/internal/domain/prediction"
	logging "github.com/okian/fplcoach/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	done chan struct{}
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		jobs: make(chan queue.Job, 16),
		done: make(chan struct{}),
	}
}

func (mq *mockQueue) Dequeue() <-chan queue.Job { return mq.jobs }
func (mq *mockQueue) Done() <-chan struct{}     { return mq.done }
func (mq *mockQueue) Len() int                  { return len(mq.jobs) }
func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.done) })
	return nil
}

// mockProvider answers from a fixed table and can be told to stall.
type mockProvider struct {
	points map[int]float64
	stall  map[int]bool
	calls  atomic.Int64
}

func (m *mockProvider) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	m.calls.Add(1)
	if m.stall[playerID] {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if variant == "missing" {
		return 0, prediction.ErrModelUnavailable
	}
	pts, ok := m.points[playerID]
	if !ok {
		return 0, prediction.ErrPlayerNotFound
	}
	return pts, nil
}

func submit(ctx context.Context, mq *mockQueue, id int, variant string, reply chan queue.Result) {
	mq.jobs <- queue.Job{Ctx: ctx, PlayerID: id, Gameweek: 1, Variant: variant, Reply: reply}
}

func await(reply chan queue.Result) queue.Result {
	select {
	case r := <-reply:
		return r
	case <-time.After(time.Second):
		return queue.Result{Err: errors.New("no reply")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		logging.InitNop()

		mq := newMockQueue()
		provider := &mockProvider{
			points: map[int]float64{1: 6.5},
			stall:  map[int]bool{9: true},
		}
		w := worker.NewInMemoryWorker(mq, provider,
			worker.WithName("test-worker"),
			worker.WithCallTimeout(20*time.Millisecond),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		reply := make(chan queue.Result, 4)

		convey.Convey("When a known player is looked up", func() {
			submit(context.Background(), mq, 1, "basic", reply)
			res := await(reply)

			convey.Convey("Then the points are returned", func() {
				convey.So(res.Err, convey.ShouldBeNil)
				convey.So(res.PlayerID, convey.ShouldEqual, 1)
				convey.So(res.Points, convey.ShouldEqual, 6.5)
			})
		})

		convey.Convey("When the player is unknown", func() {
			submit(context.Background(), mq, 2, "basic", reply)
			res := await(reply)

			convey.Convey("Then not found is reported", func() {
				convey.So(errors.Is(res.Err, prediction.ErrPlayerNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the model variant is missing", func() {
			submit(context.Background(), mq, 1, "missing", reply)
			res := await(reply)

			convey.Convey("Then model unavailable is reported", func() {
				convey.So(errors.Is(res.Err, prediction.ErrModelUnavailable), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the provider stalls past the call timeout", func() {
			submit(context.Background(), mq, 9, "basic", reply)
			res := await(reply)

			convey.Convey("Then a timeout is reported", func() {
				convey.So(errors.Is(res.Err, prediction.ErrTimeout), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the request is already cancelled", func() {
			reqCtx, reqCancel := context.WithCancel(context.Background())
			reqCancel()
			before := provider.calls.Load()
			submit(reqCtx, mq, 1, "basic", reply)
			res := await(reply)

			convey.Convey("Then the provider is not called", func() {
				convey.So(errors.Is(res.Err, context.Canceled), convey.ShouldBeTrue)
				convey.So(provider.calls.Load(), convey.ShouldEqual, before)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a started worker pool", t, func() {
		logging.InitNop()

		mq := newMockQueue()
		points := map[int]float64{}
		for id := 1; id <= 10; id++ {
			points[id] = float64(id)
		}
		provider := &mockProvider{points: points}

		pool := worker.NewPool(3, mq, provider)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When several jobs share one reply channel", func() {
			reply := make(chan queue.Result, 10)
			for id := 1; id <= 10; id++ {
				submit(context.Background(), mq, id, "basic", reply)
			}
			got := map[int]float64{}
			for i := 0; i < 10; i++ {
				res := await(reply)
				convey.So(res.Err, convey.ShouldBeNil)
				got[res.PlayerID] = res.Points
			}

			convey.Convey("Then every job is answered once", func() {
				convey.So(got, convey.ShouldResemble, points)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer shutdownCancel()

			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then it should shutdown gracefully and close the queue", func() {
				convey.So(err, convey.ShouldBeNil)
				select {
				case <-mq.Done():
					convey.So(true, convey.ShouldBeTrue)
				default:
					convey.So("queue still open", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		logging.InitNop()
		pool := worker.NewPool(0, newMockQueue(), &mockProvider{})

		convey.Convey("Then it is sized from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
