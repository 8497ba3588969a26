package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	eventqueue "github.com/okian/fplcoach/internal/adapters/mq/queue"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/pkg/logger"
	"github.com/okian/fplcoach/pkg/metrics"
)

// lookupReport summarises how one request's predictions were resolved.
type lookupReport struct {
	hits        int
	misses      int
	notFound    int
	unavailable int
	timedOut    int
	failed      int
	retries     int
}

// modelMissing reports whether nothing could be resolved because the model
// itself was missing.
func (r lookupReport) modelMissing(table prediction.Table) bool {
	return table.Len() == 0 && r.unavailable > 0
}

// resolve returns predictions for ids under key. Cached answers are used
// as-is; the rest fan out to the worker pool and are joined before resolve
// returns. A timed out lookup is retried once while the request's retry
// budget lasts and is otherwise treated as not found. Definitive answers are
// published to the shared cache unless ctx was cancelled.
func (s *Service) resolve(ctx context.Context, key prediction.Key, ids []int) (prediction.Table, lookupReport, error) {
	var report lookupReport
	points := make(map[int]float64, len(ids))

	snap := s.cache.Get(key)
	seen := make(map[int]bool, len(ids))
	var misses []int
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, found, known := snap.Resolve(id)
		switch {
		case !known:
			misses = append(misses, id)
		case found:
			points[id] = p
			report.hits++
		default:
			report.hits++
		}
	}
	report.misses = len(misses)
	metrics.RecordCacheHits(report.hits)
	metrics.RecordCacheMisses(report.misses)
	if len(misses) == 0 {
		return prediction.NewTable(points), report, nil
	}

	// At most one job per player is in flight, so len(misses) slots keep
	// workers from ever blocking on this request.
	reply := make(chan eventqueue.Result, len(misses))
	enqueue := func(id int) error {
		return s.lookupQueue.Enqueue(ctx, eventqueue.Job{
			Ctx:      ctx,
			PlayerID: id,
			Gameweek: key.Gameweek,
			Variant:  key.Variant,
			Reply:    reply,
		})
	}
	for _, id := range misses {
		if err := enqueue(id); err != nil {
			return prediction.Table{}, report, fmt.Errorf("resolve predictions: %w", err)
		}
	}

	budget := s.retryBudget
	retried := make(map[int]bool)
	var notFound []int
	fresh := make(map[int]float64, len(misses))
	for pending := len(misses); pending > 0; {
		select {
		case <-ctx.Done():
			return prediction.Table{}, report, fmt.Errorf("resolve predictions: %w", ctx.Err())
		case res := <-reply:
			pending--
			switch {
			case res.Err == nil:
				fresh[res.PlayerID] = res.Points
			case errors.Is(res.Err, prediction.ErrPlayerNotFound):
				report.notFound++
				notFound = append(notFound, res.PlayerID)
			case errors.Is(res.Err, prediction.ErrTimeout):
				if !retried[res.PlayerID] && budget > 0 {
					budget--
					retried[res.PlayerID] = true
					report.retries++
					metrics.RecordPredictionRetry()
					if err := enqueue(res.PlayerID); err != nil {
						return prediction.Table{}, report, fmt.Errorf("resolve predictions: %w", err)
					}
					pending++
					continue
				}
				if !retried[res.PlayerID] {
					metrics.RecordRetryBudgetExhausted()
				}
				report.timedOut++
			case errors.Is(res.Err, prediction.ErrModelUnavailable):
				report.unavailable++
			case ctx.Err() != nil:
				return prediction.Table{}, report, fmt.Errorf("resolve predictions: %w", ctx.Err())
			default:
				report.failed++
				s.logger.Warn(ctx, "prediction lookup failed",
					logger.Int("player_id", res.PlayerID),
					logger.Error(res.Err),
				)
			}
		}
	}

	if ctx.Err() == nil && (len(fresh) > 0 || len(notFound) > 0) {
		sort.Ints(notFound)
		s.cache.Publish(key, fresh, notFound)
		metrics.RecordSnapshotPublish()
		metrics.UpdateSnapshotCount(s.cache.Len())
	}

	for id, p := range fresh {
		points[id] = p
	}
	return prediction.NewTable(points), report, nil
}
