package backfill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"followgraph/internal/count"
	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/metrics"
	"followgraph/pkg/models"
)

// SnapshotWriter is the cache write contract the worker needs.
type SnapshotWriter interface {
	Put(ctx context.Context, snap *models.GraphSnapshot, ttl time.Duration)
}

// BatchResult summarizes one processed batch. Partial per-subject
// failures do not fail the batch; they are counted here and logged.
type BatchResult struct {
	BatchNumber  int
	TotalBatches int
	Succeeded    int
	Failed       int
	Duration     time.Duration
}

// Worker computes authoritative snapshots for queued batches. Every
// subject in a batch is processed concurrently; the snapshot write is
// an idempotent overwrite, so redelivered batches are safe to rerun.
type Worker struct {
	strategies *count.Strategies
	cache      SnapshotWriter
	now        func() time.Time
}

// NewWorker creates a backfill worker. The limiter, if non-nil, is
// shared admission control over all upstream calls the worker makes;
// pageSize is the upstream page-size hint, zero for the default.
func NewWorker(source hub.EdgeSource, cache SnapshotWriter, limiter *rate.Limiter, pageSize int) *Worker {
	return &Worker{
		strategies: count.NewStrategies(Throttled(source, limiter), pageSize),
		cache:      cache,
		now:        time.Now,
	}
}

// ProcessBatch processes every subject id in the batch concurrently
// and reports a success/failure summary. A per-subject failure never
// aborts the rest of the batch.
func (w *Worker) ProcessBatch(ctx context.Context, batch models.BackfillBatch) BatchResult {
	start := w.now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, failed := 0, 0

	for _, id := range batch.SubjectIDs {
		wg.Add(1)
		go func(subjectID uint64) {
			defer wg.Done()
			if err := w.processSubject(ctx, subjectID); err != nil {
				logger.Warnf("Backfill failed for subject %d in batch %d: %v", subjectID, batch.BatchNumber, err)
				metrics.BackfillSubjectsTotal.WithLabelValues("failed").Inc()
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			metrics.BackfillSubjectsTotal.WithLabelValues("ok").Inc()
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	metrics.BackfillBatchesTotal.Inc()
	result := BatchResult{
		BatchNumber:  batch.BatchNumber,
		TotalBatches: batch.TotalBatches,
		Succeeded:    succeeded,
		Failed:       failed,
		Duration:     w.now().Sub(start),
	}
	logger.Infof("Backfill batch %d/%d done: ok=%d failed=%d in %s",
		result.BatchNumber, result.TotalBatches, result.Succeeded, result.Failed, result.Duration)
	return result
}

// processSubject runs unbounded exhaustive pagination over both edge
// directions and overwrites the subject's snapshot. The backfill pass
// is authoritative, so an inexact count (upstream failure mid-stream)
// is a failure here, not a degradation.
func (w *Worker) processSubject(ctx context.Context, subjectID uint64) error {
	followerIDs, followers := w.strategies.Collect(ctx, listRequest(subjectID, models.DirectionReverse), count.Limits{})
	if !followers.Exact {
		return fmt.Errorf("follower count incomplete at %d", followers.Count)
	}

	followingIDs, following := w.strategies.Collect(ctx, listRequest(subjectID, models.DirectionForward), count.Limits{})
	if !following.Exact {
		return fmt.Errorf("following count incomplete at %d", following.Count)
	}

	w.cache.Put(ctx, &models.GraphSnapshot{
		SubjectID:      subjectID,
		FollowerCount:  followers.Count,
		FollowingCount: following.Count,
		Followers:      followerIDs,
		Following:      followingIDs,
		LastUpdatedAt:  w.now().UTC(),
	}, 0)
	return nil
}

func listRequest(subjectID uint64, direction models.Direction) hub.ListRequest {
	return hub.ListRequest{
		SubjectID: subjectID,
		Kind:      models.KindFollow,
		Direction: direction,
	}
}
