package backfill

import (
	"context"
	"time"

	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/metrics"
	"followgraph/internal/queue"
)

// JobQueue is the durable queue contract the pipeline needs. Delivery
// is at-least-once; batch processing is idempotent by overwrite.
type JobQueue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Consume(ctx context.Context, concurrency int, handler queue.Handler)
	RecoverPending(ctx context.Context) (int64, error)
}

// Config controls the backfill pipeline.
type Config struct {
	BatchSize int
	Workers   int
	Interval  time.Duration
	Immediate bool
}

// Pipeline is the scheduled cache-repopulation pipeline: it
// enumerates the subject population, enqueues batch jobs, and consumes
// them with a bounded worker pool.
type Pipeline struct {
	enum   hub.SubjectCounter
	queue  JobQueue
	worker *Worker
	cfg    Config
}

// NewPipeline creates a backfill pipeline.
func NewPipeline(enum hub.SubjectCounter, jobs JobQueue, worker *Worker, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 12 * time.Hour
	}
	return &Pipeline{enum: enum, queue: jobs, worker: worker, cfg: cfg}
}

// Trigger enumerates the population and enqueues one job per batch.
// Safe to call concurrently with a scheduled run: reprocessing a
// subject just overwrites its snapshot with a fresh one.
func (p *Pipeline) Trigger(ctx context.Context) error {
	total, err := p.enum.SubjectTotal(ctx)
	if err != nil {
		return err
	}

	batches := PartitionRange(total, p.cfg.BatchSize)
	for _, batch := range batches {
		payload, err := EncodeBatch(batch)
		if err != nil {
			return err
		}
		if err := p.queue.Enqueue(ctx, payload); err != nil {
			return err
		}
	}

	metrics.BackfillRunsTotal.Inc()
	logger.Infof("Backfill run enqueued: subjects=%d batches=%d batch_size=%d", total, len(batches), p.cfg.BatchSize)
	return nil
}

// Run starts the consumer pool and the schedule loop, and blocks until
// the context is cancelled. Jobs abandoned by a previous crashed run
// are recovered first.
func (p *Pipeline) Run(ctx context.Context) error {
	recovered, err := p.queue.RecoverPending(ctx)
	if err != nil {
		logger.Warnf("Failed to recover pending backfill jobs: %v", err)
	} else if recovered > 0 {
		logger.Infof("Recovered %d pending backfill jobs", recovered)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.queue.Consume(ctx, p.cfg.Workers, p.handleJob)
	}()

	if p.cfg.Immediate {
		if err := p.Trigger(ctx); err != nil {
			logger.Errorf("Immediate backfill trigger failed: %v", err)
		}
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case <-ticker.C:
			if err := p.Trigger(ctx); err != nil {
				logger.Errorf("Scheduled backfill trigger failed: %v", err)
			}
		}
	}
}

// handleJob decodes and processes one queued batch. Only a decode
// failure is terminal for a payload: it is logged and dropped rather
// than redelivered forever. Per-subject failures are summarized by the
// worker and never fail the job.
func (p *Pipeline) handleJob(ctx context.Context, payload []byte) error {
	batch, err := DecodeBatch(payload)
	if err != nil {
		logger.Errorf("Dropping malformed backfill job: %v", err)
		return nil
	}
	p.worker.ProcessBatch(ctx, batch)
	return nil
}
