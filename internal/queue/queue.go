// Package queue is a durable work queue over a Redis list. Jobs are
// moved to a pending list while a handler runs, so a crashed worker
// leaves its job recoverable: delivery is at-least-once and consumers
// must be idempotent.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"followgraph/internal/logger"
)

// Config configures the Redis work queue.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Handler processes one dequeued payload. A non-nil error puts the
// payload back on the queue for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Queue is a Redis list-backed job queue with a pending list for
// crash recovery.
type Queue struct {
	client       *redis.Client
	key          string
	pendingKey   string
	blockTimeout time.Duration
}

// New creates a Redis work queue.
func New(cfg Config) (*Queue, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("queue key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis queue: %w", err)
	}

	return &Queue{
		client:       client,
		key:          cfg.Key,
		pendingKey:   cfg.Key + ":pending",
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Enqueue appends one job payload.
func (q *Queue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Length returns the number of queued (not pending) jobs.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// RecoverPending moves jobs abandoned by a crashed consumer back onto
// the queue. Call once at process start, before Consume.
func (q *Queue) RecoverPending(ctx context.Context) (int64, error) {
	var moved int64
	for {
		err := q.client.LMove(ctx, q.pendingKey, q.key, "RIGHT", "LEFT").Err()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover pending jobs: %w", err)
		}
		moved++
	}
}

// Consume runs concurrency goroutines that pop jobs and invoke the
// handler until the context is cancelled. Blocks until all consumers
// have stopped.
func (q *Queue) Consume(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.consumeLoop(ctx, handler)
		}()
	}
	wg.Wait()
}

func (q *Queue) consumeLoop(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := q.client.BLMove(ctx, q.key, q.pendingKey, "LEFT", "RIGHT", q.blockTimeout).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop queue job: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := handler(ctx, []byte(payload)); err != nil {
			logger.Errorf("Job handler failed, requeueing: %v", err)
			q.requeue(payload)
			continue
		}
		q.ack(payload)
	}
}

// ack removes a completed job from the pending list. Uses a fresh
// context so cancellation cannot strand a finished job.
func (q *Queue) ack(payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.LRem(ctx, q.pendingKey, 1, payload).Err(); err != nil {
		logger.Warnf("Failed to ack queue job: %v", err)
	}
}

func (q *Queue) requeue(payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := q.client.Pipeline()
	pipe.LRem(ctx, q.pendingKey, 1, payload)
	pipe.RPush(ctx, q.key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnf("Failed to requeue job, left on pending list: %v", err)
	}
}

// Close closes queue resources.
func (q *Queue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
