package backfill

import (
	"context"
	"testing"

	"followgraph/internal/queue"
)

type memQueue struct {
	payloads [][]byte
}

func (q *memQueue) Enqueue(_ context.Context, payload []byte) error {
	q.payloads = append(q.payloads, payload)
	return nil
}

func (q *memQueue) Consume(_ context.Context, _ int, _ queue.Handler) {}

func (q *memQueue) RecoverPending(_ context.Context) (int64, error) { return 0, nil }

type fixedEnumerator struct {
	total uint64
}

func (e fixedEnumerator) SubjectTotal(_ context.Context) (uint64, error) {
	return e.total, nil
}

func TestTriggerEnqueuesAllBatches(t *testing.T) {
	jobs := &memQueue{}
	p := NewPipeline(fixedEnumerator{total: 250}, jobs, nil, Config{BatchSize: 100})

	if err := p.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if len(jobs.payloads) != 3 {
		t.Fatalf("expected 3 enqueued batches, got %d", len(jobs.payloads))
	}

	seen := make(map[uint64]bool)
	for _, payload := range jobs.payloads {
		batch, err := DecodeBatch(payload)
		if err != nil {
			t.Fatalf("enqueued payload does not decode: %v", err)
		}
		if batch.TotalBatches != 3 {
			t.Fatalf("batch %d reports %d total batches", batch.BatchNumber, batch.TotalBatches)
		}
		for _, id := range batch.SubjectIDs {
			if seen[id] {
				t.Fatalf("id %d enqueued twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 250 {
		t.Fatalf("expected 250 ids covered, got %d", len(seen))
	}
}
