package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"followgraph/internal/hub"
	"followgraph/pkg/models"
)

// graphSource serves one-page follower/following sets per subject and
// can fail a chosen subject. Safe under the worker's fan-out.
type graphSource struct {
	mu        sync.Mutex
	followers map[uint64][]uint64
	following map[uint64][]uint64
	failFor   uint64
}

func (s *graphSource) ListEdges(_ context.Context, req hub.ListRequest) (*models.EdgePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor != 0 && req.SubjectID == s.failFor {
		return nil, errors.New("hub unavailable")
	}

	var items []models.Edge
	if req.Direction == models.DirectionReverse {
		for _, id := range s.followers[req.SubjectID] {
			items = append(items, models.Edge{SourceID: id, TargetID: req.SubjectID, Kind: models.KindFollow})
		}
	} else {
		for _, id := range s.following[req.SubjectID] {
			items = append(items, models.Edge{SourceID: req.SubjectID, TargetID: id, Kind: models.KindFollow})
		}
	}
	return &models.EdgePage{Items: items}, nil
}

type memWriter struct {
	mu    sync.Mutex
	snaps map[uint64]*models.GraphSnapshot
	ttls  map[uint64]time.Duration
}

func newMemWriter() *memWriter {
	return &memWriter{
		snaps: make(map[uint64]*models.GraphSnapshot),
		ttls:  make(map[uint64]time.Duration),
	}
}

func (w *memWriter) Put(_ context.Context, snap *models.GraphSnapshot, ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps[snap.SubjectID] = snap
	w.ttls[snap.SubjectID] = ttl
}

func testSource() *graphSource {
	return &graphSource{
		followers: map[uint64][]uint64{
			1: {10, 11, 12},
			2: {20},
			3: {30, 31},
			4: {},
			5: {50, 51, 52, 53},
		},
		following: map[uint64][]uint64{
			1: {2, 3},
			2: {1},
			3: {},
			4: {1, 2, 3},
			5: {1},
		},
	}
}

func batchOf(ids ...uint64) models.BackfillBatch {
	return models.BackfillBatch{BatchNumber: 1, SubjectIDs: ids, TotalBatches: 1}
}

func TestWorkerWritesSnapshotsForWholeBatch(t *testing.T) {
	writer := newMemWriter()
	w := NewWorker(testSource(), writer, nil, 0)
	w.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }

	result := w.ProcessBatch(context.Background(), batchOf(1, 2, 3, 4, 5))
	if result.Succeeded != 5 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	snap := writer.snaps[1]
	if snap == nil {
		t.Fatalf("expected snapshot for subject 1")
	}
	if snap.FollowerCount != 3 || snap.FollowingCount != 2 {
		t.Fatalf("unexpected counts for subject 1: %+v", snap)
	}
	if len(snap.Followers) != 3 || len(snap.Following) != 2 {
		t.Fatalf("expected materialized lists for subject 1")
	}
	if writer.ttls[1] != 0 {
		t.Fatalf("backfill snapshots must not expire, got ttl %v", writer.ttls[1])
	}
}

func TestWorkerIsolatesPerSubjectFailures(t *testing.T) {
	src := testSource()
	src.failFor = 3
	writer := newMemWriter()
	w := NewWorker(src, writer, nil, 0)
	w.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }

	result := w.ProcessBatch(context.Background(), batchOf(1, 2, 3, 4, 5))
	if result.Succeeded != 4 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := writer.snaps[3]; ok {
		t.Fatalf("failed subject must not produce a snapshot")
	}
	for _, id := range []uint64{1, 2, 4, 5} {
		if _, ok := writer.snaps[id]; !ok {
			t.Fatalf("expected snapshot for subject %d despite sibling failure", id)
		}
	}
}

func TestWorkerRerunIsIdempotent(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	run := func() map[uint64][]byte {
		writer := newMemWriter()
		w := NewWorker(testSource(), writer, nil, 0)
		w.now = func() time.Time { return fixed }
		w.ProcessBatch(context.Background(), batchOf(1, 2, 3, 4, 5))

		out := make(map[uint64][]byte, len(writer.snaps))
		for id, snap := range writer.snaps {
			raw, err := json.Marshal(snap)
			if err != nil {
				t.Fatalf("marshal snapshot %d: %v", id, err)
			}
			out[id] = raw
		}
		return out
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("run sizes differ: %d vs %d", len(first), len(second))
	}
	for id, raw := range first {
		if string(second[id]) != string(raw) {
			t.Fatalf("snapshot for subject %d differs between runs:\n%s\n%s", id, raw, second[id])
		}
	}
}
