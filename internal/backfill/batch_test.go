package backfill

import "testing"

func TestPartitionRangeCoversRangeExactly(t *testing.T) {
	cases := []struct {
		name        string
		total       uint64
		batchSize   int
		wantBatches int
	}{
		{"even split", 200, 100, 2},
		{"remainder batch", 250, 100, 3},
		{"single short batch", 7, 100, 1},
		{"batch size one", 3, 1, 3},
	}

	for _, tc := range cases {
		batches := PartitionRange(tc.total, tc.batchSize)
		if len(batches) != tc.wantBatches {
			t.Fatalf("%s: expected %d batches, got %d", tc.name, tc.wantBatches, len(batches))
		}

		seen := make(map[uint64]int)
		for i, batch := range batches {
			if batch.BatchNumber != i+1 {
				t.Fatalf("%s: batch %d has number %d", tc.name, i, batch.BatchNumber)
			}
			if batch.TotalBatches != tc.wantBatches {
				t.Fatalf("%s: batch %d reports %d total batches", tc.name, i, batch.TotalBatches)
			}
			if len(batch.SubjectIDs) > tc.batchSize {
				t.Fatalf("%s: batch %d has %d ids, over the batch size", tc.name, i, len(batch.SubjectIDs))
			}
			for _, id := range batch.SubjectIDs {
				seen[id]++
			}
		}

		for id := uint64(1); id <= tc.total; id++ {
			if seen[id] != 1 {
				t.Fatalf("%s: id %d covered %d times", tc.name, id, seen[id])
			}
		}
		if len(seen) != int(tc.total) {
			t.Fatalf("%s: covered %d ids, expected %d", tc.name, len(seen), tc.total)
		}
	}
}

func TestPartitionRangeEmpty(t *testing.T) {
	if got := PartitionRange(0, 100); got != nil {
		t.Fatalf("expected no batches for an empty population, got %d", len(got))
	}
	if got := PartitionRange(10, 0); got != nil {
		t.Fatalf("expected no batches for a zero batch size, got %d", len(got))
	}
}

func TestDecodeBatchRejectsEmpty(t *testing.T) {
	if _, err := DecodeBatch([]byte(`{"batch_number":1,"subject_ids":[],"total_batches":1}`)); err == nil {
		t.Fatalf("expected error for a batch with no subject ids")
	}
	if _, err := DecodeBatch([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
