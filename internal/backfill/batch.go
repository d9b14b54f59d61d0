// Package backfill repopulates the graph cache for the whole subject
// population on a schedule: enumerate, batch, enqueue, process.
package backfill

import (
	"encoding/json"
	"fmt"

	"followgraph/pkg/models"
)

// PartitionRange splits the dense identity range [1..total] into
// batches of batchSize ids. Produces ceil(total/batchSize) batches
// covering the range with no gaps or overlaps.
func PartitionRange(total uint64, batchSize int) []models.BackfillBatch {
	if total == 0 || batchSize <= 0 {
		return nil
	}

	totalBatches := int((total + uint64(batchSize) - 1) / uint64(batchSize))
	batches := make([]models.BackfillBatch, 0, totalBatches)

	for n := 0; n < totalBatches; n++ {
		start := uint64(n)*uint64(batchSize) + 1
		end := start + uint64(batchSize) - 1
		if end > total {
			end = total
		}
		ids := make([]uint64, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
		batches = append(batches, models.BackfillBatch{
			BatchNumber:  n + 1,
			SubjectIDs:   ids,
			TotalBatches: totalBatches,
		})
	}
	return batches
}

// EncodeBatch serializes a batch for the work queue.
func EncodeBatch(batch models.BackfillBatch) ([]byte, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode backfill batch %d: %w", batch.BatchNumber, err)
	}
	return payload, nil
}

// DecodeBatch deserializes a queued batch payload.
func DecodeBatch(payload []byte) (models.BackfillBatch, error) {
	var batch models.BackfillBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return models.BackfillBatch{}, fmt.Errorf("decode backfill batch: %w", err)
	}
	if len(batch.SubjectIDs) == 0 {
		return models.BackfillBatch{}, fmt.Errorf("backfill batch %d has no subject ids", batch.BatchNumber)
	}
	return batch, nil
}
