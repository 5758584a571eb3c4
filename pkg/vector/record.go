package vector

import "fmt"

// ZipRecords assembles Records from the parallel slices drivers accept on
// Insert. vectors and ids must be the same length; payloads may be nil (all
// records get an empty payload) but when present must match too. This is
// the single place the length rule is enforced, so every driver rejects a
// ragged batch the same way.
func ZipRecords(vectors [][]float32, payloads []map[string]any, ids []string) ([]Record, error) {
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("%w: %d vectors, %d ids", ErrBatchMismatch, len(vectors), len(ids))
	}
	if payloads != nil && len(payloads) != len(vectors) {
		return nil, fmt.Errorf("%w: %d vectors, %d payloads", ErrBatchMismatch, len(vectors), len(payloads))
	}

	records := make([]Record, len(vectors))
	for i := range vectors {
		var payload map[string]any
		if payloads != nil && payloads[i] != nil {
			payload = payloads[i]
		} else {
			payload = map[string]any{}
		}
		records[i] = Record{
			ID:      ids[i],
			Vector:  vectors[i],
			Payload: payload,
		}
	}
	return records, nil
}

// Batch splits records into chunks of at most size. A size of zero or less
// yields a single batch.
func Batch(records []Record, size int) [][]Record {
	if size <= 0 || len(records) <= size {
		if len(records) == 0 {
			return nil
		}
		return [][]Record{records}
	}

	batches := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
