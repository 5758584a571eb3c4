package vector

import "errors"

var (
	// ErrNotFound is returned when a record is not found in the vector store.
	ErrNotFound = errors.New("record not found")

	// ErrBatchMismatch is returned when the vectors, payloads, and ids given
	// to an insert are not the same length.
	ErrBatchMismatch = errors.New("vectors, payloads, and ids must be the same length")

	// ErrUnsupportedMetric is returned when a backend cannot serve the
	// configured distance metric.
	ErrUnsupportedMetric = errors.New("unsupported distance metric")

	// ErrConnection is returned when the vector store cannot be reached.
	ErrConnection = errors.New("vector store connection failed")
)
