// Package vector defines the uniform contract spool exposes over vector
// store backends. Every backend under pkg/vector implements Driver so
// callers can swap providers through configuration alone.
package vector

import "context"

// Record is a stored item: an id, its embedding, and arbitrary metadata.
type Record struct {
	// ID is the caller-assigned identifier for the record.
	ID string

	// Vector is the embedding for the record.
	Vector []float32

	// Payload holds arbitrary metadata attached to the record.
	Payload map[string]any
}

// SearchResult is a record returned from a query, carrying the backend's
// similarity score. Higher scores are more similar. Results produced by
// lookups rather than searches (Get, List) carry a zero Score.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo describes a collection as reported by the backend.
// Fields the backend does not report are left at their zero values, and
// anything backend-specific is carried opaquely in Extra.
type CollectionInfo struct {
	Name       string
	Dimensions int
	Metric     Metric
	Count      int64
	Status     string
	Extra      map[string]any
}

// Driver is the uniform surface over a vector store backend. Implementations
// translate these operations to the backend's native API and pass backend
// failures through wrapped, never reclassified or retried.
//
// EnsureCollection is best-effort check-then-create: it checks for the
// collection and creates it only when absent. The check and the create are
// separate backend calls, so a concurrent creator can win the race; the
// resulting backend error is returned as-is.
type Driver interface {
	// EnsureCollection creates the configured collection if it does not
	// already exist. Calling it when the collection exists is not an error.
	EnsureCollection(ctx context.Context) error

	// Insert stores records assembled from parallel slices. vectors,
	// payloads, and ids must be the same length (nil payloads are treated
	// as empty); a length mismatch fails with ErrBatchMismatch before
	// anything is written. Large batches are split per the driver's
	// configured batch size.
	Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error

	// Search returns up to limit records most similar to vector, in the
	// backend's ranking order (descending score). filters restrict results
	// to records whose payload matches every key/value pair. query carries
	// the original text for backends with hybrid search; most ignore it.
	Search(ctx context.Context, query string, vector []float32, limit int, filters map[string]any) ([]SearchResult, error)

	// Update overwrites parts of an existing record. Passing a nil vector
	// or nil payload updates only what was provided where the backend has
	// a native partial operation; otherwise the provided fields are handed
	// to the backend's upsert untouched and the outcome is whatever the
	// backend does with a partial write.
	Update(ctx context.Context, id string, vector []float32, payload map[string]any) error

	// Get retrieves a single record by id. A missing record returns
	// ErrNotFound, checked with errors.Is.
	Get(ctx context.Context, id string) (*SearchResult, error)

	// Delete removes a record by id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns up to limit records whose payload matches filters, with
	// no meaningful ordering. limit <= 0 applies the driver's default.
	List(ctx context.Context, filters map[string]any, limit int) ([]SearchResult, error)

	// ListCollections returns the names of all collections visible to the
	// configured credentials.
	ListCollections(ctx context.Context) ([]string, error)

	// DeleteCollection removes the configured collection and its records.
	DeleteCollection(ctx context.Context) error

	// CollectionInfo describes the configured collection.
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)

	// Reset drops and recreates the configured collection.
	Reset(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
