// Package chroma provides a vector.Driver backed by a Chroma server's v2
// REST API. Chroma often runs as a sidecar that is still starting when the
// process comes up, so collection provisioning retries with backoff.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/spool/pkg/vector"
)

const (
	// DefaultBatchSize bounds how many records a single upsert carries.
	DefaultBatchSize = 100

	defaultTenant        = "default_tenant"
	defaultDatabase      = "default_database"
	defaultMaxRetries    = 3
	defaultRetryDelay    = time.Second
	defaultMaxRetryDelay = 30 * time.Second
)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000"). Required.
	URL string

	// Collection is the collection records are written to. Required.
	Collection string

	// Dimensions is informational for Chroma, which infers the width from
	// the first write.
	Dimensions int

	// Metric selects the collection's distance function at creation time.
	// Defaults to cosine.
	Metric vector.Metric

	// BatchSize bounds upsert batches. Defaults to DefaultBatchSize.
	BatchSize int

	// Tenant and Database scope the collection. Default to Chroma's
	// default tenant and database.
	Tenant   string
	Database string

	// MaxRetries, RetryDelay, and MaxRetryDelay govern how EnsureCollection
	// waits for a Chroma that is still starting up. Delay doubles per
	// attempt up to MaxRetryDelay.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger

	mu           sync.Mutex
	collectionID string
}

// NewDriver creates a new Chroma vector driver. The collection is not
// touched until EnsureCollection or the first record operation.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if c.Collection == "" {
		return nil, fmt.Errorf("chroma collection name is required")
	}
	if c.Metric == "" {
		c.Metric = vector.MetricCosine
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Tenant == "" {
		c.Tenant = defaultTenant
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}

	return &Driver{
		config: c,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// EnsureCollection gets or creates the configured collection, retrying with
// exponential backoff while the server comes up. Get and create are separate
// requests, so a concurrent creator surfaces as Chroma's own error.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	delay := d.config.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxRetries; attempt++ {
		id, err := d.getOrCreateCollection(ctx)
		if err == nil {
			d.mu.Lock()
			d.collectionID = id
			d.mu.Unlock()

			d.logger.Debug("connected to chroma",
				"url", d.config.URL,
				"collection", d.config.Collection,
				"collection_id", id,
				"attempt", attempt,
			)
			return nil
		}
		lastErr = err

		if attempt == d.config.MaxRetries {
			break
		}
		d.logger.Debug("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > d.config.MaxRetryDelay {
			delay = d.config.MaxRetryDelay
		}
	}

	return fmt.Errorf("%w: after %d attempts: %v", vector.ErrConnection, d.config.MaxRetries, lastErr)
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var existing chromaCollection
	err := d.doJSON(ctx, http.MethodGet, d.collectionURL(d.config.Collection), nil, &existing)
	if err == nil {
		return existing.ID, nil
	}

	// Collection missing or server still starting; try to create it.
	create := chromaCreateCollectionRequest{
		Name:     d.config.Collection,
		Metadata: map[string]any{"hnsw:space": spaceOf(d.config.Metric)},
	}

	var created chromaCollection
	if err := d.doJSON(ctx, http.MethodPost, d.collectionsURL(), create, &created); err != nil {
		return "", fmt.Errorf("creating collection %q: %w", d.config.Collection, err)
	}
	return created.ID, nil
}

// Insert upserts records in batches.
func (d *Driver) Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}

	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	for _, batch := range vector.Batch(records, d.config.BatchSize) {
		req := chromaUpsertRequest{
			IDs:        make([]string, len(batch)),
			Embeddings: make([][]float32, len(batch)),
			Metadatas:  make([]map[string]any, len(batch)),
		}
		for i, r := range batch {
			req.IDs[i] = r.ID
			req.Embeddings[i] = r.Vector
			req.Metadatas[i] = r.Payload
		}

		if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "upsert"), req, nil); err != nil {
			return fmt.Errorf("inserting into %q: %w", d.config.Collection, err)
		}
	}

	d.logger.Debug("inserted records", "collection", d.config.Collection, "count", len(records))
	return nil
}

// Search returns up to limit matches ranked by distance. Chroma reports
// distances, which convert to scores as 1/(1+distance) so higher stays more
// similar. The query text is unused.
func (d *Driver) Search(ctx context.Context, _ string, queryVector []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}

	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{queryVector},
		NResults:        limit,
		Where:           buildWhere(filters),
		Include:         []string{"metadatas", "distances"},
	}

	var resp chromaQueryResponse
	if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "query"), req, &resp); err != nil {
		return nil, fmt.Errorf("searching %q: %w", d.config.Collection, err)
	}

	// Only the first group matters; exactly one embedding was sent.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	var distances []float32
	if len(resp.Distances) > 0 {
		distances = resp.Distances[0]
	}
	var metadatas []map[string]any
	if len(resp.Metadatas) > 0 {
		metadatas = resp.Metadatas[0]
	}

	results := make([]vector.SearchResult, 0, len(ids))
	for i, id := range ids {
		result := vector.SearchResult{ID: id}
		if i < len(distances) {
			result.Score = 1.0 / (1.0 + distances[i])
		}
		if i < len(metadatas) {
			result.Payload = metadatas[i]
		}
		results = append(results, result)
	}
	return results, nil
}

// Update changes only the provided fields; Chroma's update endpoint is
// partial natively.
func (d *Driver) Update(ctx context.Context, id string, queryVector []float32, payload map[string]any) error {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	req := chromaUpdateRequest{IDs: []string{id}}
	if queryVector != nil {
		req.Embeddings = [][]float32{queryVector}
	}
	if payload != nil {
		req.Metadatas = []map[string]any{payload}
	}

	if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "update"), req, nil); err != nil {
		return fmt.Errorf("updating %q in %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// Get retrieves a single record. A miss returns vector.ErrNotFound.
func (d *Driver) Get(ctx context.Context, id string) (*vector.SearchResult, error) {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}

	req := chromaGetRequest{
		IDs:     []string{id},
		Include: []string{"metadatas"},
	}

	var resp chromaGetResponse
	if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "get"), req, &resp); err != nil {
		return nil, fmt.Errorf("fetching %q from %q: %w", id, d.config.Collection, err)
	}
	if len(resp.IDs) == 0 {
		return nil, vector.ErrNotFound
	}

	result := &vector.SearchResult{ID: resp.IDs[0]}
	if len(resp.Metadatas) > 0 {
		result.Payload = resp.Metadatas[0]
	}
	return result, nil
}

// Delete removes a record by id. Deleting an absent id succeeds.
func (d *Driver) Delete(ctx context.Context, id string) error {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	req := chromaDeleteRequest{IDs: []string{id}}
	if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "delete"), req, nil); err != nil {
		return fmt.Errorf("deleting %q from %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// List fetches records matching the filters.
func (d *Driver) List(ctx context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}

	req := chromaGetRequest{
		Where:   buildWhere(filters),
		Limit:   limit,
		Include: []string{"metadatas"},
	}

	var resp chromaGetResponse
	if err := d.doJSON(ctx, http.MethodPost, d.recordsURL(collectionID, "get"), req, &resp); err != nil {
		return nil, fmt.Errorf("listing %q: %w", d.config.Collection, err)
	}

	results := make([]vector.SearchResult, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		result := vector.SearchResult{ID: id}
		if i < len(resp.Metadatas) {
			result.Payload = resp.Metadatas[i]
		}
		results = append(results, result)
	}
	return results, nil
}

// ListCollections returns all collection names in the configured database.
func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	var collections []chromaCollection
	if err := d.doJSON(ctx, http.MethodGet, d.collectionsURL(), nil, &collections); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}
	return names, nil
}

// DeleteCollection removes the configured collection.
func (d *Driver) DeleteCollection(ctx context.Context) error {
	if err := d.doJSON(ctx, http.MethodDelete, d.collectionURL(d.config.Collection), nil, nil); err != nil {
		return fmt.Errorf("deleting collection %q: %w", d.config.Collection, err)
	}

	d.mu.Lock()
	d.collectionID = ""
	d.mu.Unlock()

	d.logger.Info("deleted collection", "collection", d.config.Collection)
	return nil
}

// CollectionInfo describes the configured collection, including its record
// count.
func (d *Driver) CollectionInfo(ctx context.Context) (*vector.CollectionInfo, error) {
	var col chromaCollection
	if err := d.doJSON(ctx, http.MethodGet, d.collectionURL(d.config.Collection), nil, &col); err != nil {
		return nil, fmt.Errorf("describing collection %q: %w", d.config.Collection, err)
	}

	var count int64
	if err := d.doJSON(ctx, http.MethodGet, d.recordsURL(col.ID, "count"), nil, &count); err != nil {
		return nil, fmt.Errorf("counting collection %q: %w", d.config.Collection, err)
	}

	info := &vector.CollectionInfo{
		Name:       col.Name,
		Dimensions: col.Dimension,
		Metric:     d.config.Metric,
		Count:      count,
		Extra: map[string]any{
			"id":       col.ID,
			"tenant":   d.config.Tenant,
			"database": d.config.Database,
		},
	}
	if info.Dimensions == 0 {
		info.Dimensions = d.config.Dimensions
	}
	if space, ok := col.Metadata["hnsw:space"].(string); ok {
		info.Metric = metricOfSpace(space)
	}
	return info, nil
}

// Reset drops and recreates the configured collection.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.DeleteCollection(ctx); err != nil {
		return err
	}
	return d.EnsureCollection(ctx)
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

// collection returns the cached collection id, resolving it with a lookup
// (never a create) on first use.
func (d *Driver) collection(ctx context.Context) (string, error) {
	d.mu.Lock()
	id := d.collectionID
	d.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var col chromaCollection
	if err := d.doJSON(ctx, http.MethodGet, d.collectionURL(d.config.Collection), nil, &col); err != nil {
		return "", fmt.Errorf("resolving collection %q: %w", d.config.Collection, err)
	}

	d.mu.Lock()
	d.collectionID = col.ID
	d.mu.Unlock()
	return col.ID, nil
}

func (d *Driver) collectionsURL() string {
	return fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections", d.config.URL, d.config.Tenant, d.config.Database)
}

func (d *Driver) collectionURL(name string) string {
	return d.collectionsURL() + "/" + name
}

func (d *Driver) recordsURL(collectionID, op string) string {
	return d.collectionsURL() + "/" + collectionID + "/" + op
}

// doJSON runs one JSON request against the server. Non-2xx responses are
// returned as errors carrying the server's status and body verbatim.
func (d *Driver) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// buildWhere translates the uniform equality filters into Chroma where
// clauses. Multiple conditions need an explicit $and; keys are sorted so
// the clause is deterministic.
func buildWhere(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return map[string]any{keys[0]: map[string]any{"$eq": filters[keys[0]]}}
	}

	clauses := make([]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": filters[k]}})
	}
	return map[string]any{"$and": clauses}
}

func spaceOf(m vector.Metric) string {
	switch m {
	case vector.MetricEuclidean:
		return "l2"
	case vector.MetricDot:
		return "ip"
	default:
		return "cosine"
	}
}

func metricOfSpace(space string) vector.Metric {
	switch space {
	case "l2":
		return vector.MetricEuclidean
	case "ip":
		return vector.MetricDot
	default:
		return vector.MetricCosine
	}
}
