// Package pinecone provides a vector.Driver backed by a managed Pinecone
// deployment. The control plane handles index lifecycle; record operations
// go to the index's data-plane host.
package pinecone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/spool/pkg/vector"
)

const (
	// DefaultBatchSize bounds how many vectors a single upsert carries.
	DefaultBatchSize = 100

	defaultCloud  = "aws"
	defaultRegion = "us-east-1"
)

// Config holds configuration for the Pinecone driver.
type Config struct {
	// APIKey authenticates against the service. Required unless a Client
	// is injected through NewWithClient.
	APIKey string

	// Collection is the index records are written to. Required.
	Collection string

	// Dimensions is the embedding width the index is created with. Required.
	Dimensions int

	// Metric selects the index's distance function. Defaults to cosine.
	Metric vector.Metric

	// Serverless and Pod pick the deployment model when the index has to
	// be created. When both are nil a serverless index is created on
	// aws/us-east-1.
	Serverless *ServerlessSpec
	Pod        *PodSpec

	// BatchSize bounds upsert batches. Defaults to DefaultBatchSize.
	BatchSize int

	// BaseURL overrides the control-plane endpoint.
	BaseURL string
}

// Driver implements vector.Driver over the Pinecone API.
type Driver struct {
	config Config
	client Client
	logger *slog.Logger

	mu    sync.Mutex
	index Index
}

// New creates a Pinecone driver speaking to the live REST API.
func New(c Config, logger *slog.Logger) (*Driver, error) {
	client, err := NewClient(ClientConfig{APIKey: c.APIKey, BaseURL: c.BaseURL})
	if err != nil {
		return nil, err
	}
	return NewWithClient(c, client, logger)
}

// NewWithClient creates a Pinecone driver on top of an existing Client.
// Tests use this to substitute the remote service.
func NewWithClient(c Config, client Client, logger *slog.Logger) (*Driver, error) {
	if client == nil {
		return nil, fmt.Errorf("pinecone client is required")
	}
	if c.Collection == "" {
		return nil, fmt.Errorf("pinecone collection name is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("pinecone dimensions must be positive")
	}
	if c.Metric == "" {
		c.Metric = vector.MetricCosine
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	return &Driver{
		config: c,
		client: client,
		logger: logger,
	}, nil
}

// EnsureCollection creates the configured index when it does not already
// exist. The existence check and the create are separate calls against the
// control plane; a concurrent creator surfaces as the service's own error.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	indexes, err := d.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("checking for index %q: %w", d.config.Collection, err)
	}
	for _, ix := range indexes {
		if ix.Name == d.config.Collection {
			d.logger.Debug("index already exists", "index", d.config.Collection)
			return nil
		}
	}

	req := CreateIndexRequest{
		Name:      d.config.Collection,
		Dimension: d.config.Dimensions,
		Metric:    metricName(d.config.Metric),
		Spec:      d.deploymentSpec(),
	}
	if _, err := d.client.CreateIndex(ctx, req); err != nil {
		return fmt.Errorf("creating index %q: %w", d.config.Collection, err)
	}

	d.logger.Info("created index",
		"index", d.config.Collection,
		"dimensions", d.config.Dimensions,
		"metric", req.Metric,
	)
	return nil
}

func (d *Driver) deploymentSpec() IndexSpec {
	switch {
	case d.config.Pod != nil:
		return IndexSpec{Pod: d.config.Pod}
	case d.config.Serverless != nil:
		s := *d.config.Serverless
		if s.Cloud == "" {
			s.Cloud = defaultCloud
		}
		if s.Region == "" {
			s.Region = defaultRegion
		}
		return IndexSpec{Serverless: &s}
	default:
		return IndexSpec{Serverless: &ServerlessSpec{Cloud: defaultCloud, Region: defaultRegion}}
	}
}

// Insert writes records assembled from the parallel slices, splitting the
// batch per the configured batch size.
func (d *Driver) Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}

	ix, err := d.dataPlane(ctx)
	if err != nil {
		return err
	}

	for _, batch := range vector.Batch(records, d.config.BatchSize) {
		points := make([]Vector, len(batch))
		for i, r := range batch {
			points[i] = Vector{ID: r.ID, Values: r.Vector, Metadata: r.Payload}
		}
		if err := ix.Upsert(ctx, points); err != nil {
			return fmt.Errorf("inserting into %q: %w", d.config.Collection, err)
		}
	}

	d.logger.Debug("inserted records", "index", d.config.Collection, "count", len(records))
	return nil
}

// Search returns up to limit matches for the query vector, in the service's
// ranking order. The query text is unused; Pinecone ranks on the vector.
func (d *Driver) Search(ctx context.Context, _ string, queryVector []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	ix, err := d.dataPlane(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := ix.Query(ctx, QueryRequest{
		Vector:          queryVector,
		TopK:            limit,
		Filter:          buildFilter(filters),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", d.config.Collection, err)
	}

	results := make([]vector.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		results = append(results, vector.SearchResult{
			ID:      m.ID,
			Score:   m.Score,
			Payload: m.Metadata,
		})
	}
	return results, nil
}

// Update overwrites the record's provided fields through an upsert. Pinecone
// has no partial write on this path, so whatever fields are sent is what the
// service stores.
func (d *Driver) Update(ctx context.Context, id string, queryVector []float32, payload map[string]any) error {
	ix, err := d.dataPlane(ctx)
	if err != nil {
		return err
	}

	point := Vector{ID: id}
	if queryVector != nil {
		point.Values = queryVector
	}
	if payload != nil {
		point.Metadata = payload
	}

	if err := ix.Upsert(ctx, []Vector{point}); err != nil {
		return fmt.Errorf("updating %q in %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// Get retrieves a single record. A miss returns vector.ErrNotFound.
func (d *Driver) Get(ctx context.Context, id string) (*vector.SearchResult, error) {
	ix, err := d.dataPlane(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := ix.Fetch(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("fetching %q from %q: %w", id, d.config.Collection, err)
	}

	point, ok := resp.Vectors[id]
	if !ok {
		return nil, vector.ErrNotFound
	}
	return &vector.SearchResult{ID: id, Payload: point.Metadata}, nil
}

// Delete removes a record by id. Deleting an absent id succeeds.
func (d *Driver) Delete(ctx context.Context, id string) error {
	ix, err := d.dataPlane(ctx)
	if err != nil {
		return err
	}
	if err := ix.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("deleting %q from %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// List returns records matching the filters. Pinecone has no scan API on
// this surface, so listing queries with a zero vector and drops the
// meaningless scores.
func (d *Driver) List(ctx context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	ix, err := d.dataPlane(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := ix.Query(ctx, QueryRequest{
		Vector:          make([]float32, d.config.Dimensions),
		TopK:            limit,
		Filter:          buildFilter(filters),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", d.config.Collection, err)
	}

	results := make([]vector.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		results = append(results, vector.SearchResult{
			ID:      m.ID,
			Payload: m.Metadata,
		})
	}
	return results, nil
}

// ListCollections returns the names of all indexes visible to the key.
func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	indexes, err := d.client.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	names := make([]string, len(indexes))
	for i, ix := range indexes {
		names[i] = ix.Name
	}
	return names, nil
}

// DeleteCollection removes the configured index.
func (d *Driver) DeleteCollection(ctx context.Context) error {
	if err := d.client.DeleteIndex(ctx, d.config.Collection); err != nil {
		return err
	}

	d.mu.Lock()
	d.index = nil
	d.mu.Unlock()

	d.logger.Info("deleted index", "index", d.config.Collection)
	return nil
}

// CollectionInfo maps the control plane's index description.
func (d *Driver) CollectionInfo(ctx context.Context) (*vector.CollectionInfo, error) {
	model, err := d.client.DescribeIndex(ctx, d.config.Collection)
	if err != nil {
		return nil, err
	}

	info := &vector.CollectionInfo{
		Name:       model.Name,
		Dimensions: model.Dimension,
		Metric:     parseMetricName(model.Metric),
		Extra:      map[string]any{"host": model.Host},
	}
	if model.Status != nil {
		info.Status = model.Status.State
	}
	if model.Spec != nil {
		if model.Spec.Serverless != nil {
			info.Extra["serverless"] = *model.Spec.Serverless
		}
		if model.Spec.Pod != nil {
			info.Extra["pod"] = *model.Spec.Pod
		}
	}
	return info, nil
}

// Reset drops and recreates the configured index. The data-plane handle is
// discarded since recreation can move the index to a new host.
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

// dataPlane lazily resolves the index handle. Resolution needs a describe
// round trip, so the handle is cached until the collection is dropped.
func (d *Driver) dataPlane(ctx context.Context) (Index, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.index != nil {
		return d.index, nil
	}
	ix, err := d.client.Index(ctx, d.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("resolving index %q: %w", d.config.Collection, err)
	}
	d.index = ix
	return ix, nil
}

// buildFilter translates the uniform equality filters into Pinecone's
// filter expressions. Values that are already expression maps pass through
// untouched; multiple keys combine as an implicit AND.
func buildFilter(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		if expr, ok := v.(map[string]any); ok {
			out[k] = expr
			continue
		}
		out[k] = map[string]any{"$eq": v}
	}
	return out
}

func metricName(m vector.Metric) string {
	switch m {
	case vector.MetricEuclidean:
		return "euclidean"
	case vector.MetricDot:
		return "dotproduct"
	default:
		return "cosine"
	}
}

func parseMetricName(s string) vector.Metric {
	m, err := vector.ParseMetric(s)
	if err != nil {
		return vector.Metric(s)
	}
	return m
}
