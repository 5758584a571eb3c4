// Package qdrant provides a vector.Driver backed by a Qdrant deployment,
// speaking gRPC through the official client.
//
// Qdrant only accepts UUID or integer point ids, so arbitrary record ids
// are mapped to deterministic UUIDv5 values derived from the id, and the
// original id rides along in the payload.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/spool/pkg/vector"
)

const (
	// DefaultBatchSize bounds how many points a single upsert carries.
	DefaultBatchSize = 100

	defaultPort = 6334

	// recordIDKey carries the caller's record id inside the point payload.
	recordIDKey = "__id"
)

// api is the slice of the Qdrant client this driver uses. *qc.Client
// satisfies it; tests substitute a fake.
type api interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qc.CreateCollection) error
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qc.CollectionInfo, error)
	Upsert(ctx context.Context, request *qc.UpsertPoints) (*qc.UpdateResult, error)
	Query(ctx context.Context, request *qc.QueryPoints) ([]*qc.ScoredPoint, error)
	Get(ctx context.Context, request *qc.GetPoints) ([]*qc.RetrievedPoint, error)
	Delete(ctx context.Context, request *qc.DeletePoints) (*qc.UpdateResult, error)
	Scroll(ctx context.Context, request *qc.ScrollPoints) ([]*qc.RetrievedPoint, error)
	SetPayload(ctx context.Context, request *qc.SetPayloadPoints) (*qc.UpdateResult, error)
	UpdateVectors(ctx context.Context, request *qc.UpdatePointVectors) (*qc.UpdateResult, error)
	Close() error
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the gRPC endpoint as host:port. The port defaults to 6334
	// when omitted.
	Target string

	// APIKey authenticates against Qdrant Cloud. Empty for local instances.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Collection is the collection records are written to. Required.
	Collection string

	// Dimensions is the vector width the collection is created with. Required.
	Dimensions int

	// Metric selects the collection's distance function. Defaults to cosine.
	Metric vector.Metric

	// BatchSize bounds upsert batches. Defaults to DefaultBatchSize.
	BatchSize int
}

// Driver implements vector.Driver over the Qdrant gRPC API.
type Driver struct {
	config Config
	client api
	logger *slog.Logger
}

// New dials Qdrant and returns a driver bound to the configured collection.
func New(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant at %q: %v", vector.ErrConnection, c.Target, err)
	}

	return newDriver(c, client, logger)
}

func newDriver(c Config, client api, logger *slog.Logger) (*Driver, error) {
	if c.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant dimensions must be positive")
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

// EnsureCollection creates the configured collection when absent. The
// existence check and the create are separate calls; a concurrent creator
// surfaces as Qdrant's own error.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", d.config.Collection, err)
	}
	if exists {
		d.logger.Debug("collection already exists", "collection", d.config.Collection)
		return nil
	}

	err = d.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: d.config.Collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(d.config.Dimensions),
			Distance: distanceOf(d.config.Metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.config.Collection, err)
	}

	d.logger.Info("created collection",
		"collection", d.config.Collection,
		"dimensions", d.config.Dimensions,
		"metric", string(d.config.Metric),
	)
	return nil
}

// Insert upserts records in batches, waiting for each write to land.
func (d *Driver) Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}

	for _, batch := range vector.Batch(records, d.config.BatchSize) {
		points := make([]*qc.PointStruct, len(batch))
		for i, r := range batch {
			points[i] = &qc.PointStruct{
				Id:      pointID(r.ID),
				Vectors: qc.NewVectors(r.Vector...),
				Payload: qc.NewValueMap(withRecordID(r.Payload, r.ID)),
			}
		}

		_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
			CollectionName: d.config.Collection,
			Points:         points,
			Wait:           qc.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("inserting into %q: %w", d.config.Collection, err)
		}
	}

	d.logger.Debug("inserted records", "collection", d.config.Collection, "count", len(records))
	return nil
}

// Search returns up to limit matches in Qdrant's ranking order. The query
// text is unused; Qdrant ranks on the vector.
func (d *Driver) Search(ctx context.Context, _ string, queryVector []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	filter, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}

	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: d.config.Collection,
		Query:          qc.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          qc.PtrOf(uint64(limit)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", d.config.Collection, err)
	}

	results := make([]vector.SearchResult, 0, len(points))
	for _, p := range points {
		id, payload := recordFromPayload(p.GetId(), p.GetPayload())
		results = append(results, vector.SearchResult{
			ID:      id,
			Score:   p.GetScore(),
			Payload: payload,
		})
	}
	return results, nil
}

// Update writes only what was provided: payload-only updates use Qdrant's
// payload API, vector-only updates its vector API, and both together a
// full upsert. Updating both or the vector of a record that does not exist
// follows Qdrant's own semantics.
func (d *Driver) Update(ctx context.Context, id string, queryVector []float32, payload map[string]any) error {
	pid := pointID(id)

	switch {
	case queryVector != nil && payload != nil:
		_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
			CollectionName: d.config.Collection,
			Points: []*qc.PointStruct{{
				Id:      pid,
				Vectors: qc.NewVectors(queryVector...),
				Payload: qc.NewValueMap(withRecordID(payload, id)),
			}},
			Wait: qc.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("updating %q in %q: %w", id, d.config.Collection, err)
		}

	case payload != nil:
		_, err := d.client.SetPayload(ctx, &qc.SetPayloadPoints{
			CollectionName: d.config.Collection,
			Payload:        qc.NewValueMap(payload),
			PointsSelector: qc.NewPointsSelector(pid),
			Wait:           qc.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("updating payload of %q in %q: %w", id, d.config.Collection, err)
		}

	case queryVector != nil:
		_, err := d.client.UpdateVectors(ctx, &qc.UpdatePointVectors{
			CollectionName: d.config.Collection,
			Points: []*qc.PointVectors{{
				Id:      pid,
				Vectors: qc.NewVectors(queryVector...),
			}},
			Wait: qc.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("updating vector of %q in %q: %w", id, d.config.Collection, err)
		}
	}

	return nil
}

// Get retrieves a single record. A miss returns vector.ErrNotFound.
func (d *Driver) Get(ctx context.Context, id string) (*vector.SearchResult, error) {
	points, err := d.client.Get(ctx, &qc.GetPoints{
		CollectionName: d.config.Collection,
		Ids:            []*qc.PointId{pointID(id)},
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %q from %q: %w", id, d.config.Collection, err)
	}
	if len(points) == 0 {
		return nil, vector.ErrNotFound
	}

	_, payload := recordFromPayload(points[0].GetId(), points[0].GetPayload())
	return &vector.SearchResult{ID: id, Payload: payload}, nil
}

// Delete removes a record by id. Deleting an absent id succeeds.
func (d *Driver) Delete(ctx context.Context, id string) error {
	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.config.Collection,
		Points:         qc.NewPointsSelector(pointID(id)),
		Wait:           qc.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting %q from %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// List scrolls records matching the filters.
func (d *Driver) List(ctx context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	filter, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}

	points, err := d.client.Scroll(ctx, &qc.ScrollPoints{
		CollectionName: d.config.Collection,
		Filter:         filter,
		Limit:          qc.PtrOf(uint32(limit)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", d.config.Collection, err)
	}

	results := make([]vector.SearchResult, 0, len(points))
	for _, p := range points {
		id, payload := recordFromPayload(p.GetId(), p.GetPayload())
		results = append(results, vector.SearchResult{ID: id, Payload: payload})
	}
	return results, nil
}

// ListCollections returns all collection names on the instance.
func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	names, err := d.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return names, nil
}

// DeleteCollection removes the configured collection.
func (d *Driver) DeleteCollection(ctx context.Context) error {
	if err := d.client.DeleteCollection(ctx, d.config.Collection); err != nil {
		return fmt.Errorf("deleting collection %q: %w", d.config.Collection, err)
	}
	d.logger.Info("deleted collection", "collection", d.config.Collection)
	return nil
}

// CollectionInfo maps Qdrant's collection description.
func (d *Driver) CollectionInfo(ctx context.Context) (*vector.CollectionInfo, error) {
	info, err := d.client.GetCollectionInfo(ctx, d.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("describing collection %q: %w", d.config.Collection, err)
	}

	out := &vector.CollectionInfo{
		Name:   d.config.Collection,
		Status: info.GetStatus().String(),
		Count:  int64(info.GetPointsCount()),
		Extra: map[string]any{
			"segments":        info.GetSegmentsCount(),
			"indexed_vectors": info.GetIndexedVectorsCount(),
		},
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		out.Dimensions = int(params.GetSize())
		out.Metric = metricOf(params.GetDistance())
	}
	return out, nil
}

// Reset drops and recreates the configured collection.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.DeleteCollection(ctx); err != nil {
		return err
	}
	return d.EnsureCollection(ctx)
}

// Close tears down the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// pointID derives the deterministic UUIDv5 point id for a record id.
func pointID(id string) *qc.PointId {
	return qc.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// withRecordID copies the payload and tucks the original record id into it.
func withRecordID(payload map[string]any, id string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out[recordIDKey] = id
	return out
}

// recordFromPayload recovers the original record id and the user payload
// from a point. Points written by other tools fall back to the point id.
func recordFromPayload(pid *qc.PointId, raw map[string]*qc.Value) (string, map[string]any) {
	payload := payloadToMap(raw)

	id, _ := payload[recordIDKey].(string)
	delete(payload, recordIDKey)
	if id == "" {
		id = pointIDString(pid)
	}
	return id, payload
}

func pointIDString(pid *qc.PointId) string {
	if pid == nil {
		return ""
	}
	if u := pid.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(pid.GetNum(), 10)
}

func payloadToMap(payload map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qc.Value) any {
	switch kind := v.GetKind().(type) {
	case *qc.Value_BoolValue:
		return kind.BoolValue
	case *qc.Value_IntegerValue:
		return kind.IntegerValue
	case *qc.Value_DoubleValue:
		return kind.DoubleValue
	case *qc.Value_StringValue:
		return kind.StringValue
	case *qc.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	case *qc.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, f := range fields {
			out[k] = valueToAny(f)
		}
		return out
	default:
		return nil
	}
}

// buildFilter translates the uniform equality filters into Qdrant match
// conditions combined with Must (AND) semantics.
func buildFilter(filters map[string]any) (*qc.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	conditions := make([]*qc.Condition, 0, len(filters))
	for k, v := range filters {
		cond, err := matchCondition(k, v)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return &qc.Filter{Must: conditions}, nil
}

func matchCondition(field string, value any) (*qc.Condition, error) {
	switch v := value.(type) {
	case string:
		return qc.NewMatchKeyword(field, v), nil
	case bool:
		return qc.NewMatchBool(field, v), nil
	case int:
		return qc.NewMatchInt(field, int64(v)), nil
	case int64:
		return qc.NewMatchInt(field, v), nil
	case float64:
		// JSON numbers decode as float64; integral ones match as integers.
		if v == math.Trunc(v) {
			return qc.NewMatchInt(field, int64(v)), nil
		}
		return nil, fmt.Errorf("qdrant cannot match on non-integral number %v for field %q", v, field)
	default:
		return nil, fmt.Errorf("unsupported filter value type %T for field %q", value, field)
	}
}

func distanceOf(m vector.Metric) qc.Distance {
	switch m {
	case vector.MetricEuclidean:
		return qc.Distance_Euclid
	case vector.MetricDot:
		return qc.Distance_Dot
	default:
		return qc.Distance_Cosine
	}
}

func metricOf(d qc.Distance) vector.Metric {
	switch d {
	case qc.Distance_Euclid:
		return vector.MetricEuclidean
	case qc.Distance_Dot:
		return vector.MetricDot
	case qc.Distance_Cosine:
		return vector.MetricCosine
	default:
		return vector.Metric(d.String())
	}
}

func splitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port in the target; use the gRPC default.
		return target, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parsing qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
