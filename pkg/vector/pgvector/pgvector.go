// Package pgvector provides a vector.Driver backed by PostgreSQL with the
// pgvector extension. Each collection is a table holding an id, an embedding,
// and a JSONB payload, so filters ride on Postgres jsonb containment.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercomputeco/spool/pkg/vector"
)

// DefaultBatchSize bounds how many records a single multi-row insert carries.
const DefaultBatchSize = 100

// Config holds configuration for the pgvector driver.
type Config struct {
	// ConnString is a Postgres connection string or URL. Required.
	ConnString string

	// Collection is the table records are written to. Required.
	Collection string

	// Dimensions fixes the embedding column width. When zero the column is
	// untyped and no vector index is created.
	Dimensions int

	// Metric selects the distance operator and index opclass. Defaults to
	// cosine.
	Metric vector.Metric

	// BatchSize bounds insert batches. Defaults to DefaultBatchSize.
	BatchSize int
}

// db is the slice of pgxpool.Pool the driver depends on.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Driver implements vector.Driver on a Postgres connection pool.
type Driver struct {
	config Config
	pool   db
	logger *slog.Logger

	table string
	index string
}

// New creates a new pgvector driver. The pool connects lazily, so the
// database is not touched until EnsureCollection or the first operation.
func New(c Config, logger *slog.Logger) (*Driver, error) {
	if c.ConnString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	if c.Collection == "" {
		return nil, fmt.Errorf("pgvector collection name is required")
	}

	pool, err := pgxpool.New(context.Background(), c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return newDriver(c, pool, logger), nil
}

func newDriver(c Config, pool db, logger *slog.Logger) *Driver {
	if c.Metric == "" {
		c.Metric = vector.MetricCosine
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	return &Driver{
		config: c,
		pool:   pool,
		logger: logger,
		table:  pgx.Identifier{c.Collection}.Sanitize(),
		index:  pgx.Identifier{c.Collection + "_embedding_idx"}.Sanitize(),
	}
}

// EnsureCollection creates the extension, the table, and the vector index if
// they do not exist. Rerunning it against an existing table is a no-op.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	column := "vector"
	if d.config.Dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", d.config.Dimensions)
	}
	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, embedding %s NOT NULL, payload JSONB NOT NULL DEFAULT '{}'::jsonb)",
		d.table, column,
	)
	if _, err := d.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("creating table %q: %w", d.config.Collection, err)
	}

	// HNSW needs a typed column, so an untyped table goes unindexed and
	// queries fall back to sequential scans.
	if d.config.Dimensions > 0 {
		index := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)",
			d.index, d.table, opclassOf(d.config.Metric),
		)
		if _, err := d.pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("creating index on %q: %w", d.config.Collection, err)
		}
	}

	d.logger.Debug("ensured pgvector table",
		"table", d.config.Collection,
		"dimensions", d.config.Dimensions,
		"metric", d.config.Metric,
	)
	return nil
}

// Insert upserts records in batches. Existing ids are overwritten.
func (d *Driver) Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}

	for _, batch := range vector.Batch(records, d.config.BatchSize) {
		sql, args, err := upsertSQL(d.table, batch)
		if err != nil {
			return err
		}
		if _, err := d.pool.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("inserting into %q: %w", d.config.Collection, err)
		}
	}

	d.logger.Debug("inserted records", "table", d.config.Collection, "count", len(records))
	return nil
}

// Search returns up to limit matches ordered by the metric's distance
// operator. The query text is unused.
func (d *Driver) Search(ctx context.Context, _ string, queryVector []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	sql, args, err := searchSQL(d.table, d.config.Metric, queryVector, limit, filters)
	if err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", d.config.Collection, err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			id       string
			payload  string
			distance float64
		)
		if err := rows.Scan(&id, &payload, &distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		result := vector.SearchResult{ID: id, Score: scoreOf(d.config.Metric, distance)}
		if err := unmarshalPayload(payload, &result.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for %q: %w", id, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Update changes only the provided fields. Updating an id that does not
// exist returns vector.ErrNotFound.
func (d *Driver) Update(ctx context.Context, id string, queryVector []float32, payload map[string]any) error {
	sets := make([]string, 0, 2)
	args := []any{id}

	if queryVector != nil {
		args = append(args, vectorLiteral(queryVector))
		sets = append(sets, fmt.Sprintf("embedding = $%d::vector", len(args)))
	}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
		args = append(args, string(encoded))
		sets = append(sets, fmt.Sprintf("payload = $%d::jsonb", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", d.table, strings.Join(sets, ", "))
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating %q in %q: %w", id, d.config.Collection, err)
	}
	if tag.RowsAffected() == 0 {
		return vector.ErrNotFound
	}
	return nil
}

// Get retrieves a single record. A miss returns vector.ErrNotFound.
func (d *Driver) Get(ctx context.Context, id string) (*vector.SearchResult, error) {
	sql := fmt.Sprintf("SELECT id, payload::text FROM %s WHERE id = $1", d.table)

	var (
		recordID string
		payload  string
	)
	if err := d.pool.QueryRow(ctx, sql, id).Scan(&recordID, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vector.ErrNotFound
		}
		return nil, fmt.Errorf("fetching %q from %q: %w", id, d.config.Collection, err)
	}

	result := &vector.SearchResult{ID: recordID}
	if err := unmarshalPayload(payload, &result.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload for %q: %w", id, err)
	}
	return result, nil
}

// Delete removes a record by id. Deleting an absent id succeeds.
func (d *Driver) Delete(ctx context.Context, id string) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1", d.table)
	if _, err := d.pool.Exec(ctx, sql, id); err != nil {
		return fmt.Errorf("deleting %q from %q: %w", id, d.config.Collection, err)
	}
	return nil
}

// List fetches records matching the filters, ordered by id.
func (d *Driver) List(ctx context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, payload::text FROM %s", d.table)
	var args []any
	if len(filters) > 0 {
		containment, err := json.Marshal(filters)
		if err != nil {
			return nil, fmt.Errorf("marshaling filters: %w", err)
		}
		args = append(args, string(containment))
		fmt.Fprintf(&sb, " WHERE payload @> $%d::jsonb", len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY id LIMIT $%d", len(args))

	rows, err := d.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", d.config.Collection, err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		result := vector.SearchResult{ID: id}
		if err := unmarshalPayload(payload, &result.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for %q: %w", id, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// ListCollections returns the names of all tables with a vector column in
// the current schema.
func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	sql := "SELECT table_name FROM information_schema.columns WHERE udt_name = 'vector' AND table_schema = current_schema() ORDER BY table_name"

	rows, err := d.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCollection drops the configured table.
func (d *Driver) DeleteCollection(ctx context.Context) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", d.table)
	if _, err := d.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("deleting collection %q: %w", d.config.Collection, err)
	}

	d.logger.Info("deleted collection", "table", d.config.Collection)
	return nil
}

// CollectionInfo describes the configured table, including its record count.
func (d *Driver) CollectionInfo(ctx context.Context) (*vector.CollectionInfo, error) {
	var count int64
	sql := fmt.Sprintf("SELECT count(*) FROM %s", d.table)
	if err := d.pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting %q: %w", d.config.Collection, err)
	}

	return &vector.CollectionInfo{
		Name:       d.config.Collection,
		Dimensions: d.config.Dimensions,
		Metric:     d.config.Metric,
		Count:      count,
		Extra: map[string]any{
			"table": d.table,
		},
	}, nil
}

// Reset drops and recreates the configured table.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.DeleteCollection(ctx); err != nil {
		return err
	}
	return d.EnsureCollection(ctx)
}

// Close releases the connection pool.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

// upsertSQL builds one multi-row insert for a batch.
func upsertSQL(table string, records []vector.Record) (string, []any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (id, embedding, payload) VALUES ", table)

	args := make([]any, 0, len(records)*3)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d::vector, $%d::jsonb)", i*3+1, i*3+2, i*3+3)

		payload, err := marshalPayload(r.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling payload for %q: %w", r.ID, err)
		}
		args = append(args, r.ID, vectorLiteral(r.Vector), payload)
	}

	sb.WriteString(" ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload")
	return sb.String(), args, nil
}

func searchSQL(table string, metric vector.Metric, queryVector []float32, limit int, filters map[string]any) (string, []any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, payload::text, embedding %s $1::vector AS distance FROM %s", operatorOf(metric), table)

	args := []any{vectorLiteral(queryVector)}
	if len(filters) > 0 {
		containment, err := json.Marshal(filters)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling filters: %w", err)
		}
		args = append(args, string(containment))
		fmt.Fprintf(&sb, " WHERE payload @> $%d::jsonb", len(args))
	}

	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY distance ASC LIMIT $%d", len(args))
	return sb.String(), args, nil
}

// vectorLiteral renders a vector in pgvector's text input format.
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func unmarshalPayload(payload string, out *map[string]any) error {
	if payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(payload), out)
}

// operatorOf maps a metric to its pgvector distance operator. All three
// order ascending: <#> negates the inner product so larger products sort
// first.
func operatorOf(m vector.Metric) string {
	switch m {
	case vector.MetricEuclidean:
		return "<->"
	case vector.MetricDot:
		return "<#>"
	default:
		return "<=>"
	}
}

func opclassOf(m vector.Metric) string {
	switch m {
	case vector.MetricEuclidean:
		return "vector_l2_ops"
	case vector.MetricDot:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// scoreOf converts an operator distance to a similarity score where higher
// means closer. Cosine distance is 1 minus similarity, and <#> reports the
// negated inner product.
func scoreOf(m vector.Metric, distance float64) float32 {
	switch m {
	case vector.MetricEuclidean:
		return float32(1.0 / (1.0 + distance))
	case vector.MetricDot:
		return float32(-distance)
	default:
		return float32(1.0 - distance)
	}
}
