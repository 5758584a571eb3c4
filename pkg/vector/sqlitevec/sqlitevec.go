// Package sqlitevec provides a vector.Driver backed by SQLite with the
// sqlite-vec extension. It is the zero-infrastructure default: records live
// in a plain table and embeddings in a vec0 virtual table sharing rowids.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/spool/pkg/vector"
)

// DefaultBatchSize bounds how many records a single transaction carries.
const DefaultBatchSize = 100

const (
	recordsSuffix = "_records"
	vecSuffix     = "_vec"
)

// Collection names become SQLite identifiers, so they are restricted to
// plain identifier characters rather than quoted.
var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration for the sqlite-vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Collection is the collection records are written to. Required.
	Collection string

	// Dimensions is the embedding width. vec0 tables are fixed-width, so
	// this is required.
	Dimensions int

	// Metric selects the vec0 distance function. Cosine and euclidean are
	// supported; defaults to cosine.
	Metric vector.Metric

	// BatchSize bounds insert transactions. Defaults to DefaultBatchSize.
	BatchSize int
}

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	config Config
	logger *slog.Logger

	records    string
	vec        string
	vecVersion string
}

// NewDriver creates a new sqlite-vec driver and verifies the extension is
// loaded. Tables are not created until EnsureCollection.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Collection == "" {
		return nil, fmt.Errorf("sqlite-vec collection name is required")
	}
	if !collectionName.MatchString(c.Collection) {
		return nil, fmt.Errorf("invalid collection name %q", c.Collection)
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if c.Metric == "" {
		c.Metric = vector.MetricCosine
	}
	if c.Metric == vector.MetricDot {
		return nil, fmt.Errorf("%w: sqlite-vec supports cosine and euclidean", vector.ErrUnsupportedMetric)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers anyway, and a single connection keeps
	// :memory: databases coherent across the pool.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	logger.Debug("sqlite-vec driver initialized",
		"db_path", c.DBPath,
		"collection", c.Collection,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		config:     c,
		logger:     logger,
		records:    c.Collection + recordsSuffix,
		vec:        c.Collection + vecSuffix,
		vecVersion: vecVersion,
	}, nil
}

// EnsureCollection creates the record and embedding tables if they do not
// exist. Rerunning it is a no-op.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	// vec0 virtual tables use integer rowids, so string record ids map
	// through the records table.
	createRecords := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL DEFAULT '{}'
	)`, d.records)
	if _, err := d.db.ExecContext(ctx, createRecords); err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=%s)`,
		d.vec, d.config.Dimensions, distanceMetric(d.config.Metric),
	)
	if _, err := d.db.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}

	d.logger.Debug("ensured sqlite-vec collection",
		"collection", d.config.Collection,
		"dimensions", d.config.Dimensions,
		"metric", d.config.Metric,
	)
	return nil
}

// Insert upserts records in batched transactions. Existing ids are
// overwritten.
func (d *Driver) Insert(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}

	for _, batch := range vector.Batch(records, d.config.BatchSize) {
		if err := d.insertBatch(ctx, batch); err != nil {
			return err
		}
	}

	d.logger.Debug("inserted records", "collection", d.config.Collection, "count", len(records))
	return nil
}

func (d *Driver) insertBatch(ctx context.Context, records []vector.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := d.upsertRecord(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (d *Driver) upsertRecord(ctx context.Context, tx *sql.Tx, r vector.Record) error {
	blob, err := sqlite_vec.SerializeFloat32(r.Vector)
	if err != nil {
		return fmt.Errorf("serializing embedding for %q: %w", r.ID, err)
	}
	payload, err := marshalPayload(r.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for %q: %w", r.ID, err)
	}

	var rowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE record_id = ?`, d.records), r.ID,
	).Scan(&rowID)

	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET payload = ? WHERE rowid = ?`, d.records),
			payload, rowID,
		); err != nil {
			return fmt.Errorf("updating record %q: %w", r.ID, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(record_id, payload) VALUES (?, ?)`, d.records),
			r.ID, payload,
		)
		if err != nil {
			return fmt.Errorf("inserting record %q: %w", r.ID, err)
		}
		rowID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for %q: %w", r.ID, err)
		}
	default:
		return fmt.Errorf("checking for existing record %q: %w", r.ID, err)
	}

	// vec0 does not support UPDATE, so replace via DELETE + INSERT.
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, d.vec), rowID,
	); err != nil {
		return fmt.Errorf("deleting old embedding for %q: %w", r.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, d.vec),
		rowID, blob,
	); err != nil {
		return fmt.Errorf("inserting embedding for %q: %w", r.ID, err)
	}
	return nil
}

// Search runs a KNN query via vec0 MATCH and joins back for ids and
// payloads. The query text is unused.
func (d *Driver) Search(ctx context.Context, _ string, queryVector []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	blob, err := sqlite_vec.SerializeFloat32(queryVector)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	// The KNN pass runs before the payload filter, so over-fetch to leave
	// room for filtered-out neighbors.
	k := limit
	if len(filters) > 0 {
		k = limit * 4
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT r.record_id, r.payload, v.distance
		FROM %s v
		INNER JOIN %s r ON r.rowid = v.rowid
		WHERE v.embedding MATCH ? AND v.k = ?`, d.vec, d.records)
	args := []any{blob, k}

	for _, key := range sortedKeys(filters) {
		sb.WriteString(" AND json_extract(r.payload, ?) = ?")
		args = append(args, jsonPath(key), filters[key])
	}
	sb.WriteString(" ORDER BY v.distance")

	rows, err := d.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			recordID string
			payload  string
			distance float64
		)
		if err := rows.Scan(&recordID, &payload, &distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		result := vector.SearchResult{
			ID: recordID,
			// Lower distance means higher similarity.
			Score: float32(1.0 / (1.0 + distance)),
		}
		if err := unmarshalPayload(payload, &result.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for %q: %w", recordID, err)
		}
		results = append(results, result)

		if len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}

// Update changes only the provided fields. Updating an id that does not
// exist returns vector.ErrNotFound.
func (d *Driver) Update(ctx context.Context, id string, queryVector []float32, payload map[string]any) error {
	if queryVector == nil && payload == nil {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE record_id = ?`, d.records), id,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up %q: %w", id, err)
	}

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET payload = ? WHERE rowid = ?`, d.records),
			string(encoded), rowID,
		); err != nil {
			return fmt.Errorf("updating payload for %q: %w", id, err)
		}
	}

	if queryVector != nil {
		blob, err := sqlite_vec.SerializeFloat32(queryVector)
		if err != nil {
			return fmt.Errorf("serializing embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, d.vec), rowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for %q: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, d.vec),
			rowID, blob,
		); err != nil {
			return fmt.Errorf("inserting embedding for %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a single record. A miss returns vector.ErrNotFound.
func (d *Driver) Get(ctx context.Context, id string) (*vector.SearchResult, error) {
	var (
		recordID string
		payload  string
	)
	err := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT record_id, payload FROM %s WHERE record_id = ?`, d.records), id,
	).Scan(&recordID, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vector.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", id, err)
	}

	result := &vector.SearchResult{ID: recordID}
	if err := unmarshalPayload(payload, &result.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload for %q: %w", id, err)
	}
	return result, nil
}

// Delete removes a record by id. Deleting an absent id succeeds.
func (d *Driver) Delete(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE record_id = ?`, d.records), id,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up %q: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, d.vec), rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding for %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, d.records), rowID,
	); err != nil {
		return fmt.Errorf("deleting record %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// List fetches records matching the filters, ordered by id.
func (d *Driver) List(ctx context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT record_id, payload FROM %s`, d.records)
	var args []any
	if len(filters) > 0 {
		conditions := make([]string, 0, len(filters))
		for _, key := range sortedKeys(filters) {
			conditions = append(conditions, "json_extract(payload, ?) = ?")
			args = append(args, jsonPath(key), filters[key])
		}
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY record_id LIMIT ?")
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			recordID string
			payload  string
		)
		if err := rows.Scan(&recordID, &payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		result := vector.SearchResult{ID: recordID}
		if err := unmarshalPayload(payload, &result.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for %q: %w", recordID, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// ListCollections returns the names of all collections in the database file.
func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE '%\_records' ESCAPE '\' ORDER BY name`,
	)
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
		names = append(names, strings.TrimSuffix(name, recordsSuffix))
	}
	return names, rows.Err()
}

// DeleteCollection drops the record and embedding tables.
func (d *Driver) DeleteCollection(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, d.vec)); err != nil {
		return fmt.Errorf("dropping vec0 table: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, d.records)); err != nil {
		return fmt.Errorf("dropping records table: %w", err)
	}

	d.logger.Info("deleted collection", "collection", d.config.Collection)
	return nil
}

// CollectionInfo describes the configured collection, including its record
// count.
func (d *Driver) CollectionInfo(ctx context.Context) (*vector.CollectionInfo, error) {
	var count int64
	err := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, d.records),
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	return &vector.CollectionInfo{
		Name:       d.config.Collection,
		Dimensions: d.config.Dimensions,
		Metric:     d.config.Metric,
		Count:      count,
		Extra: map[string]any{
			"db_path":     d.config.DBPath,
			"vec_version": d.vecVersion,
		},
	}, nil
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
	return d.db.Close()
}

func distanceMetric(m vector.Metric) string {
	if m == vector.MetricEuclidean {
		return "L2"
	}
	return "cosine"
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

func sortedKeys(filters map[string]any) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonPath(key string) string {
	return fmt.Sprintf(`$."%s"`, key)
}
