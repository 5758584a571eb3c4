package pgvector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/vector"
)

func TestPgvector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pgvector Suite")
}

type sqlCall struct {
	sql  string
	args []any
}

// fakeDB records every statement the driver issues and plays back scripted
// rows, so specs can assert on the exact SQL without a live Postgres.
type fakeDB struct {
	execCalls []sqlCall
	execTags  []pgconn.CommandTag
	execErr   error

	queryCalls []sqlCall
	queryRows  *fakeRows
	queryErr   error

	rowCalls  []sqlCall
	rowValues []any
	rowErr    error

	closed bool
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, sqlCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if len(f.execTags) > 0 {
		tag := f.execTags[0]
		f.execTags = f.execTags[1:]
		return tag, nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queryCalls = append(f.queryCalls, sqlCall{sql: sql, args: args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryRows != nil {
		return f.queryRows, nil
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.rowCalls = append(f.rowCalls, sqlCall{sql: sql, args: args})
	return &fakeRow{values: f.rowValues, err: f.rowErr}
}

func (f *fakeDB) Close() {
	f.closed = true
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignRow(dest, r.rows[r.idx-1])
}

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignRow(dest, r.values)
}

func assignRow(dest []any, row []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d scan destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = row[i].(string)
		case *float64:
			*d = row[i].(float64)
		case *int64:
			*d = row[i].(int64)
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		db     *fakeDB
		driver *Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = &fakeDB{}
		driver = newDriver(Config{
			Collection: "records",
			Dimensions: 2,
		}, db, logger.Nop())
	})

	Describe("New", func() {
		It("should return an error when the connection string is empty", func() {
			_, err := New(Config{Collection: "records"}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("connection string is required"))
		})

		It("should return an error when the collection name is empty", func() {
			_, err := New(Config{ConnString: "postgres://localhost:5432/spool"}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("collection name is required"))
		})
	})

	Describe("EnsureCollection", func() {
		It("creates the extension, table, and index", func() {
			Expect(driver.EnsureCollection(ctx)).To(Succeed())

			Expect(db.execCalls).To(HaveLen(3))
			Expect(db.execCalls[0].sql).To(Equal("CREATE EXTENSION IF NOT EXISTS vector"))
			Expect(db.execCalls[1].sql).To(ContainSubstring(`CREATE TABLE IF NOT EXISTS "records"`))
			Expect(db.execCalls[1].sql).To(ContainSubstring("embedding vector(2) NOT NULL"))
			Expect(db.execCalls[2].sql).To(ContainSubstring("USING hnsw"))
			Expect(db.execCalls[2].sql).To(ContainSubstring("vector_cosine_ops"))
		})

		It("skips the index when dimensions are unknown", func() {
			driver = newDriver(Config{Collection: "records"}, db, logger.Nop())

			Expect(driver.EnsureCollection(ctx)).To(Succeed())

			Expect(db.execCalls).To(HaveLen(2))
			Expect(db.execCalls[1].sql).To(ContainSubstring("embedding vector NOT NULL"))
		})

		It("uses the metric's index opclass", func() {
			driver = newDriver(Config{
				Collection: "records",
				Dimensions: 2,
				Metric:     vector.MetricEuclidean,
			}, db, logger.Nop())

			Expect(driver.EnsureCollection(ctx)).To(Succeed())
			Expect(db.execCalls[2].sql).To(ContainSubstring("vector_l2_ops"))
		})
	})

	Describe("Insert", func() {
		It("upserts zipped records in one statement", func() {
			err := driver.Insert(ctx,
				[][]float32{{0.1, 0.2}, {0.3, 0.4}},
				[]map[string]any{{"name": "vector1"}, {"name": "vector2"}},
				[]string{"id1", "id2"},
			)
			Expect(err).NotTo(HaveOccurred())

			Expect(db.execCalls).To(HaveLen(1))
			call := db.execCalls[0]
			Expect(call.sql).To(ContainSubstring(`INSERT INTO "records" (id, embedding, payload)`))
			Expect(call.sql).To(ContainSubstring("($1, $2::vector, $3::jsonb), ($4, $5::vector, $6::jsonb)"))
			Expect(call.sql).To(ContainSubstring("ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding"))
			Expect(call.args).To(Equal([]any{
				"id1", "[0.1,0.2]", `{"name":"vector1"}`,
				"id2", "[0.3,0.4]", `{"name":"vector2"}`,
			}))
		})

		It("defaults a nil payload to an empty object", func() {
			err := driver.Insert(ctx, [][]float32{{0.1, 0.2}}, nil, []string{"id1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.execCalls[0].args[2]).To(Equal("{}"))
		})

		It("rejects ragged batches before writing", func() {
			err := driver.Insert(ctx, [][]float32{{0.1}}, nil, []string{"id1", "id2"})
			Expect(err).To(MatchError(vector.ErrBatchMismatch))
			Expect(db.execCalls).To(BeEmpty())
		})

		It("splits large batches", func() {
			driver = newDriver(Config{
				Collection: "records",
				BatchSize:  2,
			}, db, logger.Nop())

			vectors := make([][]float32, 5)
			ids := make([]string, 5)
			for i := range vectors {
				vectors[i] = []float32{float32(i)}
				ids[i] = fmt.Sprintf("id%d", i)
			}

			Expect(driver.Insert(ctx, vectors, nil, ids)).To(Succeed())
			Expect(db.execCalls).To(HaveLen(3))
		})

		It("surfaces backend failures", func() {
			boom := errors.New("connection refused")
			db.execErr = boom

			err := driver.Insert(ctx, [][]float32{{0.1}}, nil, []string{"id1"})
			Expect(err).To(MatchError(boom))
		})
	})

	Describe("Search", func() {
		It("orders by cosine distance and converts it to a score", func() {
			db.queryRows = &fakeRows{rows: [][]any{
				{"id1", `{"name":"vector1"}`, 0.25},
				{"id2", `{"name":"vector2"}`, 0.5},
			}}

			results, err := driver.Search(ctx, "test query", []float32{0.1, 0.2}, 2, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(db.queryCalls).To(HaveLen(1))
			call := db.queryCalls[0]
			Expect(call.sql).To(ContainSubstring("embedding <=> $1::vector AS distance"))
			Expect(call.sql).To(ContainSubstring("ORDER BY distance ASC LIMIT $2"))
			Expect(call.args).To(Equal([]any{"[0.1,0.2]", 2}))

			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("id1"))
			Expect(results[0].Score).To(Equal(float32(0.75)))
			Expect(results[0].Payload).To(HaveKeyWithValue("name", "vector1"))
			Expect(results[1].Score).To(Equal(float32(0.5)))
		})

		It("filters with jsonb containment", func() {
			_, err := driver.Search(ctx, "", []float32{0.1}, 5, map[string]any{"name": "vector1"})
			Expect(err).NotTo(HaveOccurred())

			call := db.queryCalls[0]
			Expect(call.sql).To(ContainSubstring("WHERE payload @> $2::jsonb"))
			Expect(call.sql).To(ContainSubstring("LIMIT $3"))
			Expect(call.args).To(Equal([]any{"[0.1]", `{"name":"vector1"}`, 5}))
		})

		It("uses the euclidean operator and score", func() {
			driver = newDriver(Config{
				Collection: "records",
				Metric:     vector.MetricEuclidean,
			}, db, logger.Nop())
			db.queryRows = &fakeRows{rows: [][]any{{"id1", "{}", 1.0}}}

			results, err := driver.Search(ctx, "", []float32{0.1}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.queryCalls[0].sql).To(ContainSubstring("embedding <-> $1::vector"))
			Expect(results[0].Score).To(Equal(float32(0.5)))
		})

		It("negates the dot product distance back into a score", func() {
			driver = newDriver(Config{
				Collection: "records",
				Metric:     vector.MetricDot,
			}, db, logger.Nop())
			db.queryRows = &fakeRows{rows: [][]any{{"id1", "{}", -2.0}}}

			results, err := driver.Search(ctx, "", []float32{0.1}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.queryCalls[0].sql).To(ContainSubstring("embedding <#> $1::vector"))
			Expect(results[0].Score).To(Equal(float32(2.0)))
		})

		It("returns no results for an empty table", func() {
			results, err := driver.Search(ctx, "", []float32{0.1}, 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("updates both fields when both are provided", func() {
			err := driver.Update(ctx, "id1", []float32{0.5}, map[string]any{"name": "updated"})
			Expect(err).NotTo(HaveOccurred())

			call := db.execCalls[0]
			Expect(call.sql).To(Equal(`UPDATE "records" SET embedding = $2::vector, payload = $3::jsonb WHERE id = $1`))
			Expect(call.args).To(Equal([]any{"id1", "[0.5]", `{"name":"updated"}`}))
		})

		It("updates only the payload when the vector is nil", func() {
			err := driver.Update(ctx, "id1", nil, map[string]any{"name": "updated"})
			Expect(err).NotTo(HaveOccurred())

			call := db.execCalls[0]
			Expect(call.sql).To(Equal(`UPDATE "records" SET payload = $2::jsonb WHERE id = $1`))
		})

		It("does nothing when no fields are provided", func() {
			Expect(driver.Update(ctx, "id1", nil, nil)).To(Succeed())
			Expect(db.execCalls).To(BeEmpty())
		})

		It("returns ErrNotFound when no row matches", func() {
			db.execTags = []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")}

			err := driver.Update(ctx, "missing", nil, map[string]any{"name": "updated"})
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Get", func() {
		It("returns the record without a score", func() {
			db.rowValues = []any{"id1", `{"name":"vector1"}`}

			result, err := driver.Get(ctx, "id1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ID).To(Equal("id1"))
			Expect(result.Payload).To(HaveKeyWithValue("name", "vector1"))
			Expect(result.Score).To(BeZero())

			Expect(db.rowCalls[0].sql).To(Equal(`SELECT id, payload::text FROM "records" WHERE id = $1`))
			Expect(db.rowCalls[0].args).To(Equal([]any{"id1"}))
		})

		It("returns ErrNotFound for a missing record", func() {
			db.rowErr = pgx.ErrNoRows

			result, err := driver.Get(ctx, "missing")
			Expect(result).To(BeNil())
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("deletes by id", func() {
			Expect(driver.Delete(ctx, "id1")).To(Succeed())

			call := db.execCalls[0]
			Expect(call.sql).To(Equal(`DELETE FROM "records" WHERE id = $1`))
			Expect(call.args).To(Equal([]any{"id1"}))
		})

		It("succeeds when the id does not exist", func() {
			db.execTags = []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 0")}
			Expect(driver.Delete(ctx, "missing")).To(Succeed())
		})
	})

	Describe("List", func() {
		It("fetches matching records ordered by id", func() {
			db.queryRows = &fakeRows{rows: [][]any{
				{"id1", `{"name":"vector1"}`},
			}}

			results, err := driver.List(ctx, map[string]any{"name": "vector1"}, 10)
			Expect(err).NotTo(HaveOccurred())

			call := db.queryCalls[0]
			Expect(call.sql).To(ContainSubstring("WHERE payload @> $1::jsonb"))
			Expect(call.sql).To(ContainSubstring("ORDER BY id LIMIT $2"))
			Expect(call.args).To(Equal([]any{`{"name":"vector1"}`, 10}))

			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("id1"))
			Expect(results[0].Score).To(BeZero())
		})
	})

	Describe("ListCollections", func() {
		It("lists tables with a vector column", func() {
			db.queryRows = &fakeRows{rows: [][]any{{"other"}, {"records"}}}

			names, err := driver.ListCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"other", "records"}))
			Expect(db.queryCalls[0].sql).To(ContainSubstring("udt_name = 'vector'"))
		})
	})

	Describe("DeleteCollection", func() {
		It("drops the table", func() {
			Expect(driver.DeleteCollection(ctx)).To(Succeed())
			Expect(db.execCalls[0].sql).To(Equal(`DROP TABLE IF EXISTS "records"`))
		})
	})

	Describe("CollectionInfo", func() {
		It("describes the table with its count", func() {
			db.rowValues = []any{int64(42)}

			info, err := driver.CollectionInfo(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Name).To(Equal("records"))
			Expect(info.Dimensions).To(Equal(2))
			Expect(info.Metric).To(Equal(vector.MetricCosine))
			Expect(info.Count).To(Equal(int64(42)))
			Expect(db.rowCalls[0].sql).To(Equal(`SELECT count(*) FROM "records"`))
		})
	})

	Describe("Reset", func() {
		It("drops and recreates the table", func() {
			Expect(driver.Reset(ctx)).To(Succeed())

			Expect(db.execCalls[0].sql).To(ContainSubstring("DROP TABLE"))
			Expect(db.execCalls[1].sql).To(Equal("CREATE EXTENSION IF NOT EXISTS vector"))
			Expect(db.execCalls[2].sql).To(ContainSubstring("CREATE TABLE"))
		})
	})

	Describe("Close", func() {
		It("closes the pool", func() {
			Expect(driver.Close()).To(Succeed())
			Expect(db.closed).To(BeTrue())
		})
	})

	Describe("vectorLiteral", func() {
		It("renders the pgvector text format", func() {
			Expect(vectorLiteral([]float32{1, 0.5, -2})).To(Equal("[1,0.5,-2]"))
			Expect(vectorLiteral(nil)).To(Equal("[]"))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*Driver)(nil)
		})
	})
})
