// Package insertcmder provides the insert command for loading records into
// the configured collection from JSONL input.
package insertcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
)

const insertLongDesc string = `Insert records from a JSONL file or stdin.

Each line is one record:
  {"id": "doc-1", "text": "content to embed", "payload": {"topic": "go"}}
  {"id": "doc-2", "vector": [0.1, 0.2], "payload": {"topic": "raw"}}

Records with "text" are embedded with the configured embedder and the text
is kept in the payload under "text". Records with "vector" are inserted
as-is. Missing ids are generated. The collection is created when absent.

When history is enabled each insert is journaled, and a record mutation
event is published to the configured event stream.

Examples:
  spool insert ./records.jsonl
  cat records.jsonl | spool insert
  spool insert ./records.jsonl --collection notes --history`

const insertShortDesc string = "Insert records from JSONL"

// jsonlRecord is one line of insert input: text to embed or a ready-made
// vector, with optional id and payload.
type jsonlRecord struct {
	ID      string         `json:"id,omitempty"`
	Text    string         `json:"text,omitempty"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type insertCommander struct {
	path string

	store     wiring.StoreFlags
	embedding wiring.EmbeddingFlags
	mutation  wiring.MutationFlags

	debug bool
	v     *viper.Viper
}

func NewInsertCmd() *cobra.Command {
	cmder := &insertCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "insert [file]",
		Short: insertShortDesc,
		Long:  insertLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := wiring.InitCommand(cmd, registered)
			if err != nil {
				return err
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.path = args[0]
			}
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	registered = wiring.RegisterStoreFlags(cmd, &cmder.store)
	registered = append(registered, wiring.RegisterEmbeddingFlags(cmd, &cmder.embedding)...)
	registered = append(registered, wiring.RegisterMutationFlags(cmd, &cmder.mutation)...)

	return cmd
}

func (c *insertCommander) run(ctx context.Context) error {
	records, err := c.readRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no records to insert")
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	if pending := countPending(records); pending > 0 {
		var embedder embeddings.Embedder
		embedder, err = wiring.BuildEmbedder(c.v)
		if err != nil {
			return fmt.Errorf("building embedder: %w", err)
		}
		defer embedder.Close()

		if err := cliui.Step(os.Stdout, fmt.Sprintf("Embedding %d records", pending), func() error {
			return embedRecords(ctx, embedder, records)
		}); err != nil {
			return err
		}
	}

	vectors := make([][]float32, 0, len(records))
	payloads := make([]map[string]any, 0, len(records))
	ids := make([]string, 0, len(records))

	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		payload := rec.Payload
		if rec.Text != "" {
			if payload == nil {
				payload = map[string]any{}
			}
			if _, ok := payload["text"]; !ok {
				payload["text"] = rec.Text
			}
		}

		vectors = append(vectors, rec.Vector)
		payloads = append(payloads, payload)
		ids = append(ids, rec.ID)
	}

	collection := c.v.GetString("vector_store.collection")

	if err := cliui.Step(os.Stdout, fmt.Sprintf("Inserting into %q", collection), func() error {
		if err := driver.EnsureCollection(ctx); err != nil {
			return err
		}
		return driver.Insert(ctx, vectors, payloads, ids)
	}); err != nil {
		return err
	}

	mut, err := wiring.BuildMutators(c.v, log)
	if err != nil {
		return err
	}
	defer mut.Close()

	for i, id := range ids {
		mut.Record(ctx, id, history.ActionCreated, eventstream.EventTypeRecordUpserted, payloads[i])
	}

	fmt.Printf("\n  %s Inserted %s records into %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(len(ids))),
		cliui.NameStyle.Render(collection),
	)
	return nil
}

func (c *insertCommander) readRecords() ([]jsonlRecord, error) {
	if c.path == "" || c.path == "-" {
		return parseRecords(os.Stdin)
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.path, err)
	}
	defer f.Close()

	return parseRecords(f)
}

// parseRecords reads JSONL input, one record per line. Blank lines are
// skipped. Every record needs text or a vector.
func parseRecords(r io.Reader) ([]jsonlRecord, error) {
	var records []jsonlRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if rec.Text == "" && len(rec.Vector) == 0 {
			return nil, fmt.Errorf("line %d: text or vector is required", n)
		}

		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	return records, nil
}

// countPending counts records that still need an embedding.
func countPending(records []jsonlRecord) int {
	pending := 0
	for i := range records {
		if records[i].Text != "" && len(records[i].Vector) == 0 {
			pending++
		}
	}
	return pending
}

// embedRecords fills in the vector for every record that arrived as text.
// Records that already carry a vector are left alone.
func embedRecords(ctx context.Context, embedder embeddings.Embedder, records []jsonlRecord) error {
	for i := range records {
		rec := &records[i]
		if rec.Text == "" || len(rec.Vector) > 0 {
			continue
		}

		vec, err := embedder.Embed(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("embedding record %d: %w", i+1, err)
		}
		rec.Vector = vec
	}
	return nil
}
