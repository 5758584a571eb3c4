package recordcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
)

const updateLongDesc string = `Update parts of an existing record.

Pass --text to re-embed new content, --vector for a raw embedding, or
--payload to replace the metadata. What happens to fields you do not pass
depends on the backend: stores with a native partial update keep them,
stores that only upsert may clear them.

Examples:
  spool record update doc-1 --text "revised content"
  spool record update doc-1 --vector '[0.1, 0.2, 0.3]'
  spool record update doc-1 --payload '{"topic": "go", "reviewed": true}'
  spool record update doc-1 --text "revised" --payload '{"rev": 2}'`

const updateShortDesc string = "Update parts of a record"

type updateCommander struct {
	id         string
	text       string
	rawVec     string
	rawPayload string

	store     wiring.StoreFlags
	embedding wiring.EmbeddingFlags
	mutation  wiring.MutationFlags

	debug bool
	v     *viper.Viper
}

func newUpdateCmd() *cobra.Command {
	cmder := &updateCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: updateShortDesc,
		Long:  updateLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := wiring.InitCommand(cmd, registered)
			if err != nil {
				return err
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.id = args[0]
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.text, "text", "", "New content to embed")
	cmd.Flags().StringVar(&cmder.rawVec, "vector", "", "New embedding as a JSON array")
	cmd.Flags().StringVar(&cmder.rawPayload, "payload", "", "New payload as a JSON object")
	cmd.MarkFlagsMutuallyExclusive("text", "vector")

	registered = wiring.RegisterStoreFlags(cmd, &cmder.store)
	registered = append(registered, wiring.RegisterEmbeddingFlags(cmd, &cmder.embedding)...)
	registered = append(registered, wiring.RegisterMutationFlags(cmd, &cmder.mutation)...)

	return cmd
}

func (c *updateCommander) run(ctx context.Context) error {
	if c.text == "" && c.rawVec == "" && c.rawPayload == "" {
		return errors.New("nothing to update: pass --text, --vector, or --payload")
	}

	var vec []float32
	if c.rawVec != "" {
		if err := json.Unmarshal([]byte(c.rawVec), &vec); err != nil {
			return fmt.Errorf("parsing --vector: %w", err)
		}
	}

	var payload map[string]any
	if c.rawPayload != "" {
		if err := json.Unmarshal([]byte(c.rawPayload), &payload); err != nil {
			return fmt.Errorf("parsing --payload: %w", err)
		}
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	if c.text != "" {
		embedder, err := wiring.BuildEmbedder(c.v)
		if err != nil {
			return fmt.Errorf("building embedder: %w", err)
		}
		defer embedder.Close()

		vec, err = embedder.Embed(ctx, c.text)
		if err != nil {
			return fmt.Errorf("embedding text: %w", err)
		}

		if payload == nil {
			payload = map[string]any{}
		}
		if _, ok := payload["text"]; !ok {
			payload["text"] = c.text
		}
	}

	if err := driver.Update(ctx, c.id, vec, payload); err != nil {
		return fmt.Errorf("updating record %q: %w", c.id, err)
	}

	mut, err := wiring.BuildMutators(c.v, log)
	if err != nil {
		return err
	}
	defer mut.Close()

	mut.Record(ctx, c.id, history.ActionUpdated, eventstream.EventTypeRecordUpserted, payload)

	fmt.Printf("\n  %s Updated record %s\n\n",
		cliui.SuccessMark,
		cliui.IDStyle.Render(c.id),
	)
	return nil
}
