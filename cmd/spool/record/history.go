package recordcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
)

const historyLongDesc string = `Show the mutation history of a record.

Prints every journaled insert, update, and delete for the record, oldest
first. Requires history to be enabled (it is by default; see history.enabled
in the config).

Examples:
  spool record history doc-1
  spool record history doc-1 --history-path ./journal.db`

const historyShortDesc string = "Show a record's mutation history"

type historyCommander struct {
	id string

	store    wiring.StoreFlags
	mutation wiring.MutationFlags

	debug bool
	v     *viper.Viper
}

func newHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: historyShortDesc,
		Long:  historyLongDesc,
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

	registered = wiring.RegisterStoreFlags(cmd, &cmder.store)
	registered = append(registered, wiring.RegisterMutationFlags(cmd, &cmder.mutation)...)

	return cmd
}

func (c *historyCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	journal, err := wiring.BuildJournal(c.v, log)
	if err != nil {
		return fmt.Errorf("opening history journal: %w", err)
	}
	if journal == nil {
		return errors.New("history is disabled: enable it with --history or history.enabled")
	}
	defer journal.Close()

	collection := c.v.GetString("vector_store.collection")

	entries, err := journal.ByRecord(ctx, collection, c.id)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No history for record.")
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("History for"),
		cliui.IDStyle.Render(c.id),
	)

	for _, entry := range entries {
		printEntry(entry)
	}

	fmt.Printf("%s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d entries", len(entries))))
	return nil
}

func printEntry(entry history.Entry) {
	fmt.Printf("  %s  %s",
		cliui.DimStyle.Render(entry.CreatedAt.Format("2006-01-02 15:04:05")),
		actionStyle(entry.Action).Render(fmt.Sprintf("%-8s", entry.Action)),
	)

	if len(entry.Payload) > 0 {
		if raw, err := json.Marshal(entry.Payload); err == nil {
			fmt.Printf("  %s", cliui.ValueStyle.Render(string(raw)))
		}
	}

	fmt.Println()
}

func actionStyle(action history.Action) lipgloss.Style {
	switch action {
	case history.ActionCreated:
		return cliui.NameStyle
	case history.ActionDeleted:
		return cliui.WarnStyle
	default:
		return cliui.KeyStyle
	}
}
