package recordcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
)

const deleteLongDesc string = `Delete a record by id.

Deletes are idempotent: removing an id that does not exist succeeds, so
the command is safe to re-run.

Examples:
  spool record delete doc-1
  spool record delete doc-1 --collection notes`

const deleteShortDesc string = "Delete a record by id"

type deleteCommander struct {
	id string

	store    wiring.StoreFlags
	mutation wiring.MutationFlags

	debug bool
	v     *viper.Viper
}

func newDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
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

func (c *deleteCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	if err := driver.Delete(ctx, c.id); err != nil {
		return fmt.Errorf("deleting record %q: %w", c.id, err)
	}

	mut, err := wiring.BuildMutators(c.v, log)
	if err != nil {
		return err
	}
	defer mut.Close()

	mut.Record(ctx, c.id, history.ActionDeleted, eventstream.EventTypeRecordDeleted, nil)

	fmt.Printf("\n  %s Deleted record %s\n\n",
		cliui.SuccessMark,
		cliui.IDStyle.Render(c.id),
	)
	return nil
}
