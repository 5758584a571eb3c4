package collectioncmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/logger"
)

const resetLongDesc string = `Drop and recreate the configured collection.

All records are removed. The collection is recreated with the configured
dimensions and metric.

Examples:
  spool collection reset
  spool collection reset --collection scratch`

const resetShortDesc string = "Drop and recreate the collection"

type resetCommander struct {
	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newResetCmd() *cobra.Command {
	cmder := &resetCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: resetShortDesc,
		Long:  resetLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := wiring.InitCommand(cmd, registered)
			if err != nil {
				return err
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	registered = wiring.RegisterStoreFlags(cmd, &cmder.store)

	return cmd
}

func (c *resetCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	collection := c.v.GetString("vector_store.collection")

	if err := cliui.Step(os.Stdout, fmt.Sprintf("Resetting collection %q", collection), func() error {
		return driver.Reset(ctx)
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Reset collection %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(collection),
	)
	return nil
}
