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

const dropLongDesc string = `Delete the configured collection and all of its records.

Dropping a collection that does not exist is not an error, so drops are
safe to retry.

Examples:
  spool collection drop
  spool collection drop --collection scratch`

const dropShortDesc string = "Delete the collection"

type dropCommander struct {
	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newDropCmd() *cobra.Command {
	cmder := &dropCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "drop",
		Short: dropShortDesc,
		Long:  dropLongDesc,
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

func (c *dropCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	collection := c.v.GetString("vector_store.collection")

	if err := cliui.Step(os.Stdout, fmt.Sprintf("Dropping collection %q", collection), func() error {
		return driver.DeleteCollection(ctx)
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Dropped collection %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(collection),
	)
	return nil
}
