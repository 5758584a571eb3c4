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

const createLongDesc string = `Create the configured collection if it does not already exist.

Creation is check-then-create: the backend is asked whether the collection
exists and it is created only when absent, so re-running the command is
safe. Dimensions and metric apply only at creation; existing collections
keep their settings.

Examples:
  spool collection create
  spool collection create --collection notes --dimensions 768 --metric cosine`

const createShortDesc string = "Create the collection if missing"

type createCommander struct {
	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newCreateCmd() *cobra.Command {
	cmder := &createCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: createShortDesc,
		Long:  createLongDesc,
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

func (c *createCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	collection := c.v.GetString("vector_store.collection")

	if err := cliui.Step(os.Stdout, fmt.Sprintf("Ensuring collection %q", collection), func() error {
		return driver.EnsureCollection(ctx)
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Collection %s ready\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(collection),
	)
	return nil
}
