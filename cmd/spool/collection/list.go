package collectioncmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/logger"
)

const listLongDesc string = `List all collections visible to the configured credentials.

The active collection is marked in the listing.

Examples:
  spool collection list
  spool collection list --provider qdrant --target localhost:6334`

const listShortDesc string = "List collections"

type listCommander struct {
	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
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

func (c *listCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	names, err := driver.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No collections found.")
		return nil
	}

	active := c.v.GetString("vector_store.collection")

	fmt.Printf("\n%s\n\n", cliui.HeaderStyle.Render("Collections"))
	for _, name := range names {
		marker := " "
		if name == active {
			marker = cliui.SuccessMark
		}
		fmt.Printf("  %s %s\n", marker, cliui.NameStyle.Render(name))
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d collections", len(names))))
	return nil
}
