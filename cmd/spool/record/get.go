package recordcmder

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/logger"
)

const getLongDesc string = `Fetch a record by id.

Prints the record's payload. A missing id is an error, so exit status
distinguishes present from absent.

Examples:
  spool record get doc-1
  spool record get doc-1 --collection notes`

const getShortDesc string = "Fetch a record by id"

type getCommander struct {
	id string

	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newGetCmd() *cobra.Command {
	cmder := &getCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: getShortDesc,
		Long:  getLongDesc,
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

	return cmd
}

func (c *getCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	result, err := driver.Get(ctx, c.id)
	if err != nil {
		return fmt.Errorf("record %q: %w", c.id, err)
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("Record"),
		cliui.IDStyle.Render(result.ID),
	)

	if len(result.Payload) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("(no payload)"))
		return nil
	}

	keys := make([]string, 0, len(result.Payload))
	for k := range result.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-11s", k)),
			cliui.ValueStyle.Render(fmt.Sprintf("%v", result.Payload[k])),
		)
	}
	fmt.Println()

	return nil
}
