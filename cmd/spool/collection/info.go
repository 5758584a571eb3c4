package collectioncmder

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/logger"
)

const infoLongDesc string = `Show details for the configured collection.

Prints the fields the backend reports: dimensions, metric, record count,
and status. Anything backend-specific is listed under backend details.

Examples:
  spool collection info
  spool collection info --collection notes`

const infoShortDesc string = "Show collection details"

type infoCommander struct {
	store wiring.StoreFlags

	debug bool
	v     *viper.Viper
}

func newInfoCmd() *cobra.Command {
	cmder := &infoCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "info",
		Short: infoShortDesc,
		Long:  infoLongDesc,
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

func (c *infoCommander) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	info, err := driver.CollectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("describing collection: %w", err)
	}

	rows := [][2]string{{"Name", info.Name}}
	if info.Dimensions > 0 {
		rows = append(rows, [2]string{"Dimensions", strconv.Itoa(info.Dimensions)})
	}
	if info.Metric != "" {
		rows = append(rows, [2]string{"Metric", string(info.Metric)})
	}
	rows = append(rows, [2]string{"Count", strconv.FormatInt(info.Count, 10)})
	if info.Status != "" {
		rows = append(rows, [2]string{"Status", info.Status})
	}

	fmt.Println()
	for _, row := range rows {
		fmt.Printf("  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-11s", row[0])),
			cliui.ValueStyle.Render(row[1]),
		)
	}

	if len(info.Extra) > 0 {
		keys := make([]string, 0, len(info.Extra))
		for k := range info.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Printf("\n  %s\n", cliui.DimStyle.Render("Backend details"))
		for _, k := range keys {
			fmt.Printf("  %s  %s\n",
				cliui.KeyStyle.Render(fmt.Sprintf("%-11s", k)),
				cliui.DimStyle.Render(fmt.Sprint(info.Extra[k])),
			)
		}
	}
	fmt.Println()
	return nil
}
