package collectioncmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/dotdir"
)

const useLongDesc string = `Make a collection the default for subsequent commands.

The selection is saved to .spool/context.json and used whenever no
collection is set by flag, environment variable, or config file. Run with
no arguments to show the current selection, or --clear to remove it.

Examples:
  spool collection use notes
  spool collection use
  spool collection use --clear`

const useShortDesc string = "Select the default collection"

type useCommander struct {
	name  string
	clear bool

	configDir string
}

func newUseCmd() *cobra.Command {
	cmder := &useCommander{}

	cmd := &cobra.Command{
		Use:   "use [collection]",
		Short: useShortDesc,
		Long:  useLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.name = args[0]
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run()
		},
	}

	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Clear the saved selection")

	return cmd
}

func (c *useCommander) run() error {
	ddm := dotdir.NewManager()

	if c.clear {
		if c.name != "" {
			return errors.New("cannot combine --clear with a collection name")
		}
		if err := ddm.ClearContext(c.configDir); err != nil {
			return fmt.Errorf("clearing context: %w", err)
		}
		fmt.Println("Context cleared. Commands use the configured collection.")
		return nil
	}

	if c.name == "" {
		state, err := ddm.LoadContextState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading context: %w", err)
		}
		if state == nil || state.Collection == "" {
			fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No collection selected. Commands use the configured collection."))
			return nil
		}
		fmt.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Using collection:"),
			cliui.NameStyle.Render(state.Collection),
		)
		return nil
	}

	if err := ddm.SaveContext(&dotdir.ContextState{Collection: c.name}, c.configDir); err != nil {
		return fmt.Errorf("saving context: %w", err)
	}

	fmt.Printf("\n  %s Now using collection %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.name),
	)
	return nil
}
