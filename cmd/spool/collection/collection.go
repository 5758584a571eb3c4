// Package collectioncmder provides the collection command group for managing
// vector store collections.
package collectioncmder

import (
	"github.com/spf13/cobra"
)

const collectionLongDesc string = `Manage vector store collections.

Commands resolve the collection from the --collection flag, the
SPOOL_VECTOR_STORE_COLLECTION environment variable, the config file, or the
context saved by "spool collection use", in that order.

Use subcommands to create, inspect, and remove collections:
  spool collection create        Create the collection if it does not exist
  spool collection list          List all collections
  spool collection info          Show details for the collection
  spool collection use <name>    Make a collection the default for commands
  spool collection reset         Drop and recreate the collection
  spool collection drop          Delete the collection and its records

Examples:
  spool collection create --collection notes --dimensions 768
  spool collection use notes
  spool collection info`

const collectionShortDesc string = "Manage vector store collections"

func NewCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: collectionShortDesc,
		Long:  collectionLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newDropCmd())

	return cmd
}
