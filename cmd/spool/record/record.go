// Package recordcmder provides the record command group for working with
// individual records: get, update, delete, and history.
package recordcmder

import (
	"github.com/spf13/cobra"
)

const recordLongDesc string = `Work with individual records in the collection.

Records are addressed by id. Lookups miss with a not-found error, deletes
are idempotent, and updates overwrite only what you pass. When history is
enabled, every update and delete is journaled and can be replayed with
record history.

Examples:
  spool record get doc-1
  spool record update doc-1 --text "new content"
  spool record update doc-1 --payload '{"topic": "go"}'
  spool record delete doc-1
  spool record history doc-1`

const recordShortDesc string = "Work with individual records"

func NewRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: recordShortDesc,
		Long:  recordLongDesc,
	}

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}
