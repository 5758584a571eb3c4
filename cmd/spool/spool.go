// Package spoolcmder assembles the spool root command.
package spoolcmder

import (
	"github.com/spf13/cobra"

	collectioncmder "github.com/papercomputeco/spool/cmd/spool/collection"
	configcmder "github.com/papercomputeco/spool/cmd/spool/config"
	initcmder "github.com/papercomputeco/spool/cmd/spool/init"
	insertcmder "github.com/papercomputeco/spool/cmd/spool/insert"
	recordcmder "github.com/papercomputeco/spool/cmd/spool/record"
	searchcmder "github.com/papercomputeco/spool/cmd/spool/search"
	servecmder "github.com/papercomputeco/spool/cmd/spool/serve"
	versioncmder "github.com/papercomputeco/spool/cmd/version"
)

const spoolLongDesc string = `Spool is one CLI for many vector stores.

Point it at sqlite-vec, Chroma, Qdrant, Pinecone, or pgvector and get the
same collection, record, and search commands everywhere.

Common tasks:
  spool init --preset local      Set up a local sqlite-vec store
  spool collection create        Create the configured collection
  spool insert ./records.jsonl   Embed and insert records
  spool search "query text"      Semantic search over the collection
  spool serve                    Run the HTTP API and MCP server`

const spoolShortDesc string = "Spool - one CLI for many vector stores"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .spool/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(collectioncmder.NewCollectionCmd())
	cmd.AddCommand(insertcmder.NewInsertCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(recordcmder.NewRecordCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
