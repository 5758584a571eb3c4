// Package servecmder provides the serve command for running the spool API
// server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/api"
	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/logger"
)

const serveLongDesc string = `Run the spool API server.

Serves the REST API and the MCP mount over the configured vector store:

  GET    /ping                   liveness check
  GET    /v1/collections         list collections
  DELETE /v1/collection          drop the configured collection
  GET    /v1/collection/info     describe the configured collection
  POST   /v1/records             insert records
  GET    /v1/records             list records (filterable)
  GET    /v1/records/:id         fetch a record
  PUT    /v1/records/:id         update a record
  DELETE /v1/records/:id         delete a record
  POST   /v1/search              similarity search
  *      /mcp                    MCP server (tools need an embedder)

Text inserts and query search need the configured embedder; set
embedding-provider to an empty string to serve vector-only traffic.

Examples:
  spool serve
  spool serve --listen :9090 --collection notes
  spool serve --provider qdrant --target localhost:6334`

const serveShortDesc string = "Run the spool API server"

type serveCommander struct {
	listen string

	store     wiring.StoreFlags
	embedding wiring.EmbeddingFlags
	mutation  wiring.MutationFlags

	debug bool
	v     *viper.Viper
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, wiring.Flags, config.FlagAPIListen, &cmder.listen)
	registered = append(registered, config.FlagAPIListen)
	registered = append(registered, wiring.RegisterStoreFlags(cmd, &cmder.store)...)
	registered = append(registered, wiring.RegisterEmbeddingFlags(cmd, &cmder.embedding)...)
	registered = append(registered, wiring.RegisterMutationFlags(cmd, &cmder.mutation)...)

	return cmd
}

func (c *serveCommander) run() error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	var embedder embeddings.Embedder
	if c.v.GetString("embedding.provider") != "" {
		embedder, err = wiring.BuildEmbedder(c.v)
		if err != nil {
			return fmt.Errorf("building embedder: %w", err)
		}
		defer embedder.Close()
	}

	journal, err := wiring.BuildJournal(c.v, log)
	if err != nil {
		return fmt.Errorf("opening history journal: %w", err)
	}
	if journal != nil {
		defer journal.Close()
	}

	publisher, err := wiring.BuildPublisher(c.v, log)
	if err != nil {
		return fmt.Errorf("building event publisher: %w", err)
	}
	defer publisher.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.v.GetString("api.listen"),
		Provider:   c.v.GetString("vector_store.provider"),
		Collection: c.v.GetString("vector_store.collection"),
		Embedder:   embedder,
		Journal:    journal,
		Publisher:  publisher,
	}, driver, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
	case sig := <-quit:
		log.Info("received shutdown signal", "signal", sig.String())
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
	}

	return nil
}
