package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	apimcp "github.com/papercomputeco/spool/api/mcp"
	"github.com/papercomputeco/spool/pkg/vector"
)

// ErrorResponse is the JSON body returned on request failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server fronting a single vector store collection.
type Server struct {
	config Config
	store  vector.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store is injected to allow sharing with other components.
func NewServer(config Config, store vector.Driver, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("vector driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/collections", s.handleListCollections)
	app.Delete("/v1/collection", s.handleDeleteCollection)
	app.Get("/v1/collection/info", s.handleCollectionInfo)
	app.Post("/v1/records", s.handleInsertRecords)
	app.Get("/v1/records", s.handleListRecords)
	app.Get("/v1/records/:id", s.handleGetRecord)
	app.Put("/v1/records/:id", s.handleUpdateRecord)
	app.Delete("/v1/records/:id", s.handleDeleteRecord)
	app.Post("/v1/search", s.handleSearch)

	// The MCP server runs without tools when no embedder is configured, so
	// the mount is always live.
	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Store:      store,
		Embedder:   config.Embedder,
		Journal:    config.Journal,
		Collection: config.Collection,
		Noop:       config.Embedder == nil,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
