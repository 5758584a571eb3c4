// Package mcp provides an MCP (Model Context Protocol) server over the
// spool vector store.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/utils"
	"github.com/papercomputeco/spool/pkg/vector"
)

type Config struct {
	// Store is the vector store backing the search and store tools
	Store vector.Driver

	// Embedder converts tool text inputs to vectors for the configured Store
	Embedder embeddings.Embedder

	// Journal enables the record_history tool when set (optional)
	Journal history.Journal

	// Collection scopes journal lookups
	Collection string

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search and store tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "spool",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Store == nil {
			return nil, errors.New("vector driver is required")
		}
		if c.Embedder == nil {
			return nil, errors.New("embedder is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		// Add tools
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        storeToolName,
			Description: storeDescription,
		}, s.handleStore)

		// Add the history tool if a journal is configured
		if c.Journal != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        historyToolName,
				Description: historyDescription,
			}, s.handleHistory)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations.
	// A noop server still answers initialize and tools/list, so the handler
	// always exists.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
