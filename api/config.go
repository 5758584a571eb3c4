// Package api provides the HTTP surface over a configured vector store:
// REST routes for collections, records, and search, plus the MCP mount.
package api

import (
	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Provider names the configured backend. It labels mutation events.
	Provider string

	// Collection is the collection the bound store operates on. It labels
	// journal entries and mutation events.
	Collection string

	// Embedder turns text into vectors for text inserts and query search.
	// Optional; without it text-based requests are rejected.
	Embedder embeddings.Embedder

	// Journal records mutations when set.
	Journal history.Journal

	// Publisher emits mutation events when set.
	Publisher eventstream.Publisher
}
