package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the spool collection using semantic search. Returns the most similar records with their payloads and similarity scores."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query   string         `json:"query" jsonschema:"the search query text to find similar records"`
	Limit   int            `json:"limit,omitempty" jsonschema:"number of results to return (default: 5)"`
	Filters map[string]any `json:"filters,omitempty" jsonschema:"payload key/value pairs results must match"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return toolError("query is required"), SearchOutput{}, nil
	}

	// Default limit if not specified
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"limit", limit,
	)

	// Embed the query
	queryVector, err := s.config.Embedder.Embed(ctx, input.Query)
	if err != nil {
		logger.Error("failed to embed query", "error", err)
		return toolError(fmt.Sprintf("Failed to embed query: %v", err)), SearchOutput{}, nil
	}

	// Query the vector store
	results, err := s.config.Store.Search(ctx, input.Query, queryVector, limit, input.Filters)
	if err != nil {
		logger.Error("failed to search vector store", "error", err)
		return toolError(fmt.Sprintf("Failed to search vector store: %v", err)), SearchOutput{}, nil
	}

	hits := make([]SearchHit, 0, len(results))
	for _, result := range results {
		hits = append(hits, SearchHit{
			ID:      result.ID,
			Score:   result.Score,
			Payload: result.Payload,
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: hits,
		Count:   len(hits),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// toolError wraps a message in an error-flagged tool result.
func toolError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
	}
}
