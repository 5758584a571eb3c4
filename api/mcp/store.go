package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	storeToolName    = "store"
	storeDescription = "Store a text snippet in the spool collection. The text is embedded and inserted as a new record with an optional metadata payload."
)

// StoreInput represents the input arguments for the store tool.
type StoreInput struct {
	Content string         `json:"content" jsonschema:"the text content to embed and store"`
	ID      string         `json:"id,omitempty" jsonschema:"record id (generated when omitted)"`
	Payload map[string]any `json:"payload,omitempty" jsonschema:"metadata to attach to the record"`
}

// StoreOutput represents the structured output of the store tool.
type StoreOutput struct {
	ID string `json:"id"`
}

// handleStore embeds the content and inserts it as one record.
func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	logger := s.config.Logger

	if input.Content == "" {
		return toolError("content is required"), StoreOutput{}, nil
	}

	embedded, err := s.config.Embedder.Embed(ctx, input.Content)
	if err != nil {
		logger.Error("failed to embed content", "error", err)
		return toolError(fmt.Sprintf("Failed to embed content: %v", err)), StoreOutput{}, nil
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	payload := input.Payload
	if payload == nil {
		payload = map[string]any{"text": input.Content}
	} else if _, ok := payload["text"]; !ok {
		payload["text"] = input.Content
	}

	if err := s.config.Store.Insert(ctx,
		[][]float32{embedded},
		[]map[string]any{payload},
		[]string{id},
	); err != nil {
		logger.Error("failed to insert record", "error", err)
		return toolError(fmt.Sprintf("Failed to store record: %v", err)), StoreOutput{}, nil
	}

	logger.Debug("MCP stored record", "id", id)

	output := StoreOutput{ID: id}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), StoreOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
