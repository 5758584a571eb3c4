package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	historyToolName    = "record_history"
	historyDescription = "Recall the mutation history of a record. Given a record id, returns its journaled create, update, and delete entries oldest first."
)

// HistoryInput represents the input arguments for the record_history tool.
type HistoryInput struct {
	ID string `json:"id" jsonschema:"the record id to recall mutation history for"`
}

// HistoryEntry is one journaled mutation.
type HistoryEntry struct {
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// HistoryOutput represents the structured output of a history recall.
type HistoryOutput struct {
	ID      string         `json:"id"`
	Entries []HistoryEntry `json:"entries"`
}

// handleHistory processes a record history request via MCP.
func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	if input.ID == "" {
		return toolError("id is required"), HistoryOutput{}, nil
	}

	journaled, err := s.config.Journal.ByRecord(ctx, s.config.Collection, input.ID)
	if err != nil {
		return toolError(fmt.Sprintf("History recall failed: %v", err)), HistoryOutput{}, nil
	}

	entries := make([]HistoryEntry, 0, len(journaled))
	for _, entry := range journaled {
		entries = append(entries, HistoryEntry{
			Action:    string(entry.Action),
			Payload:   entry.Payload,
			CreatedAt: entry.CreatedAt,
		})
	}

	output := HistoryOutput{
		ID:      input.ID,
		Entries: entries,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), HistoryOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
