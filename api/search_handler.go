package api

import (
	"github.com/gofiber/fiber/v2"
)

// DefaultSearchLimit is used when a search request does not set a limit.
const DefaultSearchLimit = 5

// SearchRequest is the body of POST /v1/search. Exactly one of Query or
// Vector must be present; Query requires a configured embedder.
type SearchRequest struct {
	Query   string         `json:"query,omitempty"`
	Vector  []float32      `json:"vector,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// ScoredRecordResponse is a search hit. Higher scores are more similar.
type ScoredRecordResponse struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResponse is the body returned by POST /v1/search, hits in the
// backend's ranking order.
type SearchResponse struct {
	Results []ScoredRecordResponse `json:"results"`
	Count   int                    `json:"count"`
}

// handleSearch runs a similarity search over the configured collection.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.Query == "" && len(req.Vector) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query or vector is required"})
	}

	queryVector := req.Vector
	if len(queryVector) == 0 {
		if s.config.Embedder == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "text search is not configured: an embedder is required",
			})
		}

		embedded, err := s.config.Embedder.Embed(c.Context(), req.Query)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
		queryVector = embedded
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results, err := s.store.Search(c.Context(), req.Query, queryVector, limit, req.Filters)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	hits := make([]ScoredRecordResponse, 0, len(results))
	for _, r := range results {
		hits = append(hits, ScoredRecordResponse{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	return c.JSON(SearchResponse{
		Results: hits,
		Count:   len(hits),
	})
}
