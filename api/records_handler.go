package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/vector"
)

// InsertRecordsRequest is the body of POST /v1/records. Exactly one of
// Vectors or Texts must be present; Texts requires a configured embedder.
// IDs are generated when omitted.
type InsertRecordsRequest struct {
	Vectors  [][]float32      `json:"vectors,omitempty"`
	Texts    []string         `json:"texts,omitempty"`
	Payloads []map[string]any `json:"payloads,omitempty"`
	IDs      []string         `json:"ids,omitempty"`
}

// InsertRecordsResponse reports what was written.
type InsertRecordsResponse struct {
	Inserted int      `json:"inserted"`
	IDs      []string `json:"ids"`
}

// UpdateRecordRequest is the body of PUT /v1/records/:id. At least one of
// Vector, Text, or Payload must be present; Text requires a configured
// embedder. What a partial update does is up to the backend.
type UpdateRecordRequest struct {
	Vector  []float32      `json:"vector,omitempty"`
	Text    string         `json:"text,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// MutationResponse identifies the record a mutation touched.
type MutationResponse struct {
	ID string `json:"id"`
}

// RecordResponse is a stored record as returned by get and list.
type RecordResponse struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ListRecordsResponse is the body of GET /v1/records.
type ListRecordsResponse struct {
	Records []RecordResponse `json:"records"`
	Count   int              `json:"count"`
}

// handleInsertRecords stores a batch of records.
func (s *Server) handleInsertRecords(c *fiber.Ctx) error {
	var req InsertRecordsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if len(req.Vectors) == 0 && len(req.Texts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "vectors or texts are required"})
	}
	if len(req.Vectors) > 0 && len(req.Texts) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "vectors and texts are mutually exclusive"})
	}

	vectors := req.Vectors
	payloads := req.Payloads
	if len(req.Texts) > 0 {
		if s.config.Embedder == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "text inserts are not configured: an embedder is required",
			})
		}

		var err error
		vectors, payloads, err = s.embedTexts(c.Context(), req.Texts, req.Payloads)
		if err != nil {
			if errors.Is(err, vector.ErrBatchMismatch) {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
	}

	ids := req.IDs
	if len(ids) == 0 {
		ids = make([]string, len(vectors))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	if err := s.store.Insert(c.Context(), vectors, payloads, ids); err != nil {
		if errors.Is(err, vector.ErrBatchMismatch) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	for i, id := range ids {
		var payload map[string]any
		if i < len(payloads) {
			payload = payloads[i]
		}
		s.recordMutation(c.Context(), history.ActionCreated, eventstream.EventTypeRecordUpserted, id, payload)
	}

	return c.Status(fiber.StatusCreated).JSON(InsertRecordsResponse{
		Inserted: len(ids),
		IDs:      ids,
	})
}

// handleGetRecord returns a single record by id.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	id := c.Params("id")

	result, err := s.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(RecordResponse{
		ID:      result.ID,
		Payload: result.Payload,
	})
}

// handleUpdateRecord overwrites parts of an existing record.
func (s *Server) handleUpdateRecord(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if len(req.Vector) == 0 && req.Text == "" && req.Payload == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "vector, text, or payload is required"})
	}
	if len(req.Vector) > 0 && req.Text != "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "vector and text are mutually exclusive"})
	}

	vec := req.Vector
	payload := req.Payload
	if req.Text != "" {
		if s.config.Embedder == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "text updates are not configured: an embedder is required",
			})
		}

		embedded, err := s.config.Embedder.Embed(c.Context(), req.Text)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
		vec = embedded
		if payload == nil {
			payload = map[string]any{"text": req.Text}
		} else if _, ok := payload["text"]; !ok {
			payload["text"] = req.Text
		}
	}

	if err := s.store.Update(c.Context(), id, vec, payload); err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	s.recordMutation(c.Context(), history.ActionUpdated, eventstream.EventTypeRecordUpserted, id, payload)

	return c.JSON(MutationResponse{ID: id})
}

// handleDeleteRecord removes a record by id. Deleting an absent id
// succeeds.
func (s *Server) handleDeleteRecord(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.store.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	s.recordMutation(c.Context(), history.ActionDeleted, eventstream.EventTypeRecordDeleted, id, nil)

	return c.SendStatus(fiber.StatusNoContent)
}

// handleListRecords returns records whose payload matches the given
// filters.
// Query parameters:
//   - limit (optional): maximum number of records to return
//   - filter (optional, repeatable): key:value pair records must match
func (s *Server) handleListRecords(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	filters, err := parseFilterParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	results, err := s.store.List(c.Context(), filters, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	records := make([]RecordResponse, 0, len(results))
	for _, r := range results {
		records = append(records, RecordResponse{ID: r.ID, Payload: r.Payload})
	}

	return c.JSON(ListRecordsResponse{
		Records: records,
		Count:   len(records),
	})
}

// embedTexts builds insert vectors from texts. Each record's payload keeps
// the source text under "text" unless the caller set one.
func (s *Server) embedTexts(ctx context.Context, texts []string, payloads []map[string]any) ([][]float32, []map[string]any, error) {
	if payloads != nil && len(payloads) != len(texts) {
		return nil, nil, fmt.Errorf("%w: %d texts, %d payloads", vector.ErrBatchMismatch, len(texts), len(payloads))
	}

	vectors := make([][]float32, len(texts))
	out := make([]map[string]any, len(texts))
	for i, text := range texts {
		embedded, err := s.config.Embedder.Embed(ctx, text)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = embedded

		payload := map[string]any{}
		if payloads != nil && payloads[i] != nil {
			payload = payloads[i]
		}
		if _, ok := payload["text"]; !ok {
			payload["text"] = text
		}
		out[i] = payload
	}
	return vectors, out, nil
}

// recordMutation journals and publishes a mutation. Both are best-effort;
// failures are logged and never fail the request.
func (s *Server) recordMutation(ctx context.Context, action history.Action, eventType, recordID string, payload map[string]any) {
	if s.config.Journal != nil {
		if err := s.config.Journal.Append(ctx, s.config.Collection, recordID, action, payload); err != nil {
			s.logger.Warn("journaling mutation failed",
				"record_id", recordID,
				"action", action,
				"error", err,
			)
		}
	}

	if s.config.Publisher != nil {
		event := eventstream.NewRecordMutationEvent(eventType, s.config.Collection, s.config.Provider, recordID, payload)
		if err := s.config.Publisher.PublishMutation(ctx, event); err != nil {
			s.logger.Warn("publishing mutation event failed",
				"record_id", recordID,
				"event_type", eventType,
				"error", err,
			)
		}
	}
}

// parseFilterParams reads repeated filter=key:value query parameters.
// Values stay strings; backends compare them as written.
func parseFilterParams(c *fiber.Ctx) (map[string]any, error) {
	raw := c.Context().QueryArgs().PeekMulti("filter")
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(string(pair), ":")
		if !found || key == "" {
			return nil, fmt.Errorf("filter must be key:value, got %q", string(pair))
		}
		filters[key] = value
	}
	return filters, nil
}
