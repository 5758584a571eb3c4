package api

import (
	"github.com/gofiber/fiber/v2"
)

// CollectionsResponse lists the collections visible to the configured
// credentials.
type CollectionsResponse struct {
	Collections []string `json:"collections"`
	Count       int      `json:"count"`
}

// CollectionInfoResponse describes the configured collection. Fields the
// backend does not report are omitted.
type CollectionInfoResponse struct {
	Name       string         `json:"name"`
	Dimensions int            `json:"dimensions,omitempty"`
	Metric     string         `json:"metric,omitempty"`
	Count      int64          `json:"count"`
	Status     string         `json:"status,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListCollections returns the names of all collections.
func (s *Server) handleListCollections(c *fiber.Ctx) error {
	names, err := s.store.ListCollections(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	if names == nil {
		names = []string{}
	}

	return c.JSON(CollectionsResponse{
		Collections: names,
		Count:       len(names),
	})
}

// handleDeleteCollection removes the configured collection and its records.
func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	if err := s.store.DeleteCollection(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Info("collection deleted", "collection", s.config.Collection)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCollectionInfo describes the configured collection.
func (s *Server) handleCollectionInfo(c *fiber.Ctx) error {
	info, err := s.store.CollectionInfo(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(CollectionInfoResponse{
		Name:       info.Name,
		Dimensions: info.Dimensions,
		Metric:     string(info.Metric),
		Count:      info.Count,
		Status:     info.Status,
		Extra:      info.Extra,
	})
}
