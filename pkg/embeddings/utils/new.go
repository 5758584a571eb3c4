// Package embeddingutils builds embedders from provider-agnostic options.
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/embeddings/ollama"
	"github.com/papercomputeco/spool/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	// Provider names the backend: ollama or openai.
	Provider string

	// TargetURL overrides the provider's API endpoint.
	TargetURL string

	// APIKey authenticates against managed providers.
	APIKey string

	Model      string
	Dimensions int
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.Provider {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.Provider)
	}
}
