// Package embeddings defines the text embedding contract used to turn
// record text and search queries into vectors.
package embeddings

import "context"

// Embedder converts text into dense vectors. Implementations live in the
// provider subpackages (ollama, openai).
type Embedder interface {
	// Embed converts text into a vector embedding. The returned vector
	// length must match the configured collection dimensionality.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
