package ai

import "context"

// Backend performs a single completion call against one LLM provider.
// Implementations must be thread-safe for concurrent use and should not
// retry internally; the Client owns retry and rate policy.
type Backend interface {
	// Complete sends one prompt and returns the model's text response.
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Embedder generates vector embeddings from text for semantic search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch.
	// The returned slice preserves input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
