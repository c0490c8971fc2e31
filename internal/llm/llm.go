// Package llm defines the narrow capabilities the pipeline needs from language
// model providers, so the core can be tested with deterministic fakes.
package llm

import "context"

// Embedder converts text into a fixed-length embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces answer text from a prompt with the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}
