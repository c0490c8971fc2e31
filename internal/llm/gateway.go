package llm

import (
	"context"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeForEmbedding collapses all whitespace runs to single spaces and
// trims the result. Tiny formatting differences between otherwise identical
// questions would hurt cache recall.
func NormalizeForEmbedding(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Gateway wraps an Embedder, normalizing whitespace before each call. Empty
// input short-circuits to an empty vector without touching the provider.
type Gateway struct {
	embedder Embedder
}

// NewGateway creates an embedding Gateway.
func NewGateway(embedder Embedder) *Gateway {
	return &Gateway{embedder: embedder}
}

// Embed normalizes text and returns its embedding vector.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := NormalizeForEmbedding(text)
	if cleaned == "" {
		return nil, nil
	}
	return g.embedder.Embed(ctx, cleaned)
}
