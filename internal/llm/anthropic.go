package llm

import (
	"context"

	"github.com/housing-tools/handbook-qa/pkg/anthropic"
)

// AnthropicGenerator adapts an anthropic.Client to the Generator capability.
type AnthropicGenerator struct {
	client anthropic.Client
}

// NewAnthropicGenerator creates a Generator backed by the Anthropic API.
func NewAnthropicGenerator(client anthropic.Client) *AnthropicGenerator {
	return &AnthropicGenerator{client: client}
}

// Generate asks the named model for a completion of prompt.
func (g *AnthropicGenerator) Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     model,
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
