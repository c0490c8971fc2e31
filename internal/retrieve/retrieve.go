// Package retrieve selects handbook passages relevant to an embedded
// question and shapes them into prompt context and citations.
package retrieve

import (
	"context"

	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/index"
	"github.com/housing-tools/handbook-qa/internal/model"
)

// Retriever fetches the top matching chunks for a question embedding.
type Retriever struct {
	index          index.Index
	topK           int
	fallbackSource string
}

// New creates a Retriever. fallbackSource labels citations for chunks that
// were stored without a source document name.
func New(idx index.Index, topK int, fallbackSource string) *Retriever {
	if topK <= 0 {
		topK = 6
	}
	return &Retriever{index: idx, topK: topK, fallbackSource: fallbackSource}
}

// Context bundles retrieved passages with the citations they support.
type Context struct {
	Passages  []string
	Citations []model.Citation
}

// Fetch returns prompt context for the embedded question. Retrieval is best
// effort: store errors are logged and produce an empty context, which the
// answer layer turns into an "I don't know" style response rather than a 500.
func (r *Retriever) Fetch(ctx context.Context, embedding []float32) Context {
	if len(embedding) == 0 {
		return Context{}
	}

	matches, err := r.index.MatchChunks(ctx, embedding, r.topK)
	if err != nil {
		zap.L().Error("chunk retrieval failed", zap.Error(err))
		return Context{}
	}

	out := Context{
		Passages:  make([]string, 0, len(matches)),
		Citations: make([]model.Citation, 0, len(matches)),
	}
	for _, m := range matches {
		source := m.Source
		if source == "" {
			source = r.fallbackSource
		}
		out.Passages = append(out.Passages, m.Content)
		out.Citations = append(out.Citations, model.Citation{
			Source:  source,
			Page:    m.Page,
			Section: m.Section,
		})
	}
	return out
}
