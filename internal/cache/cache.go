// Package cache answers repeat questions from previously generated answers,
// matched by embedding similarity rather than exact text.
package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/index"
	"github.com/housing-tools/handbook-qa/internal/model"
)

// Cache wraps the question cache in the index with the two-threshold
// admission policy: candidates are fetched above RetrieveThreshold, but only
// served when they clear AdmitThreshold.
type Cache struct {
	index             index.Index
	retrieveThreshold float64
	admitThreshold    float64
	topK              int
}

// New creates a Cache. Non-positive thresholds and topK fall back to the
// values the service ships with.
func New(idx index.Index, retrieveThreshold, admitThreshold float64, topK int) *Cache {
	if retrieveThreshold <= 0 {
		retrieveThreshold = 0.7
	}
	if admitThreshold <= 0 {
		admitThreshold = 0.9
	}
	if topK <= 0 {
		topK = 5
	}
	return &Cache{
		index:             idx,
		retrieveThreshold: retrieveThreshold,
		admitThreshold:    admitThreshold,
		topK:              topK,
	}
}

// Lookup returns the best cached answer for the embedded question, or nil on
// a miss. Lookup never fails the request: store errors are logged and
// reported as a miss, and anything below the admission threshold is ignored
// even though the store returned it.
func (c *Cache) Lookup(ctx context.Context, embedding []float32) *model.QuestionMatch {
	if len(embedding) == 0 {
		return nil
	}

	matches, err := c.index.MatchQuestions(ctx, embedding, c.retrieveThreshold, c.topK)
	if err != nil {
		zap.L().Error("cache lookup failed", zap.Error(err))
		return nil
	}

	for _, m := range matches {
		if m.Similarity >= c.admitThreshold && m.Answer != "" {
			zap.L().Info("cache hit",
				zap.String("id", m.ID),
				zap.Float64("similarity", m.Similarity),
			)
			hit := m
			return &hit
		}
	}
	return nil
}
