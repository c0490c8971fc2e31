// Package answer orchestrates the full question-answering flow: rate
// limiting, embedding, semantic cache, context retrieval, tiered generation
// and citation assembly.
package answer

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/cache"
	"github.com/housing-tools/handbook-qa/internal/config"
	"github.com/housing-tools/handbook-qa/internal/llm"
	"github.com/housing-tools/handbook-qa/internal/model"
	"github.com/housing-tools/handbook-qa/internal/ratelimit"
	"github.com/housing-tools/handbook-qa/internal/retrieve"
)

// Sentinel errors the HTTP layer maps to status codes.
var (
	ErrRateLimited   = eris.New("answer: too many requests")
	ErrEmptyQuestion = eris.New("answer: empty question")
	ErrEmbedding     = eris.New("answer: embedding failed")
	ErrGeneration    = eris.New("answer: generation failed")
)

// apologyAnswer covers the case where both models return without error but
// produce no text. Served as a normal 200 so clients render it like any
// other answer.
const apologyAnswer = "I couldn't compose an answer from the provided residence materials."

// Service answers handbook questions.
type Service struct {
	embedder   llm.Embedder
	generator  llm.Generator
	cache      *cache.Cache
	writer     *cache.Writer
	retriever  *retrieve.Retriever
	limiter    ratelimit.Limiter
	gen        config.GenerationConfig
	docVersion string
}

// New wires a Service. limiter may be nil, in which case requests are never
// throttled (used by the cache warming command).
func New(
	embedder llm.Embedder,
	generator llm.Generator,
	qaCache *cache.Cache,
	writer *cache.Writer,
	retriever *retrieve.Retriever,
	limiter ratelimit.Limiter,
	gen config.GenerationConfig,
	docVersion string,
) *Service {
	return &Service{
		embedder:   embedder,
		generator:  generator,
		cache:      qaCache,
		writer:     writer,
		retriever:  retriever,
		limiter:    limiter,
		gen:        gen,
		docVersion: docVersion,
	}
}

// Ask answers a question for the client identified by clientIP.
func (s *Service) Ask(ctx context.Context, question, clientIP string) (*model.AskResponse, error) {
	if s.limiter != nil && !s.limiter.Allow(clientIP) {
		return nil, ErrRateLimited
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil || len(embedding) == 0 {
		zap.L().Error("question embedding failed", zap.Error(err))
		if err != nil {
			return nil, errors.Join(ErrEmbedding, err)
		}
		return nil, ErrEmbedding
	}

	if hit := s.cache.Lookup(ctx, embedding); hit != nil {
		s.writer.RecordHit(hit.ID)
		citations := hit.Citations
		if citations == nil {
			citations = []model.Citation{}
		}
		return &model.AskResponse{
			Answer:    hit.Answer,
			Citations: citations,
			Cached:    true,
		}, nil
	}

	retrieved := s.retriever.Fetch(ctx, embedding)
	prompt := BuildPrompt(question, retrieved.Passages)

	answerText, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if answerText == "" {
		return &model.AskResponse{Answer: apologyAnswer, Citations: []model.Citation{}}, nil
	}

	citations := retrieve.DedupCitations(retrieved.Citations)
	if citations == nil {
		citations = []model.Citation{}
	}

	s.writer.Store(model.CachedQA{
		Question:   question,
		Embedding:  embedding,
		Answer:     answerText,
		Citations:  citations,
		DocVersion: s.docVersion,
	})

	return &model.AskResponse{Answer: answerText, Citations: citations}, nil
}

// generate runs the primary model and falls back once, both when the primary
// errors and when it succeeds with empty output. Only a double error is
// fatal.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	text, err := s.generator.Generate(ctx, s.gen.PrimaryModel, prompt, s.gen.PrimaryMaxTokens)
	if err != nil {
		zap.L().Error("primary model failed",
			zap.String("model", s.gen.PrimaryModel),
			zap.Error(err),
		)
		text, err = s.generator.Generate(ctx, s.gen.FallbackModel, prompt, s.gen.FallbackMaxTokens)
		if err != nil {
			zap.L().Error("fallback model failed",
				zap.String("model", s.gen.FallbackModel),
				zap.Error(err),
			)
			return "", errors.Join(ErrGeneration, err)
		}
	} else if strings.TrimSpace(text) == "" {
		text, err = s.generator.Generate(ctx, s.gen.FallbackModel, prompt, s.gen.FallbackMaxTokens)
		if err != nil {
			// Primary already succeeded, just with nothing to say. Treat the
			// failed retry like an empty response.
			zap.L().Error("fallback on empty response failed", zap.Error(err))
			return "", nil
		}
	}
	return strings.TrimSpace(text), nil
}
