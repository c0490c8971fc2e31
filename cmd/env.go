package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/housing-tools/handbook-qa/internal/cache"
	"github.com/housing-tools/handbook-qa/internal/index"
	"github.com/housing-tools/handbook-qa/internal/llm"
	"github.com/housing-tools/handbook-qa/internal/retrieve"
	panthropic "github.com/housing-tools/handbook-qa/pkg/anthropic"
	"github.com/housing-tools/handbook-qa/pkg/openai"
)

// env bundles the wired components shared by the commands. Read traffic uses
// the restricted store credential; cache writes and ingestion go through the
// admin credential.
type env struct {
	readIndex  index.Index
	adminIndex index.Index
	embedder   llm.Embedder
	generator  llm.Generator
	cache      *cache.Cache
	writer     *cache.Writer
	retriever  *retrieve.Retriever
}

func (e *env) Close() {
	if e.writer != nil {
		e.writer.Flush()
	}
	if e.readIndex != nil {
		e.readIndex.Close()
	}
	if e.adminIndex != nil && e.adminIndex != e.readIndex {
		e.adminIndex.Close()
	}
}

func initEnv(ctx context.Context) (*env, error) {
	readIdx, err := index.Open(ctx, cfg.Store, false)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: open index")
	}

	adminIdx := readIdx
	if cfg.Store.AdminURL() != cfg.Store.DatabaseURL {
		adminIdx, err = index.Open(ctx, cfg.Store, true)
		if err != nil {
			readIdx.Close()
			return nil, eris.Wrap(err, "cmd: open admin index")
		}
	}

	oai := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithEmbedModel(cfg.OpenAI.EmbedModel),
		openai.WithGenerateTimeout(time.Duration(cfg.Generation.TimeoutSecs)*time.Second),
	)

	var generator llm.Generator
	switch cfg.Generation.Provider {
	case "anthropic":
		generator = llm.NewAnthropicGenerator(panthropic.NewClient(cfg.Anthropic.Key))
	default:
		generator = oai
	}

	e := &env{
		readIndex:  readIdx,
		adminIndex: adminIdx,
		embedder:   llm.NewGateway(oai),
		generator:  generator,
		cache:      cache.New(readIdx, cfg.Cache.RetrievalThreshold, cfg.Cache.AdmitThreshold, cfg.Cache.Candidates),
		writer:     cache.NewWriter(adminIdx, 10*time.Second),
		retriever:  retrieve.New(readIdx, cfg.Retrieval.MaxChunks, cfg.Retrieval.FallbackSource),
	}
	return e, nil
}
