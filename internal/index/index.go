// Package index provides the nearest-neighbor vector index backing retrieval
// and the semantic cache.
package index

import (
	"context"

	"github.com/housing-tools/handbook-qa/internal/config"
	"github.com/housing-tools/handbook-qa/internal/model"
	"github.com/rotisserie/eris"
)

// Index is the nearest-neighbor service contract. Rows come back ranked by
// similarity to the query vector.
type Index interface {
	// Retrieval
	MatchChunks(ctx context.Context, vec []float32, count int) ([]model.ChunkMatch, error)
	MatchQuestions(ctx context.Context, vec []float32, threshold float64, count int) ([]model.QuestionMatch, error)

	// Ingestion (full rebuild: delete everything, then insert)
	DeleteAllChunks(ctx context.Context) error
	InsertChunk(ctx context.Context, chunk model.Chunk) error

	// Semantic cache
	UpsertCachedQA(ctx context.Context, entry model.CachedQA) error
	IncrementCacheHit(ctx context.Context, id string) error

	// Diagnostics
	CountChunks(ctx context.Context) (int, error)
	CountChunksBySource(ctx context.Context) (map[string]int, error)
	CountCachedQA(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates an Index for the configured driver. admin selects the
// read-write credential tier for postgres.
func Open(ctx context.Context, cfg config.StoreConfig, admin bool) (Index, error) {
	switch cfg.Driver {
	case "postgres", "":
		url := cfg.DatabaseURL
		if admin {
			url = cfg.AdminURL()
		}
		return NewPostgres(ctx, url, nil)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("index: unknown driver %q", cfg.Driver)
	}
}
