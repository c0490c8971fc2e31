package index

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rotisserie/eris"

	"github.com/housing-tools/handbook-qa/internal/db"
	"github.com/housing-tools/handbook-qa/internal/model"
)

// upsertThreshold is the similarity above which a new cache entry updates the
// nearest existing question instead of inserting a duplicate row.
const upsertThreshold = 0.9

// PostgresIndex implements Index on postgres with the pgvector extension.
type PostgresIndex struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresIndex with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresIndex, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresIndex{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	page       INTEGER,
	section    TEXT,
	content    TEXT NOT NULL,
	embedding  vector(1536) NOT NULL,
	sha256     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS qa_cache (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	q_embedding vector(1536) NOT NULL,
	answer      TEXT NOT NULL,
	citations   JSONB NOT NULL DEFAULT '[]',
	doc_version TEXT NOT NULL,
	hits        INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
CREATE INDEX IF NOT EXISTS idx_qa_cache_embedding ON qa_cache
	USING ivfflat (q_embedding vector_cosine_ops) WITH (lists = 100);
`

func (s *PostgresIndex) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresIndex) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresIndex) MatchChunks(ctx context.Context, vec []float32, count int) ([]model.ChunkMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content, source, page, section, 1 - (embedding <=> $1) AS similarity
		 FROM chunks ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(vec), count,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match chunks")
	}
	defer rows.Close()

	var matches []model.ChunkMatch
	for rows.Next() {
		var m model.ChunkMatch
		if err := rows.Scan(&m.Content, &m.Source, &m.Page, &m.Section, &m.Similarity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk match")
		}
		matches = append(matches, m)
	}
	return matches, eris.Wrap(rows.Err(), "postgres: match chunks rows")
}

func (s *PostgresIndex) MatchQuestions(ctx context.Context, vec []float32, threshold float64, count int) ([]model.QuestionMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, answer, citations, 1 - (q_embedding <=> $1) AS similarity
		 FROM qa_cache
		 WHERE 1 - (q_embedding <=> $1) >= $2
		 ORDER BY q_embedding <=> $1 LIMIT $3`,
		pgvector.NewVector(vec), threshold, count,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match questions")
	}
	defer rows.Close()

	var matches []model.QuestionMatch
	for rows.Next() {
		var (
			m         model.QuestionMatch
			citesJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.Answer, &citesJSON, &m.Similarity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan question match")
		}
		if len(citesJSON) > 0 {
			if err := json.Unmarshal(citesJSON, &m.Citations); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal citations")
			}
		}
		matches = append(matches, m)
	}
	return matches, eris.Wrap(rows.Err(), "postgres: match questions rows")
}

func (s *PostgresIndex) DeleteAllChunks(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks`)
	return eris.Wrap(err, "postgres: delete chunks")
}

func (s *PostgresIndex) InsertChunk(ctx context.Context, chunk model.Chunk) error {
	id := chunk.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chunks (id, source, page, section, content, embedding, sha256)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, chunk.Source, chunk.Page, chunk.Section, chunk.Content,
		pgvector.NewVector(chunk.Embedding), chunk.SHA256,
	)
	return eris.Wrapf(err, "postgres: insert chunk for %s", chunk.Source)
}

// UpsertCachedQA inserts a cache entry, or updates the nearest existing
// question when it is a near-duplicate. Best-effort dedup only; no uniqueness
// constraint backs it.
func (s *PostgresIndex) UpsertCachedQA(ctx context.Context, entry model.CachedQA) error {
	citesJSON, err := json.Marshal(entry.Citations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal citations")
	}
	if entry.Citations == nil {
		citesJSON = []byte("[]")
	}

	var (
		nearestID  string
		similarity float64
	)
	err = s.pool.QueryRow(ctx,
		`SELECT id, 1 - (q_embedding <=> $1) AS similarity
		 FROM qa_cache ORDER BY q_embedding <=> $1 LIMIT 1`,
		pgvector.NewVector(entry.Embedding),
	).Scan(&nearestID, &similarity)

	switch {
	case err == nil && similarity >= upsertThreshold:
		_, err = s.pool.Exec(ctx,
			`UPDATE qa_cache SET question = $1, answer = $2, citations = $3, doc_version = $4 WHERE id = $5`,
			entry.Question, entry.Answer, citesJSON, entry.DocVersion, nearestID,
		)
		return eris.Wrap(err, "postgres: update cached qa")
	case err != nil && !eris.Is(err, pgx.ErrNoRows):
		return eris.Wrap(err, "postgres: find nearest cached qa")
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO qa_cache (id, question, q_embedding, answer, citations, doc_version)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, entry.Question, pgvector.NewVector(entry.Embedding), entry.Answer, citesJSON, entry.DocVersion,
	)
	return eris.Wrap(err, "postgres: insert cached qa")
}

func (s *PostgresIndex) IncrementCacheHit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE qa_cache SET hits = hits + 1 WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment cache hit %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("cache entry not found: %s", id)
	}
	return nil
}

func (s *PostgresIndex) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count chunks")
}

func (s *PostgresIndex) CountChunksBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT source, count(*) FROM chunks GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count chunks by source")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source count")
		}
		counts[source] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count chunks rows")
}

func (s *PostgresIndex) CountCachedQA(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM qa_cache`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count cached qa")
}
