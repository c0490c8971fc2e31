package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/housing-tools/handbook-qa/internal/model"
)

// SQLiteIndex implements Index using modernc.org/sqlite. Similarity search is
// a brute-force cosine scan in Go, which is fine for a single handbook corpus
// of a few hundred chunks. Intended for development and single-node
// deployments without postgres.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteIndex{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	page       INTEGER,
	section    TEXT,
	content    TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	sha256     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS qa_cache (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	q_embedding BLOB NOT NULL,
	answer      TEXT NOT NULL,
	citations   TEXT NOT NULL DEFAULT '[]',
	doc_version TEXT NOT NULL,
	hits        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

func (s *SQLiteIndex) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) MatchChunks(ctx context.Context, vec []float32, count int) ([]model.ChunkMatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content, source, page, section, embedding FROM chunks`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match chunks")
	}
	defer rows.Close()

	var matches []model.ChunkMatch
	for rows.Next() {
		var (
			m    model.ChunkMatch
			blob []byte
		)
		if err := rows.Scan(&m.Content, &m.Source, &m.Page, &m.Section, &blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chunk")
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		m.Similarity = cosineSimilarity(vec, emb)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: match chunks rows")
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func (s *SQLiteIndex) MatchQuestions(ctx context.Context, vec []float32, threshold float64, count int) ([]model.QuestionMatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, answer, citations, q_embedding FROM qa_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match questions")
	}
	defer rows.Close()

	var matches []model.QuestionMatch
	for rows.Next() {
		var (
			m         model.QuestionMatch
			citesJSON string
			blob      []byte
		)
		if err := rows.Scan(&m.ID, &m.Answer, &citesJSON, &blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		m.Similarity = cosineSimilarity(vec, emb)
		if m.Similarity < threshold {
			continue
		}
		if citesJSON != "" {
			if err := json.Unmarshal([]byte(citesJSON), &m.Citations); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal citations")
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: match questions rows")
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func (s *SQLiteIndex) DeleteAllChunks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return eris.Wrap(err, "sqlite: delete chunks")
}

func (s *SQLiteIndex) InsertChunk(ctx context.Context, chunk model.Chunk) error {
	id := chunk.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, source, page, section, content, embedding, sha256)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, chunk.Source, chunk.Page, chunk.Section, chunk.Content,
		encodeVector(chunk.Embedding), chunk.SHA256,
	)
	return eris.Wrapf(err, "sqlite: insert chunk for %s", chunk.Source)
}

func (s *SQLiteIndex) UpsertCachedQA(ctx context.Context, entry model.CachedQA) error {
	citesJSON, err := json.Marshal(entry.Citations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal citations")
	}
	if entry.Citations == nil {
		citesJSON = []byte("[]")
	}

	nearest, err := s.MatchQuestions(ctx, entry.Embedding, upsertThreshold, 1)
	if err != nil {
		return err
	}
	if len(nearest) > 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE qa_cache SET question = ?, answer = ?, citations = ?, doc_version = ? WHERE id = ?`,
			entry.Question, entry.Answer, string(citesJSON), entry.DocVersion, nearest[0].ID,
		)
		return eris.Wrap(err, "sqlite: update cached qa")
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO qa_cache (id, question, q_embedding, answer, citations, doc_version)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, entry.Question, encodeVector(entry.Embedding), entry.Answer, string(citesJSON), entry.DocVersion,
	)
	return eris.Wrap(err, "sqlite: insert cached qa")
}

func (s *SQLiteIndex) IncrementCacheHit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE qa_cache SET hits = hits + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment cache hit %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("cache entry not found: %s", id)
	}
	return nil
}

func (s *SQLiteIndex) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count chunks")
}

func (s *SQLiteIndex) CountChunksBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, count(*) FROM chunks GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count chunks by source")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source count")
		}
		counts[source] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count chunks rows")
}

func (s *SQLiteIndex) CountCachedQA(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM qa_cache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count cached qa")
}
