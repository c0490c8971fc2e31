package index

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housing-tools/handbook-qa/internal/model"
)

// newMockPostgresIndex creates a PostgresIndex backed by pgxmock.
func newMockPostgresIndex(t *testing.T) (*PostgresIndex, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresIndex{pool: mock}
	return s, mock
}

func TestPostgresIndex_MatchChunks(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	page := 4
	mock.ExpectQuery(`SELECT content, source, page, section, 1 - \(embedding <=> \$1\) AS similarity`).
		WithArgs(pgxmock.AnyArg(), 6).
		WillReturnRows(pgxmock.NewRows([]string{"content", "source", "page", "section", "similarity"}).
			AddRow("Quiet hours are 11pm-8am", "Handbook.pdf", &page, (*string)(nil), 0.82))

	matches, err := s.MatchChunks(context.Background(), []float32{0.1, 0.2}, 6)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Quiet hours are 11pm-8am", matches[0].Content)
	assert.Equal(t, "Handbook.pdf", matches[0].Source)
	require.NotNil(t, matches[0].Page)
	assert.Equal(t, 4, *matches[0].Page)
	assert.InDelta(t, 0.82, matches[0].Similarity, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_MatchQuestions_ParsesCitations(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectQuery(`SELECT id, answer, citations, 1 - \(q_embedding <=> \$1\) AS similarity`).
		WithArgs(pgxmock.AnyArg(), 0.7, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "answer", "citations", "similarity"}).
			AddRow("qa-1", "Quiet hours run 11pm to 8am.", []byte(`[{"source":"Handbook.pdf","page":4,"section":"Page 4"}]`), 0.95))

	matches, err := s.MatchQuestions(context.Background(), []float32{0.1}, 0.7, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "qa-1", matches[0].ID)
	require.Len(t, matches[0].Citations, 1)
	assert.Equal(t, "Handbook.pdf", matches[0].Citations[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_DeleteAllChunks(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectExec(`DELETE FROM chunks`).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	require.NoError(t, s.DeleteAllChunks(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_InsertChunk(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	page := 2
	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs(pgxmock.AnyArg(), "Handbook.pdf", &page, (*string)(nil), "content", pgxmock.AnyArg(), "abc123").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertChunk(context.Background(), model.Chunk{
		Source:    "Handbook.pdf",
		Page:      &page,
		Content:   "content",
		Embedding: []float32{0.1, 0.2},
		SHA256:    "abc123",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_UpsertCachedQA_InsertsWhenNoNeighbor(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectQuery(`SELECT id, 1 - \(q_embedding <=> \$1\) AS similarity`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO qa_cache`).
		WithArgs(pgxmock.AnyArg(), "What are quiet hours?", pgxmock.AnyArg(), "11pm to 8am.", pgxmock.AnyArg(), "v2025").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertCachedQA(context.Background(), model.CachedQA{
		Question:   "What are quiet hours?",
		Embedding:  []float32{0.1},
		Answer:     "11pm to 8am.",
		DocVersion: "v2025",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_UpsertCachedQA_UpdatesNearDuplicate(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectQuery(`SELECT id, 1 - \(q_embedding <=> \$1\) AS similarity`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "similarity"}).AddRow("qa-1", 0.97))
	mock.ExpectExec(`UPDATE qa_cache SET question`).
		WithArgs("What are the quiet hours?", "11pm to 8am.", pgxmock.AnyArg(), "v2025", "qa-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpsertCachedQA(context.Background(), model.CachedQA{
		Question:   "What are the quiet hours?",
		Embedding:  []float32{0.1},
		Answer:     "11pm to 8am.",
		DocVersion: "v2025",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_IncrementCacheHit_NotFound(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectExec(`UPDATE qa_cache SET hits = hits \+ 1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementCacheHit(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIndex_CountChunks(t *testing.T) {
	s, mock := newMockPostgresIndex(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM chunks`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(128))

	n, err := s.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 128, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
