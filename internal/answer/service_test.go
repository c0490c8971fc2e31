package answer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housing-tools/handbook-qa/internal/cache"
	"github.com/housing-tools/handbook-qa/internal/config"
	"github.com/housing-tools/handbook-qa/internal/model"
	"github.com/housing-tools/handbook-qa/internal/ratelimit"
	"github.com/housing-tools/handbook-qa/internal/retrieve"
)

type fakeIndex struct {
	mu        sync.Mutex
	chunks    []model.ChunkMatch
	questions []model.QuestionMatch
	upserted  []model.CachedQA
	hits      []string
}

func (f *fakeIndex) MatchChunks(context.Context, []float32, int) ([]model.ChunkMatch, error) {
	return f.chunks, nil
}
func (f *fakeIndex) MatchQuestions(context.Context, []float32, float64, int) ([]model.QuestionMatch, error) {
	return f.questions, nil
}
func (f *fakeIndex) DeleteAllChunks(context.Context) error          { return nil }
func (f *fakeIndex) InsertChunk(context.Context, model.Chunk) error { return nil }
func (f *fakeIndex) UpsertCachedQA(_ context.Context, entry model.CachedQA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, entry)
	return nil
}
func (f *fakeIndex) IncrementCacheHit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, id)
	return nil
}
func (f *fakeIndex) CountChunks(context.Context) (int, error) { return 0, nil }
func (f *fakeIndex) CountChunksBySource(context.Context) (map[string]int, error) {
	return nil, nil
}
func (f *fakeIndex) CountCachedQA(context.Context) (int, error) { return 0, nil }
func (f *fakeIndex) Migrate(context.Context) error              { return nil }
func (f *fakeIndex) Close() error                               { return nil }

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type genCall struct {
	model     string
	maxTokens int
}

type fakeGenerator struct {
	calls   []genCall
	outputs []string
	errs    []error
}

func (f *fakeGenerator) Generate(_ context.Context, model, _ string, maxTokens int) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, genCall{model: model, maxTokens: maxTokens})
	var out string
	var err error
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func testGenConfig() config.GenerationConfig {
	return config.GenerationConfig{
		PrimaryModel:      "gpt-5-nano",
		PrimaryMaxTokens:  220,
		FallbackModel:     "gpt-4o-mini",
		FallbackMaxTokens: 300,
	}
}

func newTestService(idx *fakeIndex, emb *fakeEmbedder, gen *fakeGenerator, limiter ratelimit.Limiter) (*Service, *cache.Writer) {
	writer := cache.NewWriter(idx, time.Second)
	svc := New(
		emb,
		gen,
		cache.New(idx, 0.7, 0.9, 5),
		writer,
		retrieve.New(idx, 6, "Residence_and_Housing_Handbook2025.pdf"),
		limiter,
		testGenConfig(),
		"v2025",
	)
	return svc, writer
}

func intPtr(v int) *int { return &v }

func TestAsk_FreshAnswerWithCitations(t *testing.T) {
	idx := &fakeIndex{chunks: []model.ChunkMatch{
		{Source: "handbook.pdf", Page: intPtr(4), Content: "Quiet hours start at 11pm."},
		{Source: "handbook.pdf", Page: intPtr(7), Content: "Noise complaints go to the RA."},
	}}
	gen := &fakeGenerator{outputs: []string{"Quiet hours start at 11pm."}}
	svc, writer := newTestService(idx, &fakeEmbedder{}, gen, nil)

	got, err := svc.Ask(context.Background(), "When do quiet hours start?", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "Quiet hours start at 11pm.", got.Answer)
	assert.False(t, got.Cached)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "handbook.pdf", got.Citations[0].Source)
	require.NotNil(t, got.Citations[0].Page)
	assert.Equal(t, 4, *got.Citations[0].Page)
	require.NotNil(t, got.Citations[0].Section)
	assert.Equal(t, "Pages 4, 7", *got.Citations[0].Section)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "gpt-5-nano", gen.calls[0].model)
	assert.Equal(t, 220, gen.calls[0].maxTokens)

	writer.Flush()
	require.Len(t, idx.upserted, 1)
	assert.Equal(t, "When do quiet hours start?", idx.upserted[0].Question)
	assert.Equal(t, "v2025", idx.upserted[0].DocVersion)
}

func TestAsk_CacheHitSkipsGeneration(t *testing.T) {
	idx := &fakeIndex{questions: []model.QuestionMatch{
		{ID: "c1", Answer: "Late August.", Similarity: 0.95},
	}}
	gen := &fakeGenerator{}
	svc, writer := newTestService(idx, &fakeEmbedder{}, gen, nil)

	got, err := svc.Ask(context.Background(), "When is move-in?", "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, got.Cached)
	assert.Equal(t, "Late August.", got.Answer)
	assert.Empty(t, gen.calls)

	writer.Flush()
	assert.Equal(t, []string{"c1"}, idx.hits)
	assert.Empty(t, idx.upserted)
}

func TestAsk_CacheHitWithoutCitationsReturnsEmptySlice(t *testing.T) {
	idx := &fakeIndex{questions: []model.QuestionMatch{
		{ID: "c2", Answer: "Contact the front desk.", Similarity: 0.97},
	}}
	svc, _ := newTestService(idx, &fakeEmbedder{}, &fakeGenerator{}, nil)

	got, err := svc.Ask(context.Background(), "Who do I contact?", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, got.Cached)
	require.NotNil(t, got.Citations)
	assert.Empty(t, got.Citations)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	emb := &fakeEmbedder{}
	svc, _ := newTestService(&fakeIndex{}, emb, &fakeGenerator{}, nil)

	_, err := svc.Ask(context.Background(), "   ", "10.0.0.1")
	require.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 0, emb.calls)
}

func TestAsk_RateLimited(t *testing.T) {
	emb := &fakeEmbedder{}
	limiter := ratelimit.NewFixedWindow(1, time.Minute)
	svc, _ := newTestService(&fakeIndex{}, emb, &fakeGenerator{outputs: []string{"ok"}}, limiter)

	_, err := svc.Ask(context.Background(), "first", "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "second", "10.0.0.1")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, emb.calls)
}

func TestAsk_EmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{err: eris.New("embed: upstream down")}
	svc, _ := newTestService(&fakeIndex{}, emb, &fakeGenerator{}, nil)

	_, err := svc.Ask(context.Background(), "anything", "10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrEmbedding.Error())
}

func TestAsk_PrimaryErrorFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		outputs: []string{"", "Fallback answer."},
		errs:    []error{eris.New("model overloaded"), nil},
	}
	svc, _ := newTestService(&fakeIndex{}, &fakeEmbedder{}, gen, nil)

	got, err := svc.Ask(context.Background(), "q", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Fallback answer.", got.Answer)

	require.Len(t, gen.calls, 2)
	assert.Equal(t, "gpt-4o-mini", gen.calls[1].model)
	assert.Equal(t, 300, gen.calls[1].maxTokens)
}

func TestAsk_DoubleFailure(t *testing.T) {
	gen := &fakeGenerator{errs: []error{eris.New("down"), eris.New("also down")}}
	svc, _ := newTestService(&fakeIndex{}, &fakeEmbedder{}, gen, nil)

	_, err := svc.Ask(context.Background(), "q", "10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrGeneration.Error())
	assert.Len(t, gen.calls, 2)
}

func TestAsk_EmptyOutputRetriesOnceThenApologizes(t *testing.T) {
	idx := &fakeIndex{}
	gen := &fakeGenerator{outputs: []string{"", ""}}
	svc, writer := newTestService(idx, &fakeEmbedder{}, gen, nil)

	got, err := svc.Ask(context.Background(), "q", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, apologyAnswer, got.Answer)
	assert.Empty(t, got.Citations)
	assert.False(t, got.Cached)
	assert.Len(t, gen.calls, 2)

	writer.Flush()
	assert.Empty(t, idx.upserted)
}

func TestAsk_EmptyOutputFallbackErrorStillApologizes(t *testing.T) {
	gen := &fakeGenerator{
		outputs: []string{"", ""},
		errs:    []error{nil, eris.New("down")},
	}
	svc, _ := newTestService(&fakeIndex{}, &fakeEmbedder{}, gen, nil)

	got, err := svc.Ask(context.Background(), "q", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, apologyAnswer, got.Answer)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  When is move-in?  ", []string{"Excerpt about move-in.", "Another excerpt."})

	assert.Contains(t, p, "### Question\nWhen is move-in?")
	assert.Contains(t, p, "Excerpt 1:\nExcerpt about move-in.")
	assert.Contains(t, p, "Excerpt 2:\nAnother excerpt.")
	assert.True(t, strings.HasPrefix(p, "You are the Residence & Housing handbook assistant."))
}

func TestBuildPrompt_NoExcerpts(t *testing.T) {
	p := BuildPrompt("q", nil)
	assert.Contains(t, p, "(no excerpts found)")
}
