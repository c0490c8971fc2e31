// Package ingest rebuilds the chunk store from a directory of handbook PDFs.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/housing-tools/handbook-qa/internal/extract"
	"github.com/housing-tools/handbook-qa/internal/index"
	"github.com/housing-tools/handbook-qa/internal/llm"
	"github.com/housing-tools/handbook-qa/internal/model"
	"github.com/housing-tools/handbook-qa/internal/textproc"
)

// Pipeline ingests PDF documents: extract, sanitize, chunk, enrich, embed,
// persist. Each run is a full rebuild; it is not safe to run two ingestion
// passes concurrently.
type Pipeline struct {
	index     index.Index
	embedder  llm.Embedder
	extractor extract.Extractor
	chunker   *textproc.Chunker
	workers   int
}

// Result reports per-document ingestion counts.
type Result struct {
	Source   string
	Inserted int
	Skipped  int
}

// New creates an ingestion Pipeline. workers bounds concurrent embedding
// calls; values below 1 run sequentially.
func New(idx index.Index, embedder llm.Embedder, extractor extract.Extractor, chunker *textproc.Chunker, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		index:     idx,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		workers:   workers,
	}
}

// pendingChunk is a chunk awaiting embedding. Position accounting happens
// before embedding so that skipped chunks still advance the page estimate.
type pendingChunk struct {
	content   string
	page      int
	embedding []float32
	skipped   bool
}

// Run rebuilds the entire chunk store from the PDFs in pdfDir.
func (p *Pipeline) Run(ctx context.Context, pdfDir string) ([]Result, error) {
	files, err := listPDFs(pdfDir)
	if err != nil {
		return nil, err
	}

	zap.L().Info("deleting existing chunks")
	if err := p.index.DeleteAllChunks(ctx); err != nil {
		return nil, err
	}

	var results []Result
	for _, file := range files {
		res, err := p.ingestFile(ctx, pdfDir, file)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		zap.L().Info("document ingested",
			zap.String("source", file),
			zap.Int("inserted", res.Inserted),
			zap.Int("skipped", res.Skipped),
		)
	}
	return results, nil
}

func listPDFs(pdfDir string) ([]string, error) {
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read dir %s", pdfDir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, eris.Errorf("ingest: no PDFs found in %s", pdfDir)
	}
	return files, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, pdfDir, file string) (Result, error) {
	res := Result{Source: file}

	raw, pages, err := p.extractor.Extract(ctx, filepath.Join(pdfDir, file))
	if err != nil {
		return res, err
	}
	if pages < 1 {
		pages = 1
	}

	// The full-document pass is never capped; only per-chunk sanitization is.
	cleaned := textproc.Sanitize(raw)
	chunks := p.chunker.Split(cleaned)
	charsPerPage := float64(len(cleaned)) / float64(pages)

	zap.L().Info("processing document",
		zap.String("source", file),
		zap.Int("pages", pages),
		zap.Int("chars", len(cleaned)),
		zap.Int("chunks", len(chunks)),
	)

	// Walk the chunk stream sequentially to keep page estimation stable:
	// empty chunks are skipped but their original length still advances the
	// position counter.
	pending := make([]pendingChunk, 0, len(chunks))
	charPosition := 0
	for _, original := range chunks {
		content := textproc.SanitizeChunk(original)
		if strings.TrimSpace(content) == "" {
			res.Skipped++
			charPosition += len(original)
			continue
		}

		enriched := textproc.EnrichWithLinks(content)
		pending = append(pending, pendingChunk{
			content: enriched,
			page:    estimatePage(charPosition, charsPerPage, pages),
		})
		charPosition += len(original)
	}

	if err := p.embedPending(ctx, file, pending); err != nil {
		return res, err
	}

	for i := range pending {
		pc := &pending[i]
		if pc.skipped {
			res.Skipped++
			continue
		}

		sum := sha256.Sum256([]byte(pc.content))
		page := pc.page
		err := p.index.InsertChunk(ctx, model.Chunk{
			Source:    file,
			Page:      &page,
			Content:   pc.content,
			Embedding: pc.embedding,
			SHA256:    hex.EncodeToString(sum[:]),
		})
		if err != nil {
			return res, err
		}
		res.Inserted++
	}

	return res, nil
}

// embedPending embeds chunks with bounded concurrency. An embedding failure
// skips that chunk rather than failing the whole run.
func (p *Pipeline) embedPending(ctx context.Context, file string, pending []pendingChunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range pending {
		pc := &pending[i]
		g.Go(func() error {
			vec, err := p.embedder.Embed(ctx, pc.content)
			if err != nil || len(vec) == 0 {
				zap.L().Error("embedding failed, skipping chunk",
					zap.String("source", file),
					zap.Int("page", pc.page),
					zap.Error(err),
				)
				pc.skipped = true
				return nil
			}
			pc.embedding = vec
			return nil
		})
	}
	return g.Wait()
}

// estimatePage maps a character offset in the chunk stream to a page in
// [1, totalPages], assuming uniform character density per page. Approximate
// on purpose: the extracted text does not preserve page boundaries.
func estimatePage(charPosition int, charsPerPage float64, totalPages int) int {
	if charsPerPage <= 0 {
		return 1
	}
	page := int(math.Ceil(float64(charPosition) / charsPerPage))
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page
}
