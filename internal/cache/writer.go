package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/index"
	"github.com/housing-tools/handbook-qa/internal/model"
)

// Writer persists freshly generated answers to the question cache without
// blocking the response path. Each Store call runs in its own goroutine with
// a detached deadline, so a slow store never delays the caller.
type Writer struct {
	index   index.Index
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWriter creates a Writer. timeout bounds each background upsert;
// non-positive values get a 10s default.
func NewWriter(idx index.Index, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Writer{index: idx, timeout: timeout}
}

// Store schedules a cache upsert and returns immediately. Entries with an
// empty answer are never cached.
func (w *Writer) Store(entry model.CachedQA) {
	if entry.Answer == "" {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.index.UpsertCachedQA(ctx, entry); err != nil {
			zap.L().Warn("cache write failed", zap.Error(err))
		}
	}()
}

// RecordHit bumps the hit counter for a served entry in the background. The
// answer has already gone out, so failures are only logged.
func (w *Writer) RecordHit(id string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.index.IncrementCacheHit(ctx, id); err != nil {
			zap.L().Warn("cache hit counter update failed", zap.String("id", id), zap.Error(err))
		}
	}()
}

// Flush blocks until all scheduled writes have finished.
func (w *Writer) Flush() {
	w.wg.Wait()
}
