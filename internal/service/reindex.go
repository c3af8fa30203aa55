package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
	"github.com/utafrali/catalogsearch/internal/repository"
)

// DefaultReindexBatchSize is the number of items read and indexed per batch.
const DefaultReindexBatchSize = 500

// ReindexResult summarizes a rebuild of the search index.
type ReindexResult struct {
	Indexed int
	Took    time.Duration
}

// Reindexer rebuilds the search index from the authoritative store.
type Reindexer struct {
	store     repository.Store
	index     engine.IndexStore
	batchSize int
	logger    *slog.Logger
}

// NewReindexer creates a reindexer. A non-positive batchSize selects
// DefaultReindexBatchSize.
func NewReindexer(store repository.Store, index engine.IndexStore, batchSize int, logger *slog.Logger) *Reindexer {
	if batchSize <= 0 {
		batchSize = DefaultReindexBatchSize
	}
	return &Reindexer{
		store:     store,
		index:     index,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run writes a document for every stored item. With reset the index is
// emptied first, dropping documents whose items no longer exist.
func (r *Reindexer) Run(ctx context.Context, reset bool) (ReindexResult, error) {
	start := time.Now()

	if reset {
		resetter, ok := r.index.(engine.Resetter)
		if !ok {
			return ReindexResult{}, errors.New("reindex: index store does not support reset")
		}
		if err := resetter.Reset(ctx); err != nil {
			return ReindexResult{}, fmt.Errorf("reindex: reset index: %w", err)
		}
	}

	var indexed int
	err := r.store.Each(ctx, r.batchSize, func(items []domain.CatalogItem) error {
		docs := make([]domain.SearchDocument, len(items))
		for i, it := range items {
			docs[i] = domain.NewSearchDocument(it)
		}
		if err := r.write(ctx, docs); err != nil {
			return err
		}
		indexed += len(docs)
		r.logger.DebugContext(ctx, "reindex batch written",
			slog.Int("batch", len(docs)),
			slog.Int("indexed", indexed),
		)
		return nil
	})
	if err != nil {
		return ReindexResult{Indexed: indexed, Took: time.Since(start)}, fmt.Errorf("reindex: %w", err)
	}

	result := ReindexResult{Indexed: indexed, Took: time.Since(start)}
	r.logger.InfoContext(ctx, "reindex completed",
		slog.Int("indexed", result.Indexed),
		slog.Duration("took", result.Took),
	)
	return result, nil
}

func (r *Reindexer) write(ctx context.Context, docs []domain.SearchDocument) error {
	if bulk, ok := r.index.(engine.BulkIndexer); ok {
		return bulk.BulkUpsert(ctx, docs)
	}
	for _, d := range docs {
		if err := r.index.Upsert(ctx, d.ID, d); err != nil {
			return err
		}
	}
	return nil
}
