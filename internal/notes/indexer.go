package notes

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

// Store is the subset of the vector store the indexer needs.
type Store interface {
	UpdateDocument(ctx context.Context, docID string, chunks []vectorstore.Chunk, embeddings [][]float32, meta vectorstore.DocumentMeta) error
	DeleteDocument(ctx context.Context, docID string) error
	NeedsUpdate(ctx context.Context, docID string, modified time.Time) bool
	SetLastUpdateTime(ctx context.Context, t time.Time) error
	ClearAllCollections(ctx context.Context) error
}

// Chunker splits note content.
type Chunker interface {
	Chunk(ctx context.Context, content string, opts chunker.Options) ([]chunker.Chunk, error)
}

// Embedder embeds chunk text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer drives full and incremental index runs over scanned documents.
type Indexer struct {
	scanner  *Scanner
	chunker  Chunker
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

// NewIndexer wires the indexing pipeline.
func NewIndexer(scanner *Scanner, chunkSvc Chunker, embedder Embedder, store Store, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		scanner:  scanner,
		chunker:  chunkSvc,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Result summarizes one reindex run.
type Result struct {
	Scanned int
	Indexed int
	Skipped int
	Failed  int
}

// Reindex indexes the notes directory. A full run clears every collection
// first and re-indexes everything; an incremental run only touches documents
// whose modification time is newer than their indexed state. One document's
// failure is logged and skipped, not fatal to the run.
func (ix *Indexer) Reindex(ctx context.Context, full bool) (*Result, error) {
	docs, err := ix.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	if full {
		if err := ix.store.ClearAllCollections(ctx); err != nil {
			return nil, fmt.Errorf("clearing collections: %w", err)
		}
	}

	result := &Result{Scanned: len(docs)}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !full && !ix.store.NeedsUpdate(ctx, doc.ID, doc.ModifiedTime) {
			result.Skipped++
			continue
		}
		if err := ix.IndexDocument(ctx, doc); err != nil {
			ix.logger.Warn("indexing document failed, skipping",
				zap.String("doc_id", doc.ID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		result.Indexed++
	}

	if err := ix.store.SetLastUpdateTime(ctx, time.Now()); err != nil {
		return result, fmt.Errorf("recording update time: %w", err)
	}

	ix.logger.Info("reindex complete",
		zap.Bool("full", full),
		zap.Int("scanned", result.Scanned),
		zap.Int("indexed", result.Indexed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// IndexDocument chunks, embeds, and upserts one document. Documents that
// produce no chunks (empty files) are left out of the index.
func (ix *Indexer) IndexDocument(ctx context.Context, doc Document) error {
	chunks, err := ix.chunker.Chunk(ctx, doc.Content, chunker.Options{DocType: doc.Type})
	if err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		ix.logger.Debug("document produced no chunks", zap.String("doc_id", doc.ID))
		return nil
	}

	texts := make([]string, len(chunks))
	storeChunks := make([]vectorstore.Chunk, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
		storeChunks[i] = vectorstore.Chunk{
			Content: chunk.Content,
			Fields:  chunk.Metadata.Fields(),
		}
	}

	embeddings, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	meta := vectorstore.DocumentMeta{
		Type:         doc.Type,
		SourcePath:   doc.SourcePath,
		Date:         doc.Date,
		Filename:     filepath.Base(doc.SourcePath),
		ModifiedTime: doc.ModifiedTime,
	}
	if err := ix.store.UpdateDocument(ctx, doc.ID, storeChunks, embeddings, meta); err != nil {
		return fmt.Errorf("updating store: %w", err)
	}

	ix.logger.Debug("indexed document",
		zap.String("doc_id", doc.ID),
		zap.String("doc_type", doc.Type),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// RemoveDocument drops a document from the index, for deleted note files.
func (ix *Indexer) RemoveDocument(ctx context.Context, docID string) error {
	return ix.store.DeleteDocument(ctx, docID)
}
