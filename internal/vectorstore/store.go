// Package vectorstore persists note chunks, link edges, and external
// references in an embedded chromem-go database.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var storeTracer = otel.Tracer("notegraph.vectorstore")

// Embedder produces embeddings for store operations.
// internal/embeddings.Provider satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
}

// Config holds the store settings.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Model names the embedding model, recorded in the schema record for
	// diagnostics. Optional.
	Model string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/Documents/notes/.vector_store"
	}
}

// Store manages the five collections of the note index: notes holds chunk
// embeddings, links holds directed edges between notes, references holds
// external URLs, metadata tracks per-document modification times, and system
// holds the schema record and the last-update timestamp.
//
// Edges and tracking records carry a constant probe vector instead of a real
// embedding; they are only ever retrieved by exact metadata match.
type Store struct {
	db       *chromem.DB
	embedder Embedder
	config   Config
	logger   *zap.Logger

	dims       int
	probe      []float32
	retryDelay time.Duration

	collections map[string]*chromem.Collection
}

// NewStore opens (or creates) the persistent database, ensures all five
// collections exist, and verifies the stored embedding dimension against the
// embedder. A dimension conflict returns ErrDimensionMismatch; the operator
// must rebuild the index.
func NewStore(ctx context.Context, config Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	expandedPath, err := expandStorePath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	dims, err := embedder.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("probing embedding dimension: %w", err)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedder reports dimension %d", ErrInvalidConfig, dims)
	}

	probe := make([]float32, dims)
	for i := range probe {
		probe[i] = 1.0
	}

	s := &Store{
		db:          db,
		embedder:    embedder,
		config:      config,
		logger:      logger,
		dims:        dims,
		probe:       probe,
		retryDelay:  retryBaseDelay,
		collections: make(map[string]*chromem.Collection, 5),
	}

	for _, name := range []string{CollectionNotes, CollectionLinks, CollectionReferences, CollectionMetadata, CollectionSystem} {
		collection, err := db.GetOrCreateCollection(name, nil, s.embeddingFunc())
		if err != nil {
			return nil, fmt.Errorf("opening collection %s: %w", name, err)
		}
		s.collections[name] = collection
	}

	if err := s.verifySchema(ctx); err != nil {
		return nil, err
	}

	logger.Info("vector store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("embedding_dims", dims),
	)

	return s, nil
}

// expandStorePath expands ~ to home directory.
func expandStorePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder for chromem. Collections always receive
// it explicitly; passing nil would make chromem fall back to its OpenAI
// default embedder for persisted collections.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// verifySchema checks the persisted schema record against the current
// embedding dimension, writing it when absent.
func (s *Store) verifySchema(ctx context.Context) error {
	system := s.collections[CollectionSystem]

	if system.Count() > 0 {
		results, err := s.queryExact(ctx, system, map[string]string{keyRecord: recordSchema})
		if err != nil {
			// The schema record is queried with a current-dimension probe
			// vector, so the only way this query fails is a stored index
			// built with a different dimension.
			return fmt.Errorf("%w: index at %s predates the configured model (%v)", ErrDimensionMismatch, s.config.Path, err)
		}
		if len(results) > 0 {
			stored, _ := strconv.Atoi(results[0].Metadata[keyDims])
			if stored != 0 && stored != s.dims {
				return fmt.Errorf("%w: index has %d dimensions, model produces %d", ErrDimensionMismatch, stored, s.dims)
			}
			return nil
		}
	}

	return s.writeSchema(ctx)
}

func (s *Store) writeSchema(ctx context.Context) error {
	metadata := map[string]string{
		keyRecord: recordSchema,
		keyDims:   strconv.Itoa(s.dims),
	}
	if s.config.Model != "" {
		metadata[keyModel] = s.config.Model
	}
	return s.upsertTracking(ctx, CollectionSystem, recordSchema, recordSchema, metadata)
}

// queryExact retrieves documents by exact metadata match using the probe
// vector. Similarity scores are meaningless here; only the filter matters.
func (s *Store) queryExact(ctx context.Context, collection *chromem.Collection, where map[string]string) ([]chromem.Result, error) {
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	return collection.QueryEmbedding(ctx, s.probe, count, where, nil)
}

// upsertTracking writes a single probe-vector record.
func (s *Store) upsertTracking(ctx context.Context, collectionName, id, content string, metadata map[string]string) error {
	collection := s.collections[collectionName]
	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: s.probe,
	}
	return withRetry(ctx, s.logger, s.retryDelay, "upsert "+collectionName, func() error {
		return collection.AddDocuments(ctx, []chromem.Document{doc}, 1)
	})
}

// AddDocument upserts a document's chunks into the notes collection, extracts
// and stores its link edges and external references, and records its
// modification time for incremental updates. Chunk IDs are
// "{docID}_chunk_{i}", so re-adding a document overwrites its chunks in place.
func (s *Store) AddDocument(ctx context.Context, docID string, chunks []Chunk, embeddings [][]float32, meta DocumentMeta) error {
	ctx, span := storeTracer.Start(ctx, "Store.AddDocument")
	defer span.End()

	span.SetAttributes(
		attribute.String("doc_id", docID),
		attribute.Int("chunk_count", len(chunks)),
	)

	if docID == "" {
		return fmt.Errorf("%w: document ID is required", ErrInvalidConfig)
	}
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", ErrEmbeddingCountMismatch, len(chunks), len(embeddings))
	}

	docType := meta.Type
	if docType == "" {
		docType = "note"
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)
		metadata := map[string]string{
			keyDocID:      docID,
			keyChunkID:    chunkID,
			keyChunkIndex: strconv.Itoa(i),
			keyDocType:    docType,
			keySourcePath: meta.SourcePath,
			keyDate:       meta.Date,
			keyFilename:   meta.Filename,
		}
		for k, v := range chunk.Fields {
			if _, taken := metadata[k]; !taken {
				metadata[k] = v
			}
		}
		if links := ExtractWikiLinks(chunk.Content); len(links) > 0 {
			encoded, err := json.Marshal(links)
			if err == nil {
				metadata[keyWikiLinks] = string(encoded)
			}
		}
		if refs := ExtractExternalRefs(chunk.Content); len(refs) > 0 {
			encoded, err := json.Marshal(refs)
			if err == nil {
				metadata[keyExternalRefs] = string(encoded)
			}
		}

		docs[i] = chromem.Document{
			ID:        chunkID,
			Content:   chunk.Content,
			Metadata:  metadata,
			Embedding: embeddings[i],
		}
	}

	err := withRetry(ctx, s.logger, s.retryDelay, "upsert notes", func() error {
		return s.collections[CollectionNotes].AddDocuments(ctx, docs, 1)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting chunks for %s: %w", docID, err)
	}

	if err := s.storeLinkEdges(ctx, docID, chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !meta.ModifiedTime.IsZero() {
		metadata := map[string]string{
			keyDocID:        docID,
			keyModifiedTime: formatNanos(meta.ModifiedTime),
		}
		if err := s.upsertTracking(ctx, CollectionMetadata, docID, docID, metadata); err != nil {
			span.RecordError(err)
			return fmt.Errorf("recording modification time for %s: %w", docID, err)
		}
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added document",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// storeLinkEdges extracts links from each chunk and upserts edge and
// reference records. Deterministic IDs make repeated indexing idempotent.
func (s *Store) storeLinkEdges(ctx context.Context, docID string, chunks []Chunk) error {
	var edgeDocs, refDocs []chromem.Document
	seen := make(map[string]bool)

	for _, chunk := range chunks {
		snippet := linkContext(chunk.Content)

		for _, link := range ExtractWikiLinks(chunk.Content) {
			id := linkEdgeID(docID, link.Target)
			if seen[id] {
				continue
			}
			seen[id] = true
			edge := LinkEdge{
				SourceID:     docID,
				TargetID:     link.Target,
				Relationship: "references",
				LinkType:     "wiki",
				Context:      snippet,
			}
			edgeDocs = append(edgeDocs, chromem.Document{
				ID:        id,
				Content:   snippet,
				Metadata:  edge.toMetadata(),
				Embedding: s.probe,
			})
		}

		for _, ref := range ExtractExternalRefs(chunk.Content) {
			id := referenceID(docID, ref.URL)
			if seen[id] {
				continue
			}
			seen[id] = true
			reference := Reference{
				SourceID: docID,
				Title:    ref.Text,
				URL:      ref.URL,
				Context:  snippet,
			}
			refDocs = append(refDocs, chromem.Document{
				ID:        id,
				Content:   ref.URL,
				Metadata:  reference.toMetadata(),
				Embedding: s.probe,
			})
		}
	}

	if len(edgeDocs) > 0 {
		err := withRetry(ctx, s.logger, s.retryDelay, "upsert links", func() error {
			return s.collections[CollectionLinks].AddDocuments(ctx, edgeDocs, 1)
		})
		if err != nil {
			return fmt.Errorf("storing link edges for %s: %w", docID, err)
		}
	}
	if len(refDocs) > 0 {
		err := withRetry(ctx, s.logger, s.retryDelay, "upsert references", func() error {
			return s.collections[CollectionReferences].AddDocuments(ctx, refDocs, 1)
		})
		if err != nil {
			return fmt.Errorf("storing references for %s: %w", docID, err)
		}
	}
	return nil
}

// UpdateDocument replaces a document's chunks and outgoing edges. Stale
// records are purged before the new ones go in, so a document that shrank
// leaves no orphans behind.
func (s *Store) UpdateDocument(ctx context.Context, docID string, chunks []Chunk, embeddings [][]float32, meta DocumentMeta) error {
	ctx, span := storeTracer.Start(ctx, "Store.UpdateDocument")
	defer span.End()

	span.SetAttributes(attribute.String("doc_id", docID))

	if err := s.purgeDocument(ctx, docID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if meta.ModifiedTime.IsZero() {
		meta.ModifiedTime = time.Now()
	}

	if err := s.AddDocument(ctx, docID, chunks, embeddings, meta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("updated document",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// DeleteDocument removes a document's chunks, outgoing edges, and tracking
// record. Deleting an unknown document is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.purgeDocument(ctx, docID); err != nil {
		return err
	}
	err := withRetry(ctx, s.logger, s.retryDelay, "delete metadata", func() error {
		return s.collections[CollectionMetadata].Delete(ctx, map[string]string{keyDocID: docID}, nil)
	})
	if err != nil {
		return fmt.Errorf("deleting tracking record for %s: %w", docID, err)
	}
	return nil
}

func (s *Store) purgeDocument(ctx context.Context, docID string) error {
	purges := []struct {
		collection string
		where      map[string]string
	}{
		{CollectionNotes, map[string]string{keyDocID: docID}},
		{CollectionLinks, map[string]string{keySourceID: docID}},
		{CollectionReferences, map[string]string{keySourceID: docID}},
	}
	for _, p := range purges {
		collection := s.collections[p.collection]
		if collection.Count() == 0 {
			continue
		}
		where := p.where
		err := withRetry(ctx, s.logger, s.retryDelay, "purge "+p.collection, func() error {
			return collection.Delete(ctx, where, nil)
		})
		if err != nil {
			return fmt.Errorf("purging %s for %s: %w", p.collection, docID, err)
		}
	}
	return nil
}

// SearchOptions controls FindSimilar.
type SearchOptions struct {
	// Limit caps the number of results. Defaults to 5.
	Limit int

	// Threshold drops results whose cosine similarity is below it.
	// Similarity ranges over [-1, 1]; pass -1 to keep every match.
	Threshold float32

	// DocType restricts results to one document type when non-empty.
	DocType string
}

// FindSimilar returns the chunks nearest to the query embedding, best first.
func (s *Store) FindSimilar(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]SimilarChunk, error) {
	ctx, span := storeTracer.Start(ctx, "Store.FindSimilar")
	defer span.End()

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}
	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("doc_type", opts.DocType),
	)

	notes := s.collections[CollectionNotes]
	count := notes.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if opts.DocType != "" {
		where = map[string]string{keyDocType: opts.DocType}
	}

	results, err := notes.QueryEmbedding(ctx, queryEmbedding, limit, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying notes: %w", err)
	}

	similar := make([]SimilarChunk, 0, len(results))
	for _, r := range results {
		if r.Similarity < opts.Threshold {
			continue
		}
		similar = append(similar, SimilarChunk{
			ChunkID:    r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Embedding:  r.Embedding,
			Similarity: r.Similarity,
		})
	}

	span.SetAttributes(attribute.Int("results", len(similar)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("similarity search",
		zap.Int("limit", limit),
		zap.Int("results", len(similar)),
		zap.String("doc_type", opts.DocType),
	)
	return similar, nil
}

// FindConnectedNotes returns the outgoing link edges of a document.
func (s *Store) FindConnectedNotes(ctx context.Context, docID string) ([]LinkEdge, error) {
	return s.queryEdges(ctx, map[string]string{keySourceID: docID})
}

// FindBacklinks returns the link edges pointing at a document.
func (s *Store) FindBacklinks(ctx context.Context, docID string) ([]LinkEdge, error) {
	return s.queryEdges(ctx, map[string]string{keyTargetID: docID})
}

func (s *Store) queryEdges(ctx context.Context, where map[string]string) ([]LinkEdge, error) {
	results, err := s.queryExact(ctx, s.collections[CollectionLinks], where)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	edges := make([]LinkEdge, 0, len(results))
	for _, r := range results {
		edges = append(edges, linkEdgeFromMetadata(r.Metadata))
	}
	return edges, nil
}

// FindReferences returns the external references cited by a document.
func (s *Store) FindReferences(ctx context.Context, docID string) ([]Reference, error) {
	results, err := s.queryExact(ctx, s.collections[CollectionReferences], map[string]string{keySourceID: docID})
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	refs := make([]Reference, 0, len(results))
	for _, r := range results {
		refs = append(refs, referenceFromMetadata(r.Metadata))
	}
	return refs, nil
}

// GetNoteContent returns the representative (first) stored chunk of a note,
// or nil when the note is not indexed. Absence is not an error.
func (s *Store) GetNoteContent(ctx context.Context, docID string) (*NoteContent, error) {
	notes := s.collections[CollectionNotes]

	results, err := s.queryExact(ctx, notes, map[string]string{keyDocID: docID})
	if err != nil {
		return nil, fmt.Errorf("querying note %s: %w", docID, err)
	}
	if len(results) == 0 {
		// Chunks written before doc_id tracking only carry their chunk ID.
		results, err = s.queryExact(ctx, notes, map[string]string{keyChunkID: docID + "_chunk_0"})
		if err != nil {
			return nil, fmt.Errorf("querying note %s: %w", docID, err)
		}
	}
	if len(results) == 0 {
		s.logger.Debug("note not found", zap.String("doc_id", docID))
		return nil, nil
	}

	pick := results[0]
	for _, r := range results {
		if r.Metadata[keyChunkIndex] == "0" {
			pick = r
			break
		}
	}

	return &NoteContent{
		Content:   pick.Content,
		Metadata:  pick.Metadata,
		Embedding: pick.Embedding,
	}, nil
}

// GetNoteChunks returns every stored chunk of a note in chunk order.
func (s *Store) GetNoteChunks(ctx context.Context, docID string) ([]SimilarChunk, error) {
	results, err := s.queryExact(ctx, s.collections[CollectionNotes], map[string]string{keyDocID: docID})
	if err != nil {
		return nil, fmt.Errorf("querying chunks of %s: %w", docID, err)
	}

	chunks := make([]SimilarChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, SimilarChunk{
			ChunkID:   r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		})
	}
	sortChunksByIndex(chunks)
	return chunks, nil
}

func sortChunksByIndex(chunks []SimilarChunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunkIndex(chunks[j]) < chunkIndex(chunks[j-1]); j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}

func chunkIndex(c SimilarChunk) int {
	n, _ := strconv.Atoi(c.Metadata[keyChunkIndex])
	return n
}

// NeedsUpdate reports whether a document is absent from the index or was
// modified after it was last indexed. Lookup errors count as needing an
// update; re-indexing is cheap and safe.
func (s *Store) NeedsUpdate(ctx context.Context, docID string, modified time.Time) bool {
	results, err := s.queryExact(ctx, s.collections[CollectionMetadata], map[string]string{keyDocID: docID})
	if err != nil {
		s.logger.Warn("update check failed", zap.String("doc_id", docID), zap.Error(err))
		return true
	}
	if len(results) == 0 {
		return true
	}
	stored := parseNanos(results[0].Metadata[keyModifiedTime])
	return modified.After(stored)
}

// LastUpdateTime returns the recorded time of the last index run, or the zero
// time when none is recorded.
func (s *Store) LastUpdateTime(ctx context.Context) time.Time {
	results, err := s.queryExact(ctx, s.collections[CollectionSystem], map[string]string{keyRecord: recordLastUpdate})
	if err != nil {
		s.logger.Warn("reading last update time failed", zap.Error(err))
		return time.Time{}
	}
	if len(results) == 0 {
		return time.Time{}
	}
	return parseNanos(results[0].Metadata[keyTimestamp])
}

// SetLastUpdateTime records the time of an index run.
func (s *Store) SetLastUpdateTime(ctx context.Context, t time.Time) error {
	metadata := map[string]string{
		keyRecord:    recordLastUpdate,
		keyTimestamp: formatNanos(t),
	}
	return s.upsertTracking(ctx, CollectionSystem, recordLastUpdate, recordLastUpdate, metadata)
}

// ClearAllCollections drops and recreates every collection, then rewrites the
// schema record. Used by full rebuilds and the reset command.
func (s *Store) ClearAllCollections(ctx context.Context) error {
	ctx, span := storeTracer.Start(ctx, "Store.ClearAllCollections")
	defer span.End()

	for _, name := range []string{CollectionNotes, CollectionLinks, CollectionReferences, CollectionMetadata, CollectionSystem} {
		if err := s.db.DeleteCollection(name); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
		collection, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("recreating collection %s: %w", name, err)
		}
		s.collections[name] = collection
	}

	if err := s.writeSchema(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("cleared all collections")
	return nil
}

// Count returns the number of records in a collection, 0 for unknown names.
func (s *Store) Count(collection string) int {
	c, ok := s.collections[collection]
	if !ok {
		return 0
	}
	return c.Count()
}

// Dimension returns the embedding dimension the store was opened with.
func (s *Store) Dimension() int {
	return s.dims
}

// Close releases the store. chromem persists on write, so this is bookkeeping.
func (s *Store) Close() error {
	s.logger.Debug("vector store closed")
	return nil
}
