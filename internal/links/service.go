// Package links computes and materializes relationships between notes:
// direct wiki links, backlinks, semantically related content, and suggested
// connections derived from embedding similarity.
package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

var (
	// ErrNoteNotFound indicates the note file does not exist on disk.
	ErrNoteNotFound = errors.New("note not found")
)

// Store is the subset of the vector store the link service needs.
type Store interface {
	FindConnectedNotes(ctx context.Context, docID string) ([]vectorstore.LinkEdge, error)
	FindBacklinks(ctx context.Context, docID string) ([]vectorstore.LinkEdge, error)
	FindSimilar(ctx context.Context, queryEmbedding []float32, opts vectorstore.SearchOptions) ([]vectorstore.SimilarChunk, error)
	GetNoteContent(ctx context.Context, docID string) (*vectorstore.NoteContent, error)
	UpdateDocument(ctx context.Context, docID string, chunks []vectorstore.Chunk, embeddings [][]float32, meta vectorstore.DocumentMeta) error
}

// Chunker splits note content for re-indexing after a link rewrite.
type Chunker interface {
	Chunk(ctx context.Context, content string, opts chunker.Options) ([]chunker.Chunk, error)
}

// Embedder embeds re-chunked content.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the similarity thresholds and caps for relationship analysis.
// Semantic links use a tight threshold and small cap ("closely related
// content"); suggestions use a looser threshold and larger cap (discovery).
type Config struct {
	NotesRoot           string
	SemanticThreshold   float32
	SemanticLimit       int
	SuggestionThreshold float32
	SuggestionLimit     int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = 0.6
	}
	if c.SemanticLimit == 0 {
		c.SemanticLimit = 5
	}
	if c.SuggestionThreshold == 0 {
		c.SuggestionThreshold = 0.5
	}
	if c.SuggestionLimit == 0 {
		c.SuggestionLimit = 10
	}
}

// Service analyzes note relationships and rewrites wiki-link sections.
type Service struct {
	store    Store
	chunker  Chunker
	embedder Embedder
	config   Config
	logger   *zap.Logger
}

// NewService creates a link service. The chunker and embedder are only needed
// for link materialization (UpdateObsidianLinks with vector updates enabled).
func NewService(config Config, store Store, chunkSvc Chunker, embedder Embedder, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Service{
		store:    store,
		chunker:  chunkSvc,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// Analysis is the full relationship picture of one note.
type Analysis struct {
	NoteID         string
	DirectLinks    []vectorstore.LinkEdge
	Backlinks      []vectorstore.LinkEdge
	SemanticLinks  []vectorstore.SimilarChunk
	SuggestedLinks []Suggestion
}

// Suggestion is a similarity-derived candidate connection not yet
// materialized as a wiki link.
type Suggestion struct {
	NoteID     string
	Score      float64
	Reason     string
	ChunkCount int
	Preview    string
}

// AnalyzeRelationships collects direct links, backlinks, semantic links, and
// suggested connections for a note. A note with no indexed content degrades
// to empty semantic and suggestion lists rather than failing.
func (s *Service) AnalyzeRelationships(ctx context.Context, noteID string) (*Analysis, error) {
	noteID = s.normalizeNoteID(noteID)

	s.logger.Debug("analyzing relationships", zap.String("note_id", noteID))

	direct, err := s.store.FindConnectedNotes(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("finding direct links: %w", err)
	}

	backlinks, err := s.store.FindBacklinks(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("finding backlinks: %w", err)
	}

	analysis := &Analysis{
		NoteID:      noteID,
		DirectLinks: direct,
		Backlinks:   backlinks,
	}

	content, err := s.store.GetNoteContent(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("resolving note content: %w", err)
	}
	if content == nil {
		s.logger.Debug("note has no indexed content", zap.String("note_id", noteID))
		return analysis, nil
	}

	analysis.SemanticLinks, err = s.store.FindSimilar(ctx, content.Embedding, vectorstore.SearchOptions{
		Limit:     s.config.SemanticLimit,
		Threshold: s.config.SemanticThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("finding semantic links: %w", err)
	}

	analysis.SuggestedLinks, err = s.suggestConnections(ctx, noteID, content.Embedding, direct, backlinks)
	if err != nil {
		return nil, err
	}

	return analysis, nil
}

// suggestConnections queries with the looser suggestion threshold, groups hits
// by target document, and scores each target by
// max_similarity + 0.2 * (mean_similarity * min(1, chunks/3)), so a document
// matched by several chunks outranks an equal single-chunk match. The bonus
// saturates at three matching chunks.
func (s *Service) suggestConnections(ctx context.Context, noteID string, embedding []float32, direct, backlinks []vectorstore.LinkEdge) ([]Suggestion, error) {
	similar, err := s.store.FindSimilar(ctx, embedding, vectorstore.SearchOptions{
		Limit:     s.config.SuggestionLimit,
		Threshold: s.config.SuggestionThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("finding suggestion candidates: %w", err)
	}

	existing := make(map[string]bool, len(direct)+len(backlinks))
	for _, edge := range direct {
		existing[edge.TargetID] = true
	}
	for _, edge := range backlinks {
		existing[edge.SourceID] = true
	}

	type match struct {
		maxSimilarity float64
		sum           float64
		count         int
		bestPreview   string
	}
	matches := make(map[string]*match)
	var order []string

	for _, result := range similar {
		targetID := result.DocID()
		if targetID == "" || existing[targetID] || targetID == noteID ||
			filepath.Clean(targetID) == filepath.Clean(noteID) {
			continue
		}

		similarity := float64(result.Similarity)
		m, ok := matches[targetID]
		if !ok {
			matches[targetID] = &match{
				maxSimilarity: similarity,
				sum:           similarity,
				count:         1,
				bestPreview:   preview(result.Content),
			}
			order = append(order, targetID)
			continue
		}
		m.sum += similarity
		m.count++
		if similarity > m.maxSimilarity {
			m.maxSimilarity = similarity
			m.bestPreview = preview(result.Content)
		}
	}

	suggestions := make([]Suggestion, 0, len(matches))
	for _, targetID := range order {
		m := matches[targetID]
		bonus := m.sum / float64(m.count) * math.Min(1, float64(m.count)/3)
		score := m.maxSimilarity + bonus*0.2

		suggestions = append(suggestions, Suggestion{
			NoteID:     targetID,
			Score:      math.Round(score*1000) / 1000,
			Reason:     fmt.Sprintf("content similarity (%.2f) with %d matching chunks", m.maxSimilarity, m.count),
			ChunkCount: m.count,
			Preview:    m.bestPreview,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	s.logger.Debug("generated suggestions",
		zap.String("note_id", noteID),
		zap.Int("candidates", len(similar)),
		zap.Int("suggestions", len(suggestions)),
	)
	return suggestions, nil
}

const previewLen = 200

func preview(content string) string {
	if len(content) > previewLen {
		content = content[:previewLen]
	}
	return strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
}

// normalizeNoteID cleans the path and strips everything up to and including
// the notes root directory, so absolute paths and store IDs compare equal.
func (s *Service) normalizeNoteID(noteID string) string {
	noteID = filepath.Clean(noteID)
	if s.config.NotesRoot == "" {
		return noteID
	}
	base := filepath.Base(s.config.NotesRoot) + string(filepath.Separator)
	if idx := strings.Index(noteID, base); idx >= 0 {
		return noteID[idx+len(base):]
	}
	return noteID
}
