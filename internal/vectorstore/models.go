package vectorstore

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrInvalidConfig indicates invalid store configuration or dependencies.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates the persisted index was built with a
	// different embedding dimension than the configured model produces.
	// The only recovery is a full rebuild.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyChunks indicates an add/update was attempted with no chunks.
	ErrEmptyChunks = errors.New("no chunks provided")

	// ErrEmbeddingCountMismatch indicates chunks and embeddings differ in length.
	ErrEmbeddingCountMismatch = errors.New("chunk and embedding counts differ")
)

// Collection names. All five live in the same chromem DB directory.
const (
	CollectionNotes      = "notes"
	CollectionLinks      = "links"
	CollectionReferences = "references"
	CollectionMetadata   = "metadata"
	CollectionSystem     = "system"
)

// Metadata keys shared across collections.
const (
	keyDocID        = "doc_id"
	keyChunkID      = "chunk_id"
	keyChunkIndex   = "chunk_index"
	keyDocType      = "doc_type"
	keySourcePath   = "source_path"
	keyDate         = "date"
	keyFilename     = "filename"
	keyWikiLinks    = "wiki_links"
	keyExternalRefs = "external_refs"
	keySourceID     = "source_id"
	keyTargetID     = "target_id"
	keyRelationship = "relationship"
	keyLinkType     = "link_type"
	keyContext      = "context"
	keyTitle        = "title"
	keyURL          = "url"
	keyRecord       = "record"
	keyModifiedTime = "modified_time"
	keyTimestamp    = "timestamp"
	keyDims         = "embedding_dims"
	keyModel        = "embedding_model"
)

// System collection record IDs.
const (
	recordSchema     = "schema"
	recordLastUpdate = "last_update"
)

// Chunk is one indexed slice of a note. Fields carries the chunker's
// enrichment metadata (title, tags, dates, frontmatter_* keys) and is stored
// verbatim alongside the structural keys the store itself maintains.
type Chunk struct {
	Content string
	Fields  map[string]string
}

// DocumentMeta describes the note a batch of chunks came from.
type DocumentMeta struct {
	Type         string
	SourcePath   string
	Date         string
	Filename     string
	ModifiedTime time.Time
}

// SimilarChunk is a similarity search hit from the notes collection.
type SimilarChunk struct {
	ChunkID    string
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	Similarity float32
}

// DocID returns the owning document ID recorded on the chunk.
func (c SimilarChunk) DocID() string {
	return c.Metadata[keyDocID]
}

// NoteContent is the stored representative chunk of a note.
type NoteContent struct {
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// LinkEdge is a directed relationship between two notes, stored in the links
// collection. Context holds the beginning of the chunk the link appeared in.
type LinkEdge struct {
	SourceID     string
	TargetID     string
	Relationship string
	LinkType     string
	Context      string
}

func (e LinkEdge) toMetadata() map[string]string {
	return map[string]string{
		keySourceID:     e.SourceID,
		keyTargetID:     e.TargetID,
		keyRelationship: e.Relationship,
		keyLinkType:     e.LinkType,
		keyContext:      e.Context,
	}
}

func linkEdgeFromMetadata(m map[string]string) LinkEdge {
	edge := LinkEdge{
		SourceID:     m[keySourceID],
		TargetID:     m[keyTargetID],
		Relationship: m[keyRelationship],
		LinkType:     m[keyLinkType],
		Context:      m[keyContext],
	}
	if edge.Relationship == "" {
		edge.Relationship = "linked"
	}
	if edge.LinkType == "" {
		edge.LinkType = "wiki"
	}
	return edge
}

// Reference is an external URL cited by a note, stored in the references
// collection.
type Reference struct {
	SourceID string
	Title    string
	URL      string
	Context  string
}

func (r Reference) toMetadata() map[string]string {
	return map[string]string{
		keySourceID: r.SourceID,
		keyTitle:    r.Title,
		keyURL:      r.URL,
		keyContext:  r.Context,
	}
}

func referenceFromMetadata(m map[string]string) Reference {
	return Reference{
		SourceID: m[keySourceID],
		Title:    m[keyTitle],
		URL:      m[keyURL],
		Context:  m[keyContext],
	}
}

func parseNanos(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func formatNanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
