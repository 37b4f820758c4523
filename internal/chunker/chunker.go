// Package chunker splits raw Markdown documents into content-bounded
// segments carrying derived metadata.
package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

// Document types understood by the chunker. The type selects the splitting
// strategy.
const (
	DocTypeDaily    = "daily"
	DocTypeWeekly   = "weekly"
	DocTypeMeeting  = "meeting"
	DocTypeLearning = "learning"
	DocTypeNote     = "note"
)

// fallbackTitle labels chunks for which no heading could be derived.
const fallbackTitle = "Untitled"

var (
	// timestampMarkerRe matches daily-note entry markers like
	// "[2025-01-05 09:30]" or "[09:30]" at the start of a line.
	timestampMarkerRe = regexp.MustCompile(`(?m)^\[(?:\d{4}-\d{2}-\d{2}|\d{1,2}:\d{2})[^\]\n]*\]`)

	// headerMarkerRe matches Markdown headings at the start of a line.
	headerMarkerRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

	// listMarkerRe matches bullet and numbered list items at the start of
	// a line.
	listMarkerRe = regexp.MustCompile(`(?m)^(?:[-*+]\s|\d+\.\s)`)

	// genericMarkerRe combines all semantic markers for untyped notes.
	genericMarkerRe = regexp.MustCompile(`(?m)^(?:#{1,6}\s|[-*+]\s|\d+\.\s|\[(?:\d{4}-\d{2}-\d{2}|\d{1,2}:\d{2})[^\]\n]*\])`)
)

// Chunk is a bounded-size text segment of a document, the unit of embedding
// and retrieval.
type Chunk struct {
	Content  string
	Metadata Metadata
}

// Metadata describes a chunk. Fields are fixed here and serialized to the
// storage engine's key-value representation at the store boundary only.
type Metadata struct {
	Title         string
	CharCount     int
	DocType       string
	DocTitle      string
	Tags          []string
	Dates         []string
	SemanticChunk bool
	Frontmatter   map[string]string
}

// Fields flattens the metadata into the string map the vector store persists
// with each chunk. Frontmatter keys are already namespaced.
func (m Metadata) Fields() map[string]string {
	fields := make(map[string]string, len(m.Frontmatter)+6)
	if m.Title != "" {
		fields["title"] = m.Title
	}
	if m.DocTitle != "" {
		fields["doc_title"] = m.DocTitle
	}
	fields["char_count"] = strconv.Itoa(m.CharCount)
	if len(m.Tags) > 0 {
		fields["tags"] = strings.Join(m.Tags, ",")
	}
	if len(m.Dates) > 0 {
		fields["dates"] = strings.Join(m.Dates, ",")
	}
	fields["semantic_chunk"] = strconv.FormatBool(m.SemanticChunk)
	for k, v := range m.Frontmatter {
		fields[k] = v
	}
	return fields
}

// Options carries per-document inputs to Chunk. Zero values are derived from
// the content itself.
type Options struct {
	DocType     string
	Title       string
	Tags        []string
	Frontmatter map[string]interface{}
}

// Config holds chunk size bounds in characters.
type Config struct {
	MinChunkSize int
	MaxChunkSize int
}

// Service splits documents into chunks. It is a stateless transformer; all
// persisted state belongs to the vector store.
type Service struct {
	min      int
	max      int
	splitter textsplitter.RecursiveCharacter
	enricher Enricher
	logger   *zap.Logger
}

// NewService creates a chunking service. enricher may be nil to disable
// best-effort chunk enrichment.
func NewService(cfg Config, enricher Enricher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	overlap := cfg.MaxChunkSize / 10
	return &Service{
		min:      cfg.MinChunkSize,
		max:      cfg.MaxChunkSize,
		enricher: enricher,
		logger:   logger,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.MaxChunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "? ", "! ", "; ", " "}),
		),
	}
}

// Chunk splits content into chunks sized within [MinChunkSize, MaxChunkSize].
//
// Leading YAML frontmatter is stripped and parsed; title and tags are derived
// from it (and from the body) when not supplied in opts. Empty content yields
// an empty chunk list; content shorter than the minimum yields exactly one
// chunk containing the whole input.
func (s *Service) Chunk(ctx context.Context, content string, opts Options) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	docType := opts.DocType
	if docType == "" {
		docType = DocTypeNote
	}

	fm := opts.Frontmatter
	parsedFM, body := splitFrontmatter(content)
	if fm == nil {
		fm = parsedFM
	}

	title := opts.Title
	if title == "" {
		if t, ok := fm["title"].(string); ok {
			title = t
		}
	}
	if title == "" {
		title = extractTitle(body)
	}

	tags := extractTags(body, fm, opts.Tags)
	fmFields := frontmatterFields(fm)

	base := baseMetadata(docType, title, tags, fmFields)

	// Short documents become a single chunk, bounds notwithstanding.
	if runeLen(body) < s.min {
		return []Chunk{s.makeChunk(body, base, 1)}, nil
	}

	segments := s.segment(body, docType)
	chunks := s.accumulate(segments, base)
	if len(chunks) == 0 {
		// Marker filtering dropped everything; fall back to the whole
		// document as one chunk.
		chunks = []Chunk{s.makeChunk(body, base, 1)}
	}

	if s.enricher != nil {
		chunks = s.enrich(ctx, chunks).OrFallback(chunks)
	}

	return chunks, nil
}

// baseMetadata holds the per-document fields shared by all chunks.
type docMetadata struct {
	docType  string
	docTitle string
	tags     []string
	fmFields map[string]string
}

func baseMetadata(docType, title string, tags []string, fmFields map[string]string) docMetadata {
	return docMetadata{docType: docType, docTitle: title, tags: tags, fmFields: fmFields}
}

// segment applies the doc-type splitting strategy, drops sub-minimum
// fragments, and breaks oversize segments down with the recursive splitter.
func (s *Service) segment(body, docType string) []string {
	var raw []string
	switch docType {
	case DocTypeDaily:
		raw = splitAtMarkers(body, timestampMarkerRe)
	case DocTypeMeeting, DocTypeWeekly:
		raw = splitAtMarkers(body, headerMarkerRe)
	case DocTypeLearning:
		raw = splitAtMarkers(body, listMarkerRe)
	default:
		raw = splitParagraphs(splitAtMarkers(body, genericMarkerRe))
	}

	var segments []string
	for _, seg := range raw {
		seg = strings.TrimSpace(seg)
		if runeLen(seg) < s.min {
			continue
		}
		if runeLen(seg) <= s.max {
			segments = append(segments, seg)
			continue
		}
		segments = append(segments, s.splitOversize(seg)...)
	}
	return segments
}

// accumulate greedily packs consecutive segments into chunks while the
// running length stays within the maximum; on overflow the buffer is flushed
// and a new one starts with the overflowing segment.
func (s *Service) accumulate(segments []string, base docMetadata) []Chunk {
	var chunks []Chunk
	var buf string

	flush := func() {
		if buf == "" {
			return
		}
		chunks = append(chunks, s.makeChunk(buf, base, len(chunks)+1))
		buf = ""
	}

	for _, seg := range segments {
		if buf == "" {
			buf = seg
			continue
		}
		if runeLen(buf)+runeLen(seg)+2 <= s.max {
			buf += "\n\n" + seg
			continue
		}
		flush()
		buf = seg
	}
	flush()

	return chunks
}

// splitOversize breaks a single segment exceeding the maximum into pieces.
// The recursive splitter respects semantic boundaries; a hard cut at the
// maximum guards against pathological inputs with no separators at all.
// Tail pieces may fall below the minimum length and are kept: the minimum
// applies to whole segments in accumulate, never to the remainder of a
// forced split.
func (s *Service) splitOversize(seg string) []string {
	pieces, err := s.splitter.SplitText(seg)
	if err != nil {
		s.logger.Warn("recursive split failed, hard-cutting segment",
			zap.Int("segment_len", runeLen(seg)),
			zap.Error(err),
		)
		pieces = []string{seg}
	}

	var out []string
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		for runeLen(piece) > s.max {
			runes := []rune(piece)
			out = append(out, string(runes[:s.max]))
			piece = string(runes[s.max:])
		}
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func (s *Service) makeChunk(content string, base docMetadata, index int) Chunk {
	title := extractTitle(content)
	if title == "" {
		if base.docTitle != "" {
			title = fmt.Sprintf("%s (part %d)", base.docTitle, index)
		} else {
			title = fallbackTitle
		}
	}

	return Chunk{
		Content: content,
		Metadata: Metadata{
			Title:       title,
			CharCount:   runeLen(content),
			DocType:     base.docType,
			DocTitle:    base.docTitle,
			Tags:        base.tags,
			Dates:       extractDates(content),
			Frontmatter: base.fmFields,
		},
	}
}

// splitAtMarkers splits text into segments beginning at each marker match.
// Text before the first marker becomes its own segment.
func splitAtMarkers(text string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var segments []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			segments = append(segments, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	segments = append(segments, text[prev:])
	return segments
}

// splitParagraphs further breaks segments at blank lines.
func splitParagraphs(segments []string) []string {
	var out []string
	for _, seg := range segments {
		out = append(out, strings.Split(seg, "\n\n")...)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
