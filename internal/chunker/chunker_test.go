package chunker_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
)

func newTestService(t *testing.T, min, max int) *chunker.Service {
	t.Helper()
	return chunker.NewService(chunker.Config{MinChunkSize: min, MaxChunkSize: max}, nil, nil)
}

func TestChunk_EmptyDocument(t *testing.T) {
	svc := newTestService(t, 50, 300)

	chunks, err := svc.Chunk(context.Background(), "", chunker.Options{})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = svc.Chunk(context.Background(), "   \n\n  ", chunker.Options{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_SmallDocumentSingleChunk(t *testing.T) {
	svc := newTestService(t, 50, 300)

	chunks, err := svc.Chunk(context.Background(), "Quick note.", chunker.Options{})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Quick note.", chunks[0].Content)
	assert.Equal(t, "Untitled", chunks[0].Metadata.Title)
	assert.Equal(t, utf8.RuneCountInString("Quick note."), chunks[0].Metadata.CharCount)
}

func TestChunk_SizeBound(t *testing.T) {
	svc := newTestService(t, 20, 120)

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("This is a paragraph with enough text to count as a real segment of the note.\n\n")
	}

	chunks, err := svc.Chunk(context.Background(), b.String(), chunker.Options{DocType: chunker.DocTypeNote})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 120,
			"chunk exceeds max size: %q", c.Content)
		assert.Equal(t, utf8.RuneCountInString(c.Content), c.Metadata.CharCount)
	}
}

func TestChunk_OversizeTailKept(t *testing.T) {
	svc := newTestService(t, 20, 60)

	// One unbreakable run far beyond the maximum: the hard cut leaves a
	// short tail, which must survive rather than lose content.
	content := strings.Repeat("x", 130)
	chunks, err := svc.Chunk(context.Background(), content, chunker.Options{DocType: chunker.DocTypeNote})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 60)
		total += utf8.RuneCountInString(c.Content)
	}
	assert.Equal(t, 130, total, "no content dropped by the oversize split")
}

func TestChunk_DropsTinyFragments(t *testing.T) {
	svc := newTestService(t, 40, 200)

	content := "# Log\n\nok\n\nyes\n\nThis paragraph is comfortably long enough to survive the minimum size filter applied during splitting.\n"
	chunks, err := svc.Chunk(context.Background(), content, chunker.Options{})
	require.NoError(t, err)

	for _, c := range chunks {
		assert.NotEqual(t, "ok", strings.TrimSpace(c.Content))
		assert.NotEqual(t, "yes", strings.TrimSpace(c.Content))
	}
}

func TestChunk_DailyStrategy(t *testing.T) {
	svc := newTestService(t, 10, 90)

	content := "[09:00] Stood up the staging environment and verified the deploy pipeline end to end.\n" +
		"[11:30] Paired on the search ranking bug, wrote a regression test for it.\n" +
		"[14:15] Reviewed the quarterly planning doc and left comments for the team.\n"

	chunks, err := svc.Chunk(context.Background(), content, chunker.Options{DocType: chunker.DocTypeDaily})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2, "timestamp entries should split into separate chunks")

	assert.Contains(t, chunks[0].Content, "[09:00]")
	for _, c := range chunks {
		assert.Equal(t, chunker.DocTypeDaily, c.Metadata.DocType)
	}
}

func TestChunk_MeetingStrategySplitsOnHeaders(t *testing.T) {
	svc := newTestService(t, 10, 100)

	content := "# Planning sync\n\nDiscussed the roadmap for next quarter and who owns which deliverable.\n\n" +
		"## Decisions\n\nShip the indexing rework first, defer the UI refresh until the following cycle.\n\n" +
		"## Action items\n\nWrite up the migration plan and circulate it before Friday's checkpoint.\n"

	chunks, err := svc.Chunk(context.Background(), content, chunker.Options{DocType: chunker.DocTypeMeeting})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
}

func TestChunk_MetadataExtraction(t *testing.T) {
	svc := newTestService(t, 10, 500)

	content := `---
title: Search notes
tags:
  - search
  - ranking
project: retrieval
---
# Search notes

Met with the team on 2025-03-10 about #relevance tuning, follow-up 2025/03/12.
`

	chunks, err := svc.Chunk(context.Background(), content, chunker.Options{DocType: chunker.DocTypeNote})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	md := chunks[0].Metadata
	assert.Equal(t, "Search notes", md.DocTitle)
	assert.Contains(t, md.Tags, "search")
	assert.Contains(t, md.Tags, "ranking")
	assert.Contains(t, md.Tags, "relevance")
	assert.Equal(t, []string{"2025-03-10", "2025-03-12"}, md.Dates)
	assert.Equal(t, "retrieval", md.Frontmatter["frontmatter_project"])
	_, hasTitle := md.Frontmatter["frontmatter_title"]
	assert.False(t, hasTitle, "title must not leak into frontmatter fields")
}

func TestChunk_ExplicitOptionsWin(t *testing.T) {
	svc := newTestService(t, 10, 500)

	chunks, err := svc.Chunk(context.Background(),
		"A body that is long enough to produce at least one chunk of output text.",
		chunker.Options{Title: "Supplied", Tags: []string{"given"}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "Supplied", chunks[0].Metadata.DocTitle)
	assert.Contains(t, chunks[0].Metadata.Tags, "given")
}

// failingEnricher always errors, exercising the fallback path.
type failingEnricher struct{}

func (failingEnricher) Enrich(ctx context.Context, chunks []chunker.Chunk) ([]chunker.Chunk, error) {
	return nil, errors.New("enrichment service unavailable")
}

// titlingEnricher rewrites titles, exercising the success path.
type titlingEnricher struct{}

func (titlingEnricher) Enrich(ctx context.Context, chunks []chunker.Chunk) ([]chunker.Chunk, error) {
	for i := range chunks {
		chunks[i].Metadata.Title = "enriched"
	}
	return chunks, nil
}

func TestChunk_EnrichmentFallback(t *testing.T) {
	svc := chunker.NewService(chunker.Config{MinChunkSize: 10, MaxChunkSize: 500}, failingEnricher{}, nil)

	chunks, err := svc.Chunk(context.Background(),
		"Some content that is clearly long enough to be chunked into output.",
		chunker.Options{})
	require.NoError(t, err, "enrichment failure must not propagate")
	require.NotEmpty(t, chunks)
	assert.False(t, chunks[0].Metadata.SemanticChunk)
}

func TestChunk_EnrichmentSuccess(t *testing.T) {
	svc := chunker.NewService(chunker.Config{MinChunkSize: 10, MaxChunkSize: 500}, titlingEnricher{}, nil)

	chunks, err := svc.Chunk(context.Background(),
		"Some content that is clearly long enough to be chunked into output.",
		chunker.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, chunks[0].Metadata.SemanticChunk)
	assert.Equal(t, "enriched", chunks[0].Metadata.Title)
}

func TestEnrichResult_OrFallback(t *testing.T) {
	fallback := []chunker.Chunk{{Content: "raw", Metadata: chunker.Metadata{SemanticChunk: true}}}

	out := chunker.EnrichResult{}.OrFallback(fallback)
	require.Len(t, out, 1)
	assert.False(t, out[0].Metadata.SemanticChunk, "fallback chunks are not semantic")
}
