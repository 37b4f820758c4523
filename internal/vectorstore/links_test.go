package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWikiLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []WikiLink
	}{
		{
			name: "plain link",
			text: "See [[Project Alpha]] for details.",
			want: []WikiLink{{Target: "Project Alpha", Alias: "Project Alpha"}},
		},
		{
			name: "aliased link",
			text: "See [[project-alpha|the project]] for details.",
			want: []WikiLink{{Target: "project-alpha", Alias: "the project"}},
		},
		{
			name: "multiple links in order",
			text: "[[One]] then [[Two|second]] then [[Three]]",
			want: []WikiLink{
				{Target: "One", Alias: "One"},
				{Target: "Two", Alias: "second"},
				{Target: "Three", Alias: "Three"},
			},
		},
		{
			name: "no links",
			text: "Nothing to see here, not even [single brackets].",
			want: nil,
		},
		{
			name: "markdown link is not a wiki link",
			text: "External [docs](https://example.com) only.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractWikiLinks(tt.text))
		})
	}
}

func TestExtractExternalRefs(t *testing.T) {
	text := "Read [the docs](https://example.com/docs) and [[Internal Note]]."
	refs := ExtractExternalRefs(text)
	assert.Equal(t, []ExternalRef{{Text: "the docs", URL: "https://example.com/docs"}}, refs)

	assert.Nil(t, ExtractExternalRefs("no links at all"))
}

func TestReferenceID_Deterministic(t *testing.T) {
	a := referenceID("note-a", "https://example.com")
	b := referenceID("note-a", "https://example.com")
	c := referenceID("note-a", "https://example.org")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "note-a_to_"))
}

func TestLinkContext_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	assert.Len(t, linkContext(long), linkContextLen)
	assert.Equal(t, "short", linkContext("short"))
}
