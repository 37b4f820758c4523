package notes_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/notegraph/internal/notes"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func scanAll(t *testing.T, root string, excludes []string) map[string]notes.Document {
	t.Helper()
	scanner, err := notes.NewScanner(root, excludes, nil)
	require.NoError(t, err)

	docs, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	byID := make(map[string]notes.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	return byID
}

func TestScanner_FiltersAndTypes(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "daily/log.md", "[09:30] started work\n")
	writeFile(t, root, "2025-03-10.md", "[10:00] date-named daily\n")
	writeFile(t, root, "meetings/standup.md", "# Standup\n")
	writeFile(t, root, "weekly/week-11.md", "## Review\n")
	writeFile(t, root, "learning/go-generics.md", "- learned a thing\n")
	writeFile(t, root, "projects/alpha.md", "Project notes.\n")
	writeFile(t, root, "inbox.md", "Loose note.\n")
	writeFile(t, root, ".obsidian/workspace.md", "editor state\n")
	writeFile(t, root, ".vector_store/chromem.gob.md", "index internals\n")
	writeFile(t, root, "notes.txt", "not markdown\n")
	writeFile(t, root, "drafts/wip.md", "unfinished\n")

	docs := scanAll(t, root, []string{"drafts/*"})

	want := map[string]string{
		"daily/log.md":            "daily",
		"2025-03-10.md":           "daily",
		"meetings/standup.md":     "meeting",
		"weekly/week-11.md":       "weekly",
		"learning/go-generics.md": "learning",
		"projects/alpha.md":       "note",
		"inbox.md":                "note",
	}
	require.Len(t, docs, len(want))
	for id, docType := range want {
		doc, ok := docs[id]
		require.True(t, ok, "expected %s in scan results", id)
		assert.Equal(t, docType, doc.Type, id)
		assert.NotEmpty(t, doc.Content)
		assert.False(t, doc.ModifiedTime.IsZero())
		assert.Equal(t, filepath.Join(root, id), doc.SourcePath)
	}

	assert.Equal(t, "2025-03-10", docs["2025-03-10.md"].Date)
	assert.Empty(t, docs["daily/log.md"].Date)
}

func TestScanner_ExcludeByName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "kept\n")
	writeFile(t, root, "sub/template.md", "boilerplate\n")

	docs := scanAll(t, root, []string{"template.md"})

	assert.Contains(t, docs, "keep.md")
	assert.NotContains(t, docs, "sub/template.md")
}

func TestScanner_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "meetings/sync.md", "# Sync\nAgenda.\n")

	scanner, err := notes.NewScanner(root, nil, nil)
	require.NoError(t, err)

	doc, err := scanner.Load("meetings/sync.md")
	require.NoError(t, err)
	assert.Equal(t, "meetings/sync.md", doc.ID)
	assert.Equal(t, "meeting", doc.Type)
	assert.Equal(t, "# Sync\nAgenda.\n", doc.Content)

	_, err = scanner.Load("missing.md")
	assert.Error(t, err)
}
