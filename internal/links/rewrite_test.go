package links_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/notegraph/internal/links"
	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

func writeNote(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readNote(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func newRewriteService(t *testing.T, root string, store *fakeStore) *links.Service {
	t.Helper()
	svc, err := links.NewService(links.Config{NotesRoot: root}, store, fakeChunker{}, fakeEmbedder{}, nil)
	require.NoError(t, err)
	return svc
}

func addLink(target string) []links.Directive {
	return []links.Directive{{TargetID: target, AddWikiLink: true}}
}

func TestUpdateObsidianLinks_AppendsSection(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, root, store)

	path := writeNote(t, root, "note.md", "# My Note\n\nSome body text.\n")

	err := svc.UpdateObsidianLinks(context.Background(), path, addLink("projects/Project Alpha.md"),
		links.UpdateOptions{SkipBacklinks: true, SkipVectorUpdate: true})
	require.NoError(t, err)

	got := readNote(t, path)
	assert.Contains(t, got, "\n---\n## Auto generated references\n")
	assert.Contains(t, got, "[[projects/Project Alpha.md|Project Alpha]]")
	assert.True(t, strings.HasPrefix(got, "# My Note"))
}

func TestUpdateObsidianLinks_Idempotent(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, root, store)

	path := writeNote(t, root, "note.md", "Body.\n")
	opts := links.UpdateOptions{SkipBacklinks: true, SkipVectorUpdate: true}

	require.NoError(t, svc.UpdateObsidianLinks(context.Background(), path, addLink("other.md"), opts))
	first := readNote(t, path)

	require.NoError(t, svc.UpdateObsidianLinks(context.Background(), path, addLink("other.md"), opts))
	second := readNote(t, path)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, "[[other.md|other]]"))
}

func TestUpdateObsidianLinks_ExistingSectionPreserved(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, root, store)

	content := "Body.\n\n---\n## Auto generated references\n[[old.md|old]]\n"
	path := writeNote(t, root, "note.md", content)

	err := svc.UpdateObsidianLinks(context.Background(), path, addLink("new.md"),
		links.UpdateOptions{SkipBacklinks: true, SkipVectorUpdate: true})
	require.NoError(t, err)

	got := readNote(t, path)
	assert.Equal(t, 1, strings.Count(got, "## Auto generated references"))
	assert.Contains(t, got, "[[old.md|old]]")
	assert.Contains(t, got, "[[new.md|new]]")
}

func TestUpdateObsidianLinks_BareMentionSkipped(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, root, store)

	// The note already mentions the target by base name.
	path := writeNote(t, root, "note.md", "Already covered in [[Beta|the beta doc]].\n")

	err := svc.UpdateObsidianLinks(context.Background(), path, addLink("projects/Beta.md"),
		links.UpdateOptions{SkipBacklinks: true, SkipVectorUpdate: true})
	require.NoError(t, err)

	got := readNote(t, path)
	assert.NotContains(t, got, "Auto generated references")
}

func TestUpdateObsidianLinks_MissingFile(t *testing.T) {
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, t.TempDir(), store)

	err := svc.UpdateObsidianLinks(context.Background(), "/does/not/exist.md", addLink("x.md"), links.UpdateOptions{})
	assert.ErrorIs(t, err, links.ErrNoteNotFound)
}

func TestUpdateObsidianLinks_BacklinkWrittenToTarget(t *testing.T) {
	root := t.TempDir()
	sourcePath := writeNote(t, root, "source.md", "Source body.\n")
	targetPath := writeNote(t, root, "target.md", "Target body.\n")

	store := &fakeStore{
		contents: map[string]*vectorstore.NoteContent{
			"target.md": {Metadata: map[string]string{"source_path": targetPath}},
		},
	}
	svc := newRewriteService(t, root, store)

	err := svc.UpdateObsidianLinks(context.Background(), sourcePath, addLink("target.md"),
		links.UpdateOptions{SkipVectorUpdate: true})
	require.NoError(t, err)

	target := readNote(t, targetPath)
	assert.Contains(t, target, "[[source.md]]", "backlink must land in the target note")

	source := readNote(t, sourcePath)
	assert.NotContains(t, source, "[[source.md]]")

	// Repeat run adds nothing: the forward link already exists, so no
	// backlink pass happens either.
	require.NoError(t, svc.UpdateObsidianLinks(context.Background(), sourcePath, addLink("target.md"),
		links.UpdateOptions{SkipVectorUpdate: true}))
	assert.Equal(t, 1, strings.Count(readNote(t, targetPath), "[[source.md]]"))
}

func TestUpdateObsidianLinks_ReindexesNote(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{contents: map[string]*vectorstore.NoteContent{}}
	svc := newRewriteService(t, root, store)

	path := writeNote(t, root, "daily/today.md", "Body.\n")

	err := svc.UpdateObsidianLinks(context.Background(), path, addLink("other.md"),
		links.UpdateOptions{SkipBacklinks: true})
	require.NoError(t, err)

	require.Len(t, store.updated, 1)
	assert.Equal(t, "daily/today.md", store.updated[0])
}
