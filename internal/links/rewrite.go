package links

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

// referencesHeading collects machine-added links in one place so manual
// sections stay untouched.
const referencesHeading = "## Auto generated references"

// knownSections are scanned when checking whether a target is already
// referenced somewhere in the note.
var knownSections = []string{"## Related", "## Links", "## References", "## Backlinks"}

// Directive is one link operation to apply to a note file.
type Directive struct {
	TargetID    string
	AddWikiLink bool
	// Alias overrides the generated alias when non-empty.
	Alias string
}

// UpdateOptions controls the side effects of UpdateObsidianLinks.
type UpdateOptions struct {
	// SkipBacklinks suppresses appending a backlink to each target note.
	SkipBacklinks bool
	// SkipVectorUpdate suppresses re-indexing the edited note, for batch
	// operations that re-index once at the end.
	SkipVectorUpdate bool
}

// UpdateObsidianLinks applies link directives to a note file. New links are
// appended as "[[target|alias]]" lines under the auto-generated references
// heading in the section after the first "\n---\n" separator; targets already
// referenced anywhere in the note are skipped, so repeated application is a
// no-op. The full updated content is assembled in memory before any write, so
// a failure leaves the file untouched.
//
// After a successful write, each added target note gets a "[[source]]"
// backlink appended to its own file, and the edited note is re-chunked,
// re-embedded, and updated in the store, unless the options suppress either
// step.
func (s *Service) UpdateObsidianLinks(ctx context.Context, notePath string, directives []Directive, opts UpdateOptions) error {
	expanded, err := expandPath(notePath)
	if err != nil {
		return fmt.Errorf("expanding %s: %w", notePath, err)
	}
	notePath = expanded
	noteID := s.normalizeNoteID(notePath)

	raw, err := os.ReadFile(notePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoteNotFound, notePath)
		}
		return fmt.Errorf("reading %s: %w", notePath, err)
	}
	original := string(raw)

	mainContent := original
	linksSection := ""
	if idx := strings.Index(original, "\n---\n"); idx >= 0 {
		mainContent = original[:idx]
		linksSection = original[idx+len("\n---\n"):]
	}

	var newLinks []string
	var addedTargets []string
	for _, d := range directives {
		if !d.AddWikiLink {
			continue
		}
		alias := d.Alias
		if alias == "" {
			alias = generateAlias(d.TargetID)
		}
		if hasWikiLink(mainContent+linksSection, d.TargetID) {
			s.logger.Debug("link already present",
				zap.String("note", notePath),
				zap.String("target", d.TargetID),
			)
			continue
		}
		newLinks = append(newLinks, fmt.Sprintf("[[%s|%s]]", d.TargetID, alias))
		addedTargets = append(addedTargets, d.TargetID)
	}

	if len(newLinks) == 0 {
		s.logger.Debug("no new links to add", zap.String("note", notePath))
		return nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(mainContent, " \t\n"))
	if linksSection != "" {
		b.WriteString("\n---\n")
		b.WriteString(strings.TrimRight(linksSection, " \t\n"))
		if !strings.Contains(b.String(), referencesHeading) {
			b.WriteString("\n\n" + referencesHeading)
		}
	} else {
		b.WriteString("\n\n---\n" + referencesHeading)
	}
	for _, link := range newLinks {
		b.WriteString("\n" + link)
	}
	updated := b.String()

	if err := os.WriteFile(notePath, []byte(updated), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", notePath, err)
	}

	s.logger.Info("updated links",
		zap.String("note", notePath),
		zap.Int("added", len(newLinks)),
	)

	if !opts.SkipBacklinks {
		for _, target := range addedTargets {
			s.appendBacklink(ctx, target, noteID)
		}
	}

	if !opts.SkipVectorUpdate {
		if err := s.reindexNote(ctx, noteID, notePath, updated); err != nil {
			// The file write already succeeded; the next index run picks
			// the change up.
			s.logger.Warn("re-index after link update failed",
				zap.String("note_id", noteID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// appendBacklink adds "[[source]]" to the end of the target note's file.
// Best effort: an unresolvable or unreadable target is logged and skipped,
// since the forward link was already written.
func (s *Service) appendBacklink(ctx context.Context, targetID, sourceID string) {
	targetPath := s.resolveNotePath(ctx, targetID)
	if targetPath == "" {
		s.logger.Warn("cannot resolve target note for backlink",
			zap.String("target", targetID),
		)
		return
	}

	raw, err := os.ReadFile(targetPath)
	if err != nil {
		s.logger.Warn("reading target note failed",
			zap.String("path", targetPath),
			zap.Error(err),
		)
		return
	}
	content := string(raw)

	if strings.Contains(content, "[["+sourceID+"]]") {
		return
	}

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n[[" + sourceID + "]]\n"

	if err := os.WriteFile(targetPath, []byte(content), 0644); err != nil {
		s.logger.Warn("writing target note failed",
			zap.String("path", targetPath),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("added backlink",
		zap.String("target", targetPath),
		zap.String("source", sourceID),
	)
}

// resolveNotePath maps a note ID to its file path, preferring the source path
// recorded in the index and falling back to the notes root.
func (s *Service) resolveNotePath(ctx context.Context, noteID string) string {
	if content, err := s.store.GetNoteContent(ctx, noteID); err == nil && content != nil {
		if path := content.Metadata["source_path"]; path != "" {
			if expanded, err := expandPath(path); err == nil {
				return expanded
			}
		}
	}

	if s.config.NotesRoot == "" {
		return ""
	}
	root, err := expandPath(s.config.NotesRoot)
	if err != nil {
		return ""
	}
	path := filepath.Join(root, noteID)
	if !strings.HasSuffix(path, ".md") {
		path += ".md"
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// reindexNote re-chunks and re-embeds edited content and updates the store.
func (s *Service) reindexNote(ctx context.Context, noteID, notePath, content string) error {
	if s.chunker == nil || s.embedder == nil {
		return nil
	}

	chunks, err := s.chunker.Chunk(ctx, content, chunker.Options{DocType: chunker.DocTypeNote})
	if err != nil {
		return fmt.Errorf("chunking %s: %w", noteID, err)
	}
	if len(chunks) == 0 {
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

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", noteID, err)
	}

	meta := vectorstore.DocumentMeta{
		Type:       chunker.DocTypeNote,
		SourcePath: notePath,
		Filename:   filepath.Base(notePath),
	}
	return s.store.UpdateDocument(ctx, noteID, storeChunks, embeddings, meta)
}

// generateAlias derives a readable alias: the target's filename without the
// .md extension, verbatim.
func generateAlias(target string) string {
	return strings.TrimSuffix(filepath.Base(target), ".md")
}

// hasWikiLink reports whether content already references the target: an exact
// wiki link, a mention inside a known links section, or a bare wiki link to
// the target's base name.
func hasWikiLink(content, target string) bool {
	exact := regexp.MustCompile(`\[\[` + regexp.QuoteMeta(target) + `(?:\|[^\]]+)?\]\]`)
	if exact.MatchString(content) {
		return true
	}

	for _, section := range knownSections {
		idx := strings.Index(content, section)
		if idx < 0 {
			continue
		}
		block := content[idx+len(section):]
		if end := strings.Index(block, "\n\n"); end >= 0 {
			block = block[:end]
		}
		if strings.Contains(block, target) {
			return true
		}
	}

	return strings.Contains(content, "[["+generateAlias(target))
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
