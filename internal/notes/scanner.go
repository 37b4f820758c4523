// Package notes supplies documents from the notes directory and drives
// indexing: full and incremental reindex runs plus a filesystem watcher.
package notes

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
)

// Document is a scanned note ready for indexing. ID is the path relative to
// the notes root.
type Document struct {
	ID           string
	Content      string
	Type         string
	Date         string
	ModifiedTime time.Time
	SourcePath   string
}

// dailyNameRe matches date-named files like 2025-03-10.md.
var dailyNameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.md$`)

// Scanner walks the notes root and yields Markdown documents, applying
// exclude globs and deriving each document's type from its location.
type Scanner struct {
	root     string
	excludes []string
	logger   *zap.Logger
}

// NewScanner creates a scanner for the given root directory. Exclude patterns
// are matched with path.Match semantics against both the relative path and
// the file name.
func NewScanner(root string, excludes []string, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	expanded, err := expandPath(root)
	if err != nil {
		return nil, fmt.Errorf("expanding notes root: %w", err)
	}
	return &Scanner{root: expanded, excludes: excludes, logger: logger}, nil
}

// Root returns the expanded notes root directory.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the root and returns every Markdown document that survives the
// exclude filters. Hidden files and directories (including the vector store
// directory) are always skipped.
func (s *Scanner) Scan(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if s.excluded(rel, name) {
			s.logger.Debug("excluded note", zap.String("path", rel))
			return nil
		}

		doc, err := s.Load(rel)
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}

	s.logger.Debug("scan complete", zap.Int("documents", len(docs)))
	return docs, nil
}

// Load reads one note by its root-relative path.
func (s *Scanner) Load(rel string) (*Document, error) {
	path := filepath.Join(s.root, rel)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	docType, date := classify(rel)
	return &Document{
		ID:           rel,
		Content:      string(raw),
		Type:         docType,
		Date:         date,
		ModifiedTime: info.ModTime(),
		SourcePath:   path,
	}, nil
}

func (s *Scanner) excluded(rel, name string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// classify derives the document type from the note's location: the first
// directory segment when it names a known type, a date-named file for daily
// notes, and the generic note type otherwise. Daily notes also yield their
// date.
func classify(rel string) (docType, date string) {
	name := filepath.Base(rel)
	if m := dailyNameRe.FindStringSubmatch(name); m != nil {
		return chunker.DocTypeDaily, m[1]
	}

	segment := rel
	if idx := strings.IndexRune(rel, filepath.Separator); idx >= 0 {
		segment = rel[:idx]
	} else {
		return chunker.DocTypeNote, ""
	}

	switch strings.ToLower(segment) {
	case "daily":
		return chunker.DocTypeDaily, ""
	case "weekly":
		return chunker.DocTypeWeekly, ""
	case "meetings", "meeting":
		return chunker.DocTypeMeeting, ""
	case "learning":
		return chunker.DocTypeLearning, ""
	}
	return chunker.DocTypeNote, ""
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
