package notes

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-indexes notes as they change on disk. Write bursts (editors
// save repeatedly) are debounced per file; deletes and renames drop the
// document from the index immediately.
type Watcher struct {
	scanner  *Scanner
	indexer  *Indexer
	debounce time.Duration
	logger   *zap.Logger

	// OnEvent, when set, is called after each index mutation with the
	// operation ("indexed" or "removed") and the root-relative path.
	OnEvent func(op, rel string)
}

// NewWatcher creates a watcher over the scanner's root.
func NewWatcher(scanner *Scanner, indexer *Indexer, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		scanner:  scanner,
		indexer:  indexer,
		debounce: defaultDebounce,
		logger:   logger,
	}
}

// Run watches the notes root until the context is cancelled. New directories
// created while running are added to the watch list.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.scanner.Root()); err != nil {
		return err
	}

	w.logger.Info("watching notes directory", zap.String("root", w.scanner.Root()))

	indexCh := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	schedule := func(rel string) {
		if t, ok := timers[rel]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[rel] = time.AfterFunc(w.debounce, func() {
			select {
			case indexCh <- rel:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			w.logger.Info("watcher stopped")
			return nil

		case rel := <-indexCh:
			delete(timers, rel)
			w.handleChange(ctx, rel)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watching new directory failed",
							zap.String("path", ev.Name),
							zap.Error(addErr),
						)
					}
					w.scheduleDir(ev.Name, schedule)
					continue
				}
			}

			rel, ok := w.relevant(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.handleRemove(ctx, rel)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(watchErr))
		}
	}
}

// relevant maps an event path to a root-relative note path, filtering out
// non-Markdown files, hidden files, and excluded notes.
func (w *Watcher) relevant(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
		return "", false
	}
	rel, err := filepath.Rel(w.scanner.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if w.scanner.excluded(rel, name) {
		return "", false
	}
	return rel, true
}

// scheduleDir schedules indexing for Markdown files inside a new directory,
// since their create events may have fired before the directory was watched.
func (w *Watcher) scheduleDir(dir string, schedule func(string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relevant(path); ok {
			schedule(rel)
		}
		return nil
	})
}

func (w *Watcher) handleChange(ctx context.Context, rel string) {
	doc, err := w.scanner.Load(rel)
	if err != nil {
		// The file may have been deleted between the event and the
		// debounce firing.
		w.handleRemove(ctx, rel)
		return
	}
	if err := w.indexer.IndexDocument(ctx, *doc); err != nil {
		w.logger.Warn("re-indexing changed note failed",
			zap.String("doc_id", rel),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("re-indexed changed note", zap.String("doc_id", rel))
	if w.OnEvent != nil {
		w.OnEvent("indexed", rel)
	}
}

func (w *Watcher) handleRemove(ctx context.Context, rel string) {
	if err := w.indexer.RemoveDocument(ctx, rel); err != nil {
		w.logger.Warn("removing deleted note failed",
			zap.String("doc_id", rel),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("removed deleted note", zap.String("doc_id", rel))
	if w.OnEvent != nil {
		w.OnEvent("removed", rel)
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
