// Package watch reports content changes to a fixed set of files.
//
// Parent directories are watched rather than the files themselves, so
// editors that save by writing a temp file and renaming it over the
// original are still seen. Events are debounced and filtered by content
// hash: touching a file without changing it reports nothing.
package watch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the delay used when New is given zero.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to a set of files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	logger   *slog.Logger

	// Debouncing: collect changes before reporting
	pendingMu sync.Mutex
	pending   map[string]bool

	hashes map[string][32]byte
}

// New watches paths. Content already on disk is the baseline; only later
// changes are reported.
func New(paths []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]bool),
		hashes:   make(map[string][32]byte, len(paths)),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		if sum, ok := hashFile(abs); ok {
			w.hashes[abs] = sum
		}
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// Run calls onChange with the sorted absolute paths of files whose content
// changed, until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			if changed := w.flushPending(); len(changed) > 0 {
				onChange(changed)
			}
		}
	}
}

// Close stops the underlying watcher. Run returns afterwards.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.files[path] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = true
	w.pendingMu.Unlock()

	w.logger.Debug("file change detected", "path", path, "op", event.Op.String())
}

// flushPending returns pending files whose content hash differs from the
// last one seen. Files that are gone are skipped until they reappear.
func (w *Watcher) flushPending() []string {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return nil
	}
	toCheck := w.pending
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	var changed []string
	for path := range toCheck {
		if w.contentChanged(path) {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// contentChanged updates the stored hash for path and reports whether it moved.
func (w *Watcher) contentChanged(path string) bool {
	sum, ok := hashFile(path)
	if !ok {
		return false
	}
	if old, seen := w.hashes[path]; seen && old == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func hashFile(path string) ([32]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, false
	}
	return sha256.Sum256(data), true
}
