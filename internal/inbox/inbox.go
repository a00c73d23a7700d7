// Package inbox watches a directory for dropped files and enqueues what
// they contain.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/dgnsrekt/readaloud/internal/importer"
	"github.com/dgnsrekt/readaloud/internal/queue"
)

// RejectedSuffix is appended to files that could not be imported.
const RejectedSuffix = ".rejected"

// DefaultSettleDelay is how long a file must be quiet before it is read.
const DefaultSettleDelay = 250 * time.Millisecond

// Enqueuer receives imported items.
type Enqueuer interface {
	EnqueueBatch(items []queue.Item)
}

// Watcher imports files dropped into a directory. Imported files are
// removed; files that fail to import are renamed with RejectedSuffix.
type Watcher struct {
	dir    string
	queue  Enqueuer
	settle time.Duration
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithSettleDelay sets how long a file must be unchanged before import.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.settle = d
	}
}

// New creates a watcher for dir feeding q.
func New(dir string, q Enqueuer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:     dir,
		queue:   q,
		settle:  DefaultSettleDelay,
		logger:  log.Default(),
		pending: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithPrefix("watch")
	return w
}

// Run imports files already in the directory, then watches it until ctx is
// done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("create inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	w.logger.Info("fsnotify watching dir", "dir", w.dir)

	w.scan()

	defer w.wait()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			w.schedule(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

// scan schedules every candidate file already in the directory.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("could not read inbox", "dir", w.dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.schedule(filepath.Join(w.dir, e.Name()))
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	if !candidate(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.Import(path)
	})
}

// wait stops timers that have not fired and waits for running imports.
func (w *Watcher) wait() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Import parses path, enqueues its items and removes it. A file that cannot
// be parsed is renamed with RejectedSuffix.
func (w *Watcher) Import(path string) {
	items, err := importer.ParseFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.Warn("rejected file", "file", filepath.Base(path), "err", err)
		if err := os.Rename(path, path+RejectedSuffix); err != nil {
			w.logger.Error("could not mark file rejected", "file", path, "err", err)
		}
		return
	}

	w.queue.EnqueueBatch(items)
	w.logger.Info("imported file", "file", filepath.Base(path), "items", len(items))

	if err := os.Remove(path); err != nil {
		w.logger.Error("could not remove imported file", "file", path, "err", err)
	}
}

// candidate reports whether path looks like something to import.
func candidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, RejectedSuffix) {
		return false
	}
	return importer.Supported(name)
}
