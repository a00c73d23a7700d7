package inbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/queue"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]queue.Item
}

func (r *recorder) EnqueueBatch(items []queue.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newWatcher(dir string, r *recorder) *Watcher {
	return New(dir, r,
		WithLogger(log.New(io.Discard)),
		WithSettleDelay(10*time.Millisecond),
	)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// TestImport tests importing a single file directly.
func TestImport(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{}
	w := newWatcher(dir, r)

	good := filepath.Join(dir, "bookmarks.json")
	writeFile(t, good, `[{"id":"1","title":"A","url":"u"},{"id":"2","title":"B","url":"u"}]`)
	w.Import(good)

	if r.count() != 1 || len(r.batches[0]) != 2 {
		t.Fatalf("expected one batch of two items, got %v", r.batches)
	}
	if exists(good) {
		t.Error("imported file should be removed")
	}

	bad := filepath.Join(dir, "broken.json")
	writeFile(t, bad, "{nope")
	w.Import(bad)

	if r.count() != 1 {
		t.Error("broken file should not be enqueued")
	}
	if exists(bad) || !exists(bad+RejectedSuffix) {
		t.Error("broken file should be renamed")
	}

	// Vanished files are ignored.
	w.Import(filepath.Join(dir, "gone.md"))
	if exists(filepath.Join(dir, "gone.md"+RejectedSuffix)) {
		t.Error("missing file should not be marked rejected")
	}
}

// TestCandidate tests which names are picked up.
func TestCandidate(t *testing.T) {
	for name, want := range map[string]bool{
		"a.md":            true,
		"a.json":          true,
		"a.txt":           true,
		".a.md":           false,
		"a.json.rejected": false,
		"a.pdf":           false,
	} {
		if got := candidate(filepath.Join("/inbox", name)); got != want {
			t.Errorf("candidate(%q) = %v, want %v", name, got, want)
		}
	}
}

// TestRun tests that existing and new files are imported while running.
func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.md"), "# Existing\n\nBody.")
	writeFile(t, filepath.Join(dir, "ignored.pdf"), "x")

	r := &recorder{}
	w := newWatcher(dir, r)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	waitFor(t, func() bool { return r.count() == 1 })

	writeFile(t, filepath.Join(dir, "new.txt"), "New\nbody")
	waitFor(t, func() bool { return r.count() == 2 })

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if !exists(filepath.Join(dir, "ignored.pdf")) {
		t.Error("unsupported files should be left alone")
	}
	if exists(filepath.Join(dir, "existing.md")) || exists(filepath.Join(dir, "new.txt")) {
		t.Error("imported files should be removed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
