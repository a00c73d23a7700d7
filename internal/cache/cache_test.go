package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKey(t *testing.T) {
	a := Key("voice.onnx", "1.00", "hello")
	if a != Key("voice.onnx", "1.00", "hello") {
		t.Error("key is not stable")
	}
	if a == Key("voice.onnx", "1.0", "0hello") {
		t.Error("parts must not run together")
	}
	if len(a) != 64 {
		t.Errorf("len(Key) = %d, want 64", len(a))
	}
}

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(10)

	_ = c.Put("a", []byte("aaaa"))
	_ = c.Put("b", []byte("bbbb"))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	_ = c.Put("c", []byte("cccc")) // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s missing", k)
		}
	}

	s := c.Stats()
	if s.Size != 8 || s.Items != 2 || s.Evictions != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}

	if err := c.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}

	_ = c.Put("a", []byte("a"))
	c.Delete("c")
	if s := c.Stats(); s.Size != 1 || s.Items != 1 {
		t.Errorf("after update and delete: %+v", s)
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(dir, 1<<20)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	pcm := bytes.Repeat([]byte{0, 1, 2, 3}, 4096)
	if err := c.Put("k", pcm); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || !bytes.Equal(got, pcm) {
		t.Fatal("round trip failed")
	}
	if c.Stats().Size >= int64(len(pcm)) {
		t.Error("value was not compressed")
	}
	_ = c.Close()

	// Reopening finds the file again.
	c, err = NewDiskCache(dir, 1<<20)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c.Close() //nolint:errcheck
	if _, ok := c.Get("k"); !ok {
		t.Error("value lost across reopen")
	}

	// A damaged file is dropped.
	if err := os.WriteFile(filepath.Join(dir, "k"+fileSuffix), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("corrupt file should miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "k"+fileSuffix)); !os.IsNotExist(err) {
		t.Error("corrupt file should be removed")
	}
}

func TestDiskCacheEviction(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer c.Close() //nolint:errcheck

	// Incompressible values so the compressed size is predictable enough.
	val := func(seed byte) []byte {
		b := make([]byte, 24)
		for i := range b {
			b[i] = seed*31 + byte(i*7)
		}
		return b
	}
	_ = c.Put("one", val(1))
	_ = c.Put("two", val(2))
	_ = c.Put("three", val(3))

	s := c.Stats()
	if s.Size > 64 {
		t.Errorf("size %d exceeds capacity", s.Size)
	}
	if s.Evictions == 0 {
		t.Error("expected an eviction")
	}
	if _, ok := c.Get("three"); !ok {
		t.Error("newest value should survive")
	}
}

func TestTiered(t *testing.T) {
	disk, err := NewDiskCache(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	c := NewTiered(NewMemoryCache(1<<10), disk)
	defer c.Close() //nolint:errcheck

	if _, ok := c.Get("k"); ok {
		t.Fatal("empty cache hit")
	}
	if err := c.Put("k", []byte("pcm")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Too large for memory, still cached on disk.
	big := bytes.Repeat([]byte{7}, 2<<10)
	if err := c.Put("big", big); err != nil {
		t.Fatalf("Put(big) failed: %v", err)
	}
	if got, ok := c.Get("big"); !ok || !bytes.Equal(got, big) {
		t.Error("big value not served from disk")
	}
	if v, ok := c.Get("k"); !ok || string(v) != "pcm" {
		t.Error("k not served")
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.HitRate() != 2.0/3.0 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestTieredMemoryOnly(t *testing.T) {
	c := NewTiered(NewMemoryCache(16), nil)
	_ = c.Put("k", []byte("v"))
	if _, ok := c.Get("k"); !ok {
		t.Error("memory-only cache miss")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
