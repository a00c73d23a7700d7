package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const fileSuffix = ".pcm.zst"

// DiskCache stores zstd-compressed values as files in a directory. The
// capacity bounds the compressed size; the least recently used files are
// removed first.
type DiskCache struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	files map[string]diskEntry
	size  int64
	stats Stats
}

type diskEntry struct {
	size   int64
	access time.Time
}

// NewDiskCache opens (creating if needed) a cache in dir holding up to
// capacity compressed bytes. Files left by earlier runs are kept.
func NewDiskCache(dir string, capacity int64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	c := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		files:    make(map[string]diskEntry),
	}
	if err := c.load(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Get reads and decompresses the value for key. Unreadable files are
// removed and reported as misses.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.files[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(c.path(key))
	if err == nil {
		data, err = c.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		c.removeLocked(key)
		c.stats.Misses++
		return nil, false
	}

	e.access = time.Now()
	c.files[key] = e
	_ = os.Chtimes(c.path(key), e.access, e.access)
	c.stats.Hits++
	return data, true
}

// Put compresses and writes value, evicting old files to stay within
// capacity.
func (c *DiskCache) Put(key string, value []byte) error {
	compressed := c.encoder.EncodeAll(value, nil)
	n := int64(len(compressed))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFile(c.path(key), compressed); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if old, ok := c.files[key]; ok {
		c.size -= old.size
	}
	c.files[key] = diskEntry{size: n, access: time.Now()}
	c.size += n

	for c.size > c.capacity && len(c.files) > 1 {
		c.evictOldestLocked(key)
	}
	return nil
}

// Stats returns a copy of the cache statistics.
func (c *DiskCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.size
	s.Items = len(c.files)
	return s
}

// Close releases the codec resources.
func (c *DiskCache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+fileSuffix)
}

// load indexes files already in the directory.
func (c *DiskCache) load() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, fileSuffix) || !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, fileSuffix)
		c.files[key] = diskEntry{size: info.Size(), access: info.ModTime()}
		c.size += info.Size()
	}

	for c.size > c.capacity && len(c.files) > 0 {
		c.evictOldestLocked("")
	}
	return nil
}

// evictOldestLocked removes the least recently used file other than keep.
func (c *DiskCache) evictOldestLocked(keep string) {
	keys := make([]string, 0, len(c.files))
	for k := range c.files {
		if k != keep {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.files[keys[i]].access.Before(c.files[keys[j]].access)
	})
	c.removeLocked(keys[0])
	c.stats.Evictions++
}

func (c *DiskCache) removeLocked(key string) {
	if e, ok := c.files[key]; ok {
		c.size -= e.size
		delete(c.files, key)
	}
	_ = os.Remove(c.path(key))
}

// writeFile writes data to a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
