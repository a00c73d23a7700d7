// Package cache keeps synthesized audio so repeated text is not synthesized
// twice. A small in-memory LRU sits in front of a zstd-compressed directory.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
)

// ErrItemTooLarge is returned when a value exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Cache stores audio by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Stats holds hit and miss counts.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64 // bytes currently held
	Items     int
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Key derives a cache key from the parts that determine the audio, such as
// the voice, the speaking rate and the text.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tiered checks memory first and falls back to disk, promoting disk hits.
type Tiered struct {
	memory *MemoryCache
	disk   *DiskCache

	hits   atomic.Int64
	misses atomic.Int64
}

var (
	_ Cache = (*Tiered)(nil)
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*DiskCache)(nil)
)

// NewTiered combines memory and disk. Either may be nil.
func NewTiered(memory *MemoryCache, disk *DiskCache) *Tiered {
	return &Tiered{memory: memory, disk: disk}
}

// Get returns the value for key.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if t.memory != nil {
		if v, ok := t.memory.Get(key); ok {
			t.hits.Add(1)
			return v, true
		}
	}
	if t.disk != nil {
		if v, ok := t.disk.Get(key); ok {
			t.hits.Add(1)
			if t.memory != nil {
				_ = t.memory.Put(key, v)
			}
			return v, true
		}
	}
	t.misses.Add(1)
	return nil, false
}

// Put stores value in every tier that can hold it.
func (t *Tiered) Put(key string, value []byte) error {
	var errs []error
	if t.memory != nil {
		if err := t.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			errs = append(errs, err)
		}
	}
	if t.disk != nil {
		if err := t.disk.Put(key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns combined lookup counts.
func (t *Tiered) Stats() Stats {
	s := Stats{Hits: t.hits.Load(), Misses: t.misses.Load()}
	if t.memory != nil {
		m := t.memory.Stats()
		s.Evictions += m.Evictions
		s.Size += m.Size
		s.Items += m.Items
	}
	if t.disk != nil {
		d := t.disk.Stats()
		s.Evictions += d.Evictions
	}
	return s
}

// Close releases the disk tier.
func (t *Tiered) Close() error {
	if t.disk != nil {
		return t.disk.Close()
	}
	return nil
}
