package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptSnapshot is returned when a persisted queue cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt queue snapshot")

// compressThreshold is the encoded size above which snapshots are
// zstd-compressed.
const compressThreshold = 1024

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes items as a JSON array, compressed when large.
func Encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	if len(data) > compressThreshold {
		return encoder.EncodeAll(data, nil), nil
	}
	return data, nil
}

// Decode is the inverse of Encode. Any failure yields ErrCorruptSnapshot and
// no items; partially decodable snapshots are rejected whole.
func Decode(data []byte) ([]Item, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		data = raw
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: not a list", ErrCorruptSnapshot)
	}

	items := make([]Item, len(records))
	for i, r := range records {
		if r.ID == nil || r.Title == nil || r.URL == nil {
			return nil, fmt.Errorf("%w: record %d lacks id, title or url", ErrCorruptSnapshot, i)
		}
		items[i] = Item{
			ID:       *r.ID,
			Title:    *r.Title,
			Content:  r.Content,
			URL:      *r.URL,
			Labels:   r.Labels,
			ImageURL: r.ImageURL,
		}
	}
	return items, nil
}

// record is the decoding form of Item; required fields are pointers so a
// missing key can be told apart from an empty value.
type record struct {
	ID       *string  `json:"id"`
	Title    *string  `json:"title"`
	Content  *string  `json:"content"`
	URL      *string  `json:"url"`
	Labels   []string `json:"labels"`
	ImageURL *string  `json:"imageUrl"`
}
