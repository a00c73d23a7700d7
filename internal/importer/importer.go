// Package importer turns files dropped by the user into queue items: JSON
// bookmark exports, markdown documents and plain text.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud/internal/queue"
)

var (
	// ErrUnsupported is returned for files the importer does not understand.
	ErrUnsupported = errors.New("unsupported file type")

	// ErrNoContent is returned when a file contains nothing to speak.
	ErrNoContent = errors.New("nothing to speak")
)

// Supported reports whether path has an extension the importer handles.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// ParseFile reads path and returns the items it contains, in file order.
func ParseFile(path string) ([]queue.Item, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	source := fileURL(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".md", ".markdown":
		it, err := ParseMarkdown(data, source, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		return []queue.Item{it}, nil
	default:
		it, err := ParseText(data, source)
		if err != nil {
			return nil, err
		}
		return []queue.Item{it}, nil
	}
}

// ParseJSON decodes a bookmark export: a single bookmark object or an array
// of them, using the queue's field names. Bookmarks without an id get a
// random one; a bookmark without a title or url is an error.
func ParseJSON(data []byte) ([]queue.Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoContent
	}

	var items []queue.Item
	if data[0] == '{' {
		var it queue.Item
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("decode bookmark: %w", err)
		}
		items = []queue.Item{it}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrNoContent
	}
	for i := range items {
		if items[i].Title == "" || items[i].URL == "" {
			return nil, fmt.Errorf("bookmark %d: title and url are required", i)
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
	return items, nil
}

// ParseMarkdown converts a markdown document into one item. The first
// heading becomes the title, falling back to fallbackTitle. The item id is
// derived from the content so re-importing the same document yields the
// same id.
func ParseMarkdown(data []byte, source, fallbackTitle string) (queue.Item, error) {
	title, body := markdownText(data)
	if title == "" {
		title = strings.TrimSuffix(fallbackTitle, filepath.Ext(fallbackTitle))
	}
	if body == "" && title == "" {
		return queue.Item{}, ErrNoContent
	}
	return newItem(title, body, source, data), nil
}

// ParseText converts plain text into one item. The first non-empty line is
// the title.
func ParseText(data []byte, source string) (queue.Item, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	title := strings.TrimSpace(lines[0])
	if title == "" {
		return queue.Item{}, ErrNoContent
	}
	body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
	return newItem(title, body, source, data), nil
}

func newItem(title, body, source string, raw []byte) queue.Item {
	it := queue.Item{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, append([]byte(source+"\x00"), raw...)).String(),
		Title: title,
		URL:   source,
	}
	if body != "" {
		it.Content = queue.StringPtr(body)
	}
	return it
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
