package queue

import "strings"

// Item is one unit of speakable content. Items are immutable once enqueued:
// the queue stores copies and hands out copies.
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  *string  `json:"content,omitempty"`
	URL      string   `json:"url"`
	Labels   []string `json:"labels,omitempty"`
	ImageURL *string  `json:"imageUrl,omitempty"`
}

// SpokenText is the title and the content on separate lines, trimmed.
func (it Item) SpokenText() string {
	content := ""
	if it.Content != nil {
		content = *it.Content
	}
	return strings.TrimSpace(it.Title + "\n" + content)
}

// clone returns a deep copy of the item. Empty labels become nil, which is
// how they decode from a snapshot.
func (it Item) clone() Item {
	c := it
	if it.Content != nil {
		s := *it.Content
		c.Content = &s
	}
	if it.ImageURL != nil {
		s := *it.ImageURL
		c.ImageURL = &s
	}
	c.Labels = nil
	if len(it.Labels) > 0 {
		c.Labels = append([]string(nil), it.Labels...)
	}
	return c
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}

// StringPtr returns a pointer to s, for filling optional fields.
func StringPtr(s string) *string {
	return &s
}
