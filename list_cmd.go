package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/readaloud/internal/queue"
)

var (
	listFormat string
	listFilter string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the saved queue",
	Example: paragraph("readaloud list\nreadaloud list --format json\nreadaloud list --filter golang"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if err := a.restore(cmd.Context()); err != nil {
			return err
		}

		out := listOutput{format: listFormat}
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			out.styled = true
			if w, _, err := term.GetSize(fd); err == nil {
				out.width = w
			}
		}
		return out.write(os.Stdout, filterItems(a.queue.Items(), listFilter))
	},
}

// listOutput controls how write renders the queue.
type listOutput struct {
	format string
	styled bool
	width  int // terminal width for text output, 0 for no limit
}

// listEntry is the machine readable form of a queued item.
type listEntry struct {
	Position int      `json:"position"           yaml:"position"`
	ID       string   `json:"id"                 yaml:"id"`
	Title    string   `json:"title"              yaml:"title"`
	URL      string   `json:"url"                yaml:"url"`
	Labels   []string `json:"labels,omitempty"   yaml:"labels,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Chars    int      `json:"chars"              yaml:"chars"`
}

// numbered is an item with its 1-based queue position.
type numbered struct {
	pos  int
	item queue.Item
}

// filterItems numbers items and, if pattern is set, keeps the ones whose
// title fuzzily matches it, best match first.
func filterItems(items []queue.Item, pattern string) []numbered {
	if pattern == "" {
		out := make([]numbered, len(items))
		for i, it := range items {
			out[i] = numbered{pos: i + 1, item: it}
		}
		return out
	}

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	matches := fuzzy.Find(pattern, titles)
	out := make([]numbered, len(matches))
	for i, m := range matches {
		out[i] = numbered{pos: m.Index + 1, item: items[m.Index]}
	}
	return out
}

func (o listOutput) write(w io.Writer, items []numbered) error {
	switch strings.ToLower(o.format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listEntries(items))

	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(listEntries(items)); err != nil {
			return err
		}
		return enc.Close()

	case "", "text":
		if len(items) == 0 {
			_, err := fmt.Fprintln(w, "Queue is empty.")
			return err
		}
		for _, n := range items {
			num := fmt.Sprintf("%2d.", n.pos)
			size := itemSize(n.item)
			title := n.item.Title
			if o.width > 0 {
				// room for the number, the size and the gaps
				avail := o.width - len(num) - len(size) - 3
				title = truncate.StringWithTail(title, uint(max(avail, 8)), "…") //nolint:gosec
			}
			if o.styled {
				size = faint(size)
				if n.pos == 1 {
					num = keyword(num)
				} else {
					num = faint(num)
				}
			}
			if _, err := fmt.Fprintf(w, "%s %s  %s\n", num, title, size); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", o.format)
	}
}

func listEntries(items []numbered) []listEntry {
	entries := make([]listEntry, 0, len(items))
	for _, n := range items {
		it := n.item
		e := listEntry{
			Position: n.pos,
			ID:       it.ID,
			Title:    it.Title,
			URL:      it.URL,
			Labels:   it.Labels,
			Chars:    len([]rune(it.SpokenText())),
		}
		if it.ImageURL != nil {
			e.ImageURL = *it.ImageURL
		}
		entries = append(entries, e)
	}
	return entries
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "text", "output format: text, json or yaml")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "only show items whose title fuzzily matches")
}
