package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/queue"
)

var showCmd = &cobra.Command{
	Use:     "show [POSITION]",
	Short:   "Print a queued item",
	Long:    paragraph(fmt.Sprintf("\n%s the text of a queued item, the one being read by default, so you can read along.", keyword("Print"))),
	Example: paragraph("readaloud show\nreadaloud show 3"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid position %q", args[0])
			}
			pos = n
		}

		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if err := a.restore(cmd.Context()); err != nil {
			return err
		}
		items := a.queue.Items()
		if pos > len(items) {
			return fmt.Errorf("queue has %d item(s)", len(items))
		}

		width := 80
		style := styles.AutoStyle
		if fd := int(os.Stdout.Fd()); !term.IsTerminal(fd) {
			style = styles.NoTTYStyle
		} else if w, _, err := term.GetSize(fd); err == nil {
			width = min(w, 120)
		}

		out, err := renderItem(items[pos-1], style, width)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// renderItem renders it as a markdown document.
func renderItem(it queue.Item, style string, width int) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", it.Title)
	if it.Content != nil {
		md.WriteString(strings.ReplaceAll(*it.Content, "\n", "\n\n"))
		md.WriteString("\n\n")
	}
	if len(it.Labels) > 0 {
		fmt.Fprintf(&md, "*%s*\n\n", strings.Join(it.Labels, ", "))
	}
	fmt.Fprintf(&md, "<%s>\n", it.URL)

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md.String())
	if err != nil {
		return "", fmt.Errorf("unable to render item: %w", err)
	}
	return out, nil
}
