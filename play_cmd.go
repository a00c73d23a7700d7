package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/importer"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/utils"
)

var (
	playFresh     bool
	playClipboard bool
	playAll       bool
)

var playCmd = &cobra.Command{
	Use:     "play FILE...",
	Short:   "Queue files and play until the queue is empty",
	Long:    paragraph(fmt.Sprintf("\n%s markdown, text or JSON bookmark files to the queue and read everything out loud. Directories are searched for such files. Interrupt to stop; the rest of the queue is kept for next time.", keyword("Add"))),
	Example: paragraph("readaloud play article.md\nreadaloud play --fresh bookmarks.json notes/\nreadaloud play --clipboard"),
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := importFiles(args, playAll)
		if err != nil {
			return err
		}
		if playClipboard {
			it, err := clipboardItem()
			if err != nil {
				return err
			}
			items = append(items, it)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{speak: true})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if playFresh {
			a.queue.Clear()
		} else if err := a.restore(ctx); err != nil {
			return err
		}

		if len(items) == 0 && a.queue.Len() == 0 {
			fmt.Println("Nothing to play.")
			return nil
		}

		a.queue.EnqueueBatch(items)
		a.queue.Resume()

		var render func(queue.Snapshot)
		if term.IsTerminal(int(os.Stdout.Fd())) {
			render = progressPrinter(os.Stdout)
			defer fmt.Println()
		}

		err = waitForDrain(ctx, a.queue, render)
		if errors.Is(err, context.Canceled) {
			a.queue.Stop()
			return nil
		}
		return err
	},
}

// importFiles parses every file in paths, keeping their order. Directories
// contribute the importable files below them.
func importFiles(paths []string, all bool) ([]queue.Item, error) {
	var items []queue.Item
	for _, p := range paths {
		p = utils.ExpandPath(p)

		files := []string{p}
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			if files, err = importer.FindFiles(p, all); err != nil {
				return nil, err
			}
			log.Debug("found files", "dir", p, "count", len(files))
		}

		for _, f := range files {
			parsed, err := importer.ParseFile(f)
			if err != nil {
				return nil, err
			}
			items = append(items, parsed...)
		}
	}
	return items, nil
}

// clipboardItem turns the clipboard text into an item.
func clipboardItem() (queue.Item, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return queue.Item{}, fmt.Errorf("unable to read clipboard: %w", err)
	}
	it, err := importer.ParseText([]byte(text), "clipboard:")
	if err != nil {
		return queue.Item{}, fmt.Errorf("clipboard: %w", err)
	}
	return it, nil
}

func init() {
	playCmd.Flags().BoolVar(&playFresh, "fresh", false, "drop the saved queue before adding files")
	playCmd.Flags().BoolVarP(&playClipboard, "clipboard", "c", false, "also queue the text on the clipboard")
	playCmd.Flags().BoolVarP(&playAll, "all", "a", false, "include files ignored by git when searching directories")
}
