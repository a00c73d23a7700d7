package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"

	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/tts"
)

// stallTimeout is how long the queue may sit with work but no run in
// progress before waitForDrain gives up.
const stallTimeout = 2 * time.Second

// waitForDrain blocks until the queue has no work left, ctx is done or the
// queue stops making progress. Every snapshot is passed to render.
func waitForDrain(ctx context.Context, q *queue.Queue, render func(queue.Snapshot)) error {
	updates, unsubscribe := q.Subscribe()
	defer unsubscribe()

	stall := time.NewTimer(stallTimeout)
	defer stall.Stop()

	var last queue.Snapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			last = snap
			if render != nil {
				render(snap)
			}
			if !snap.HasWork {
				return nil
			}
			stall.Reset(stallTimeout)

		case <-stall.C:
			if last.Processing || last.Engine.IsActive() {
				stall.Reset(stallTimeout)
				continue
			}
			return fmt.Errorf("playback stopped with %d item(s) left", len(last.Items))
		}
	}
}

// progressLine renders a one-line summary of snap for a terminal.
func progressLine(snap queue.Snapshot) string {
	st := snap.Engine
	if !st.IsActive() || len(snap.Items) == 0 {
		return faint(fmt.Sprintf("%d queued", len(snap.Items)))
	}

	title := runewidth.Truncate(snap.Items[0].Title, 48, "…")

	state := keyword(st.State.String())
	if st.State == tts.StatePaused {
		state = highlight(st.State.String())
	}

	return fmt.Sprintf("%s %s %s %s",
		state,
		faint(fmt.Sprintf("[%d/%d]", st.UtteranceIndex+1, max(st.TotalUtterances, 1))),
		title,
		faint(fmt.Sprintf("%3.0f%%", st.ArticleProgress*100)),
	)
}

// progressPrinter returns a render func that redraws a single status line
// on w.
func progressPrinter(w io.Writer) func(queue.Snapshot) {
	var width int
	return func(snap queue.Snapshot) {
		line := progressLine(snap)
		n := ansi.PrintableRuneWidth(line)
		pad := max(width-n, 0)
		width = n
		_, _ = fmt.Fprintf(w, "\r%s%s", line, strings.Repeat(" ", pad))
	}
}

// itemSize describes the spoken length of it.
func itemSize(it queue.Item) string {
	return humanize.Bytes(uint64(len(it.SpokenText())))
}
