package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/store"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
)

func testItems() []queue.Item {
	return []queue.Item{
		{ID: "1", Title: "First", URL: "https://a", Content: queue.StringPtr("Body.")},
		{ID: "2", Title: "Second", URL: "https://b", Labels: []string{"news"}, ImageURL: queue.StringPtr("https://img")},
	}
}

func TestWriteListText(t *testing.T) {
	var buf bytes.Buffer
	if err := (listOutput{format: "text"}).write(&buf, filterItems(testItems(), "")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], " 1. First") || !strings.HasPrefix(lines[1], " 2. Second") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if err := (listOutput{}).write(&buf, nil); err != nil || buf.String() != "Queue is empty.\n" {
		t.Errorf("empty list output = %q, %v", buf.String(), err)
	}
}

func TestWriteListTruncates(t *testing.T) {
	items := []queue.Item{{ID: "1", Title: strings.Repeat("long title ", 20), URL: "u"}}

	var buf bytes.Buffer
	if err := (listOutput{width: 40}).write(&buf, filterItems(items, "")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := strings.TrimRight(buf.String(), "\n")
	if len([]rune(line)) > 40 || !strings.Contains(line, "…") {
		t.Errorf("line not truncated to 40: %q", line)
	}
}

func TestWriteListJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (listOutput{format: "json"}).write(&buf, filterItems(testItems(), "")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var got []listEntry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 2 || got[0].Chars != len("First\nBody.") || got[1].ImageURL != "https://img" || got[1].Position != 2 {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestWriteListYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := (listOutput{format: "yaml"}).write(&buf, filterItems(testItems(), "")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var got []listEntry
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if len(got) != 2 || got[1].Labels[0] != "news" {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestWriteListUnknownFormat(t *testing.T) {
	if err := (listOutput{format: "xml"}).write(io.Discard, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterItems(t *testing.T) {
	items := []queue.Item{
		{ID: "1", Title: "Cooking pasta"},
		{ID: "2", Title: "Go concurrency patterns"},
		{ID: "3", Title: "Gardening"},
	}

	got := filterItems(items, "gocon")
	if len(got) != 1 || got[0].pos != 2 || got[0].item.ID != "2" {
		t.Errorf("filterItems(gocon) = %+v", got)
	}
	if got := filterItems(items, "zzz"); len(got) != 0 {
		t.Errorf("filterItems(zzz) = %+v", got)
	}
	if got := filterItems(items, ""); len(got) != 3 || got[2].pos != 3 {
		t.Errorf("filterItems() = %+v", got)
	}
}

func TestProgressLine(t *testing.T) {
	snap := queue.Snapshot{
		Items: testItems(),
		Engine: tts.Status{
			State:           tts.StateSpeaking,
			ArticleProgress: 0.5,
			UtteranceIndex:  0,
			TotalUtterances: 2,
		},
	}
	line := progressLine(snap)
	for _, want := range []string{"speaking", "[1/2]", "First", "50%"} {
		if !strings.Contains(line, want) {
			t.Errorf("progressLine() = %q, missing %q", line, want)
		}
	}

	if line := progressLine(queue.Snapshot{}); !strings.Contains(line, "0 queued") {
		t.Errorf("idle progressLine() = %q", line)
	}
}

func TestStoreConfigDefaults(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("store.driver", store.DriverFile)
		viper.Set("store.path", "")
	})

	viper.Set("store.path", "")
	viper.Set("store.driver", store.DriverSQLite)
	cfg, err := storeConfig()
	if err != nil {
		t.Fatalf("storeConfig failed: %v", err)
	}
	if filepath.Base(cfg.Path) != "readaloud.db" {
		t.Errorf("sqlite path = %q", cfg.Path)
	}

	viper.Set("store.driver", store.DriverFile)
	viper.Set("store.path", "/tmp/readaloud-store")
	cfg, err = storeConfig()
	if err != nil || cfg.Path != "/tmp/readaloud-store" {
		t.Errorf("explicit path = %q, %v", cfg.Path, err)
	}
}

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	logger := log.New(io.Discard)
	engine := tts.NewEngine(mock.New(mock.Config{WordsPerMinute: 6000}), tts.WithLogger(logger))
	q := queue.New(store.NewMemoryStore(""), engine, queue.WithLogger(logger))
	t.Cleanup(func() {
		_ = q.Close()
		_ = engine.Close()
	})
	return q
}

func TestWaitForDrain(t *testing.T) {
	q := newTestQueue(t)
	q.EnqueueBatch(testItems())

	var renders int
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := waitForDrain(ctx, q, func(queue.Snapshot) { renders++ }); err != nil {
		t.Fatalf("waitForDrain failed: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after drain", q.Len())
	}
	if renders == 0 {
		t.Error("render never called")
	}
}

func TestWaitForDrainCancel(t *testing.T) {
	q := newTestQueue(t)

	long := strings.Repeat("word ", 10_000)
	q.Enqueue(queue.Item{ID: "1", Title: "Long", URL: "u", Content: &long})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := waitForDrain(ctx, q, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waitForDrain() = %v, want deadline exceeded", err)
	}
}

func TestRenderItem(t *testing.T) {
	out, err := renderItem(testItems()[1], "notty", 60)
	if err != nil {
		t.Fatalf("renderItem failed: %v", err)
	}
	for _, want := range []string{"Second", "news", "https://b"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered item missing %q:\n%s", want, out)
		}
	}
}
