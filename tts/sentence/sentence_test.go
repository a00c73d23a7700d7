package sentence

import (
	"testing"
	"unicode/utf8"
)

func texts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "Hello world. How are you? Fine!", []string{"Hello world.", "How are you?", "Fine!"}},
		{"abbreviation", "Dr. Smith arrived. He sat.", []string{"Dr. Smith arrived.", "He sat."}},
		{"initials", "J. R. Tolkien wrote it. Yes.", []string{"J. R. Tolkien wrote it.", "Yes."}},
		{"decimals", "Pi is 3.14. E is 2.72.", []string{"Pi is 3.14.", "E is 2.72."}},
		{"dotted", "Made in the U.S. by hand. Done.", []string{"Made in the U.S. by hand.", "Done."}},
		{"lowercase continues", "See fig. three for details.", []string{"See fig. three for details."}},
		{"ellipsis", "Wait... Then go.", []string{"Wait...", "Then go."}},
		{"quotes", `He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"newlines", "Title\nFirst line\n\nSecond", []string{"Title", "First line", "Second"}},
		{"no terminal", "just words", []string{"just words"}},
		{"urls", "Visit example.com today.", []string{"Visit example.com today."}},
		{"empty", "  \n ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text)
			if !equal(texts(got), tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.text, texts(got), tt.want)
			}
		})
	}
}

// TestSplitCoversText tests that spans are contiguous and cover the input.
func TestSplitCoversText(t *testing.T) {
	text := "  Héllo wörld.  Second one!\n\nThird…  "
	spans := Split(text)
	if len(spans) == 0 {
		t.Fatal("no spans")
	}
	if spans[0].Start != 0 {
		t.Errorf("first span starts at %d", spans[0].Start)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start != spans[i-1].End {
			t.Errorf("span %d starts at %d, previous ended at %d", i, spans[i].Start, spans[i-1].End)
		}
	}
	if end := spans[len(spans)-1].End; end != utf8.RuneCountInString(text) {
		t.Errorf("last span ends at %d, want %d", end, utf8.RuneCountInString(text))
	}
}

func TestChunks(t *testing.T) {
	text := "One. Two. Three is longer. Four."

	got := Chunks(text, 10)
	want := []string{"One. Two.", "Three is longer.", "Four."}
	if !equal(texts(got), want) {
		t.Errorf("Chunks(10) = %q, want %q", texts(got), want)
	}
	if got[0].Start != 0 || got[len(got)-1].End != len(text) {
		t.Errorf("chunks do not cover the text: %+v", got)
	}

	whole := Chunks(text, 0)
	if len(whole) != 1 || whole[0].Text != text || whole[0].Len() != len(text) {
		t.Errorf("Chunks(0) = %+v", whole)
	}

	if Chunks("", 10) != nil {
		t.Error("empty text should have no chunks")
	}
}
