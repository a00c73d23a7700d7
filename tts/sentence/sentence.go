// Package sentence splits text into sentences for incremental synthesis.
package sentence

import (
	"strings"
	"unicode"
)

// Span is a run of text measured in runes. Spans returned by Split and
// Chunks are contiguous: each starts where the previous one ended, and
// together they cover the whole input.
type Span struct {
	Start int
	End   int
	Text  string // the span's text without surrounding whitespace
}

// Len returns the span length in runes.
func (s Span) Len() int {
	return s.End - s.Start
}

// abbreviations that do not end a sentence, lower case without the period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true,
	"st": true, "vs": true, "etc": true, "inc": true, "ltd": true, "co": true, "corp": true,
	"no": true, "vol": true, "pp": true, "fig": true, "approx": true, "dept": true, "est": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true, "aug": true,
	"sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

// Split returns the sentences of text. Line breaks always end a sentence.
// Whitespace after a sentence belongs to that sentence.
func Split(text string) []Span {
	runes := []rune(text)
	var spans []Span

	start := 0
	emit := func(end int) {
		if t := strings.TrimSpace(string(runes[start:end])); t != "" {
			spans = append(spans, Span{Start: start, End: end, Text: t})
		} else if len(spans) > 0 {
			spans[len(spans)-1].End = end
		} else {
			return
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\n' && !isTerminal(r) {
			continue
		}
		if r != '\n' && !sentenceEnd(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && (isTerminal(runes[end]) || isCloser(runes[end])) {
			end++
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		emit(end)
		i = end - 1
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return spans
}

// Chunks groups consecutive sentences into spans of at most maxRunes runes
// of text. A single sentence longer than maxRunes is its own chunk.
// maxRunes <= 0 returns one chunk for the whole text.
func Chunks(text string, maxRunes int) []Span {
	sentences := Split(text)
	if maxRunes <= 0 && len(sentences) > 0 {
		last := sentences[len(sentences)-1]
		return []Span{{Start: sentences[0].Start, End: last.End, Text: strings.TrimSpace(text)}}
	}

	var chunks []Span
	for _, s := range sentences {
		if n := len(chunks); n > 0 {
			c := &chunks[n-1]
			if len([]rune(c.Text))+1+len([]rune(s.Text)) <= maxRunes {
				c.End = s.End
				c.Text += " " + s.Text
				continue
			}
		}
		chunks = append(chunks, s)
	}
	return chunks
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// sentenceEnd reports whether the punctuation at pos ends a sentence.
func sentenceEnd(runes []rune, pos int) bool {
	next := pos + 1
	for next < len(runes) && (isTerminal(runes[next]) || isCloser(runes[next])) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[next]) {
		// 3.14, e.g., example.com
		return false
	}
	if runes[pos] != '.' {
		return true
	}

	// Word before the period.
	w := pos
	for w > 0 && !unicode.IsSpace(runes[w-1]) {
		w--
	}
	word := strings.ToLower(strings.TrimLeft(string(runes[w:pos]), "(\"'"))
	if abbreviations[word] {
		return false
	}
	// Initials: "J. Smith"
	if n := []rune(word); len(n) == 1 && unicode.IsLetter(n[0]) {
		return false
	}
	return !startsLower(runes, next)
}

// startsLower reports whether the first non-space rune from pos is lower
// case, which suggests the sentence continues.
func startsLower(runes []rune, pos int) bool {
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		if runes[pos] == '\n' {
			return false
		}
		pos++
	}
	return pos < len(runes) && unicode.IsLower(runes[pos])
}
