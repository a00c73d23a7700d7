package importer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownText converts markdown to speakable plain text. The first level
// one or two heading, if any, is returned separately as the title. Code
// blocks and raw HTML are dropped; link targets are not spoken.
func markdownText(src []byte) (title, body string) {
	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	w := &textWalker{source: reader.Source()}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && title == "" && h.Level <= 2 {
			var buf strings.Builder
			w.inline(h, &buf)
			title = strings.TrimSpace(buf.String())
			continue
		}
		w.block(n)
	}

	return title, strings.TrimSpace(strings.Join(w.paragraphs, "\n"))
}

type textWalker struct {
	source     []byte
	paragraphs []string
}

// block collects one paragraph per block-level node.
func (w *textWalker) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
		return

	case *ast.ThematicBreak:
		return

	case *ast.List, *ast.Blockquote, *ast.ListItem:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
		return
	}

	var buf strings.Builder
	w.inline(node, &buf)
	para := strings.Join(strings.Fields(buf.String()), " ")
	if para == "" {
		return
	}
	if _, ok := node.(*ast.Heading); ok && !endsSentence(para) {
		para += "."
	}
	w.paragraphs = append(w.paragraphs, para)
}

// inline writes the text content of node's children.
func (w *textWalker) inline(node ast.Node, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(w.source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.RawHTML:
			// skipped
		case *ast.Image:
			// alt text only
			w.inline(n, buf)
		default:
			w.inline(n, buf)
		}
	}
}

func endsSentence(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}
