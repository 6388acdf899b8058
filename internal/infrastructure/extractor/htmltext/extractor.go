// Package htmltext flattens an HTML document into plain text while
// preserving h1..h6 headings as structure hints.
package htmltext

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string {
	return "html"
}

func (e *Extractor) Supports(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".html" || ext == ".htm" {
		return true
	}
	return strings.Contains(contentType, "text/html")
}

func (e *Extractor) Extract(content []byte) (domain.Extraction, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	w := &walker{}
	w.walk(root)

	return domain.Extraction{
		Text:  strings.TrimSpace(w.text.String()),
		Hints: domain.StructureHints{Headings: w.headings},
	}, nil
}

type walker struct {
	text     strings.Builder
	headings []domain.Heading
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"template": true,
	"iframe":   true,
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] {
			return
		}
		if level := headingLevel(n.Data); level > 0 {
			w.ensureBreak()
			title := strings.TrimSpace(collectText(n))
			if title != "" {
				w.headings = append(w.headings, domain.Heading{
					Offset: w.text.Len(),
					Level:  level,
					Title:  title,
				})
				w.text.WriteString(title)
				w.text.WriteString("\n")
			}
			return
		}
	}

	if n.Type == html.TextNode {
		trimmed := strings.Join(strings.Fields(n.Data), " ")
		if trimmed != "" {
			if w.text.Len() > 0 && !strings.HasSuffix(w.text.String(), "\n") {
				w.text.WriteString(" ")
			}
			w.text.WriteString(trimmed)
		}
		return
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		w.walk(child)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		w.ensureBreak()
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"br": true, "blockquote": true, "pre": true, "main": true,
}

func (w *walker) ensureBreak() {
	if w.text.Len() > 0 && !strings.HasSuffix(w.text.String(), "\n") {
		w.text.WriteString("\n")
	}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			rec(child)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
