package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PageText is the readable content of a page.
type PageText struct {
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// extractPageText renders the human-visible text of an HTML document: scripts,
// styles and other non-content elements are dropped, whitespace is collapsed
// and block elements start new lines. Text is cut at maxLength characters.
func extractPageText(rawHTML string, maxLength int) (*PageText, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &PageText{
		Title:       extractTitle(doc),
		Description: extractMetaDescription(doc),
	}

	w := &textWriter{}
	if body := findElement(doc, "body"); body != nil {
		w.walk(body)
	} else {
		w.walk(doc)
	}

	text := strings.TrimSpace(w.String())
	if maxLength > 0 && len([]rune(text)) > maxLength {
		text = truncate(text, maxLength)
		result.Truncated = true
	}
	result.Text = text
	return result, nil
}

// textWriter accumulates text, collapsing runs of whitespace and keeping at
// most one blank line between blocks.
type textWriter struct {
	b       strings.Builder
	space   bool // a space is owed before the next word
	newline int  // newlines owed before the next word
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) || isHidden(n) {
			return
		}
		if tag == "br" {
			w.breakLine(1)
			return
		}
		if isBlockElement(tag) {
			w.breakLine(1)
			defer w.breakLine(1)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *textWriter) text(s string) {
	if s == "" {
		return
	}
	if isSpace(s[0]) {
		w.space = true
	}
	for i, word := range strings.Fields(s) {
		if i > 0 {
			w.space = true
		}
		w.flush()
		w.b.WriteString(word)
	}
	if isSpace(s[len(s)-1]) {
		w.space = true
	}
}

func (w *textWriter) flush() {
	if w.b.Len() == 0 {
		w.space, w.newline = false, 0
		return
	}
	if w.newline > 0 {
		w.b.WriteString(strings.Repeat("\n", w.newline))
	} else if w.space {
		w.b.WriteByte(' ')
	}
	w.space, w.newline = false, 0
}

func (w *textWriter) breakLine(n int) {
	if n > w.newline {
		w.newline = n
	}
}

func (w *textWriter) String() string {
	return w.b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// isSkippedElement returns true for elements that never contribute visible text
func isSkippedElement(tagName string) bool {
	skipped := map[string]bool{
		"head":     true,
		"script":   true,
		"style":    true,
		"noscript": true,
		"template": true,
		"iframe":   true,
		"embed":    true,
		"object":   true,
		"svg":      true,
	}
	return skipped[tagName]
}

// isHidden reports elements hidden through the hidden or aria-hidden attributes.
func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(attr.Val, "true") {
				return true
			}
		}
	}
	return false
}

// isBlockElement returns true for block-level elements (for line breaks)
func isBlockElement(tagName string) bool {
	blocks := map[string]bool{
		"div":        true,
		"p":          true,
		"section":    true,
		"article":    true,
		"header":     true,
		"footer":     true,
		"nav":        true,
		"main":       true,
		"aside":      true,
		"h1":         true,
		"h2":         true,
		"h3":         true,
		"h4":         true,
		"h5":         true,
		"h6":         true,
		"ul":         true,
		"ol":         true,
		"li":         true,
		"table":      true,
		"tr":         true,
		"form":       true,
		"fieldset":   true,
		"blockquote": true,
		"pre":        true,
		"hr":         true,
	}
	return blocks[tagName]
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	title := findElement(doc, "title")
	if title == nil || title.FirstChild == nil || title.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(title.FirstChild.Data)
}

// extractMetaDescription extracts the meta description from the document
func extractMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && attr.Val == "description" {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				description = strings.TrimSpace(content)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if description != "" {
				return
			}
		}
	}
	traverse(doc)
	return description
}
