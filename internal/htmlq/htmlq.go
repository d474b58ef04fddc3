// Package htmlq is a small typed query layer over goquery used by the page
// extractors. Lookups report whether the element exists instead of panicking
// on missing nodes.
package htmlq

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseBytes parses body as HTML.
func ParseBytes(body []byte) (*Document, error) {
	return Parse(bytes.NewReader(body))
}

// Find returns every element matching selector.
func (d *Document) Find(selector string) Selection {
	return Selection{sel: d.doc.Find(selector)}
}

// FindText returns the trimmed text of the first element matching selector.
func (d *Document) FindText(selector string) (string, bool) {
	return d.Find(selector).First().Text()
}

// FindAttr returns attr of the first element matching selector. The boolean is
// false when no element matches or the attribute is absent.
func (d *Document) FindAttr(selector, attr string) (string, bool) {
	return d.Find(selector).First().Attr(attr)
}

// FindAll returns each element matching selector as its own Selection.
func (d *Document) FindAll(selector string) []Selection {
	return d.Find(selector).All()
}

// FindTextMatching locates the first text node containing substr and returns
// the trimmed text of its parent element.
func (d *Document) FindTextMatching(substr string) (string, bool) {
	for _, root := range d.doc.Nodes {
		if n := findTextNode(root, substr); n != nil {
			parent := n.Parent
			if parent == nil {
				return strings.TrimSpace(n.Data), true
			}
			return strings.TrimSpace(nodeText(parent)), true
		}
	}
	return "", false
}

// Selection is a read-only view of zero or more elements.
type Selection struct {
	sel *goquery.Selection
}

// Exists reports whether the selection matched at least one element.
func (s Selection) Exists() bool {
	return s.sel != nil && s.sel.Length() > 0
}

// Find searches descendants of the selection.
func (s Selection) Find(selector string) Selection {
	if s.sel == nil {
		return s
	}
	return Selection{sel: s.sel.Find(selector)}
}

// First narrows the selection to its first element.
func (s Selection) First() Selection {
	if s.sel == nil {
		return s
	}
	return Selection{sel: s.sel.First()}
}

// Last narrows the selection to its last element.
func (s Selection) Last() Selection {
	if s.sel == nil {
		return s
	}
	return Selection{sel: s.sel.Last()}
}

// All splits the selection into single-element selections.
func (s Selection) All() []Selection {
	if !s.Exists() {
		return nil
	}
	out := make([]Selection, 0, s.sel.Length())
	s.sel.Each(func(_ int, item *goquery.Selection) {
		out = append(out, Selection{sel: item})
	})
	return out
}

// Text returns the combined trimmed text of the selection.
func (s Selection) Text() (string, bool) {
	if !s.Exists() {
		return "", false
	}
	return strings.TrimSpace(s.sel.Text()), true
}

// Attr returns the attribute of the first element.
func (s Selection) Attr(name string) (string, bool) {
	if !s.Exists() {
		return "", false
	}
	return s.sel.Attr(name)
}

// FirstChildText returns the trimmed text of the first child node of the first
// element, which may be a bare text node.
func (s Selection) FirstChildText() (string, bool) {
	if !s.Exists() {
		return "", false
	}
	child := s.sel.Nodes[0].FirstChild
	if child == nil {
		return "", false
	}
	return strings.TrimSpace(nodeText(child)), true
}

func findTextNode(n *html.Node, substr string) *html.Node {
	if n.Type == html.TextNode && strings.Contains(n.Data, substr) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTextNode(c, substr); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
