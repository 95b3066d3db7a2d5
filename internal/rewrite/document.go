// Package rewrite applies span-scoped edits to HTML document bodies.
//
// A Document pairs the HTML source with its rendered text. Every rendered
// rune remembers the source bytes it came from, so a selection made on the
// rendered text resolves to an exact source byte range and everything
// outside that range can be preserved byte for byte.
package rewrite

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// unit is one rune of rendered text and the source range [start, end) that produced it
type unit struct {
	r          rune
	start, end int
}

// Document is an immutable HTML body with its whitespace-collapsed rendered text
type Document struct {
	source string
	units  []unit
}

// block-level tags separate words in rendered text the way a browser selection does
var blockBoundary = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
}

// ParseDocument indexes body. It never fails: malformed markup is tokenized
// leniently, the same way a browser would render it.
func ParseDocument(body string) *Document {
	return &Document{source: body, units: collapse(renderedUnits(body))}
}

// Source returns the original HTML
func (d *Document) Source() string { return d.source }

// Text returns the rendered text selections and offsets refer to
func (d *Document) Text() string {
	var b strings.Builder
	for _, u := range d.units {
		b.WriteRune(u.r)
	}
	return b.String()
}

// Len is the rendered text length in runes
func (d *Document) Len() int { return len(d.units) }

func renderedUnits(body string) []unit {
	z := html.NewTokenizer(strings.NewReader(body))
	var out []unit
	offset, rawDepth := 0, 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		raw := string(z.Raw())
		start := offset
		offset += len(raw)

		switch tt {
		case html.TextToken:
			if rawDepth == 0 {
				out = appendText(out, raw, start)
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == html.StartTagToken {
					rawDepth++
				} else if tt == html.EndTagToken && rawDepth > 0 {
					rawDepth--
				}
				continue
			}
			if blockBoundary[a] {
				out = append(out, unit{r: ' ', start: start, end: start})
			}
		}
	}
}

// appendText decodes a raw text token. An entity maps every rune it decodes
// to to the whole entity.
func appendText(out []unit, raw string, base int) []unit {
	for i := 0; i < len(raw); {
		if raw[i] == '&' {
			if j := strings.IndexByte(raw[i:min(len(raw), i+33)], ';'); j > 0 {
				ent := raw[i : i+j+1]
				if dec := html.UnescapeString(ent); dec != ent {
					for _, r := range dec {
						out = append(out, unit{r: r, start: base + i, end: base + i + j + 1})
					}
					i += j + 1
					continue
				}
			}
		}
		r, size := utf8.DecodeRuneInString(raw[i:])
		out = append(out, unit{r: r, start: base + i, end: base + i + size})
		i += size
	}
	return out
}

// collapse folds every whitespace run into one space spanning the whole run
func collapse(in []unit) []unit {
	out := make([]unit, 0, len(in))
	for _, u := range in {
		if !unicode.IsSpace(u.r) {
			out = append(out, u)
			continue
		}
		if n := len(out); n > 0 && out[n-1].r == ' ' {
			out[n-1].end = max(out[n-1].end, u.end)
			continue
		}
		out = append(out, unit{r: ' ', start: u.start, end: u.end})
	}
	return out
}

// normalize trims s and collapses its whitespace the way Document text is
func normalize(s string) []rune {
	var out []rune
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	return out
}

// PlainText returns the text content of an HTML body: text nodes
// concatenated, entities decoded, no separators added.
func PlainText(body string) string {
	nodes, err := parseFragment(body)
	if err != nil {
		return body
	}
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return b.String()
}

func parseFragment(body string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(body), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
}

func textContent(n *html.Node) string {
	var b strings.Builder
	writeText(&b, n)
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.CommentNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
	}
}
