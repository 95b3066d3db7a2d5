package rewrite

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HighlightClass marks recently changed content in the editor
const HighlightClass = "new-content-highlight"

// DefaultHighlightDuration is how long the marker stays visible
const DefaultHighlightDuration = 4500 * time.Millisecond

// minNewBlockChars: shorter blocks are never highlighted after an extend
const minNewBlockChars = 20

// Highlight is a presentation-only overlay on a persisted body
type Highlight struct {
	Body      string    `json:"body"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewHighlight stamps body with an expiry d from now
func NewHighlight(body string, now time.Time, d time.Duration) Highlight {
	if d <= 0 {
		d = DefaultHighlightDuration
	}
	return Highlight{Body: body, ExpiresAt: now.Add(d)}
}

// Mark wraps an escaped fragment in the highlight marker
func Mark(fragment string) string {
	return `<span class="` + HighlightClass + `">` + fragment + `</span>`
}

// StripHighlights removes every trace of the marker: marker-only spans are
// unwrapped and the class is dropped from any other element.
func StripHighlights(body string) string {
	if !strings.Contains(body, HighlightClass) {
		return body
	}
	z := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	var spans []bool // per open span: drop its end tag
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		raw := string(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			isSpan := tok.DataAtom == atom.Span && tt == html.StartTagToken
			idx, classes := classAttr(tok)
			if idx < 0 || !containsClass(classes, HighlightClass) {
				if isSpan {
					spans = append(spans, false)
				}
				b.WriteString(raw)
				continue
			}
			remaining := withoutClass(classes, HighlightClass)
			if isSpan && len(remaining) == 0 && len(tok.Attr) == 1 {
				spans = append(spans, true)
				continue
			}
			if isSpan {
				spans = append(spans, false)
			}
			if len(remaining) == 0 {
				tok.Attr = append(tok.Attr[:idx], tok.Attr[idx+1:]...)
			} else {
				tok.Attr[idx].Val = strings.Join(remaining, " ")
			}
			b.WriteString(tok.String())

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "span" && len(spans) > 0 {
				drop := spans[len(spans)-1]
				spans = spans[:len(spans)-1]
				if drop {
					continue
				}
			}
			b.WriteString(raw)

		default:
			b.WriteString(raw)
		}
	}
}

// ExtendHighlights marks the top-level blocks of newBody that look new
// compared to oldBody: more than 20 characters of text that do not occur
// in the old plain text. Persistence never depends on the result.
func ExtendHighlights(oldBody, newBody string) string {
	nodes, err := parseFragment(newBody)
	if err != nil {
		return newBody
	}
	old := PlainText(oldBody)

	hasElement := false
	var b strings.Builder
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			hasElement = true
			text := strings.TrimSpace(textContent(n))
			if utf8.RuneCountInString(text) > minNewBlockChars && !strings.Contains(old, text) {
				addClass(n, HighlightClass)
			}
		}
		if err := html.Render(&b, n); err != nil {
			return newBody
		}
	}
	if !hasElement {
		return newBody
	}
	return b.String()
}

func classAttr(tok html.Token) (int, []string) {
	for i, a := range tok.Attr {
		if a.Namespace == "" && a.Key == "class" {
			return i, strings.Fields(a.Val)
		}
	}
	return -1, nil
}

func containsClass(classes []string, c string) bool {
	for _, v := range classes {
		if v == c {
			return true
		}
	}
	return false
}

func withoutClass(classes []string, c string) []string {
	out := classes[:0:0]
	for _, v := range classes {
		if v != c {
			out = append(out, v)
		}
	}
	return out
}

func addClass(n *html.Node, c string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			classes := strings.Fields(a.Val)
			if !containsClass(classes, c) {
				n.Attr[i].Val = strings.Join(append(classes, c), " ")
			}
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: c})
}
