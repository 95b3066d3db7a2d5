package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"golang.org/x/net/html"
)

// ErrEmptyReplacement is returned when the generated text is blank after cleanup
var ErrEmptyReplacement = fmt.Errorf("%w: generator returned empty text", common.ErrGenerationFailed)

// Result of replacing one span
type Result struct {
	// Body is what gets persisted; it carries no marker
	Body string
	// Highlighted is Body with the inserted text wrapped in the highlight marker
	Highlighted string
	// Span is the replaced range of the original source
	Span Span
	// Replacement is the escaped text that was inserted
	Replacement string
}

var (
	paraOpen  = regexp.MustCompile(`(?i)<p(\s[^>]*)?>`)
	paraClose = regexp.MustCompile(`(?i)</p\s*>`)
)

// CleanReplacement turns generated text into an escaped inline fragment.
// Paragraph wrappers are dropped and the rest is inserted as text, so any
// markup the generator produced shows literally instead of being rendered.
func CleanReplacement(s string) string {
	s = paraOpen.ReplaceAllString(s, "")
	s = paraClose.ReplaceAllString(s, "")
	s = strings.TrimSpace(html.UnescapeString(s))
	return html.EscapeString(s)
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// Apply replaces span with replacement. Bytes before and after the span are
// copied unchanged. Tags inside the span whose partner lies outside it are
// kept after the inserted text so the document stays balanced.
func (d *Document) Apply(span Span, replacement string) (Result, error) {
	if span.Start < 0 || span.End > len(d.source) || span.Start > span.End {
		return Result{}, selectionErr("span %s out of bounds for body of length %d", span, len(d.source))
	}
	text := CleanReplacement(replacement)
	if text == "" {
		return Result{}, ErrEmptyReplacement
	}

	prefix, suffix := d.source[:span.Start], d.source[span.End:]
	kept := unmatchedTags(d.source[span.Start:span.End])

	return Result{
		Body:        prefix + text + kept + suffix,
		Highlighted: prefix + Mark(text) + kept + suffix,
		Span:        span,
		Replacement: text,
	}, nil
}

// Replace resolves sel and applies replacement in one step
func (d *Document) Replace(sel Selection, minChars int, replacement string) (Result, error) {
	span, err := d.Resolve(sel, minChars)
	if err != nil {
		return Result{}, err
	}
	return d.Apply(span, replacement)
}

type tagToken struct {
	raw     string
	name    string
	matched bool
}

// unmatchedTags returns, in source order, the start and end tags of segment
// that have no partner inside it
func unmatchedTags(segment string) string {
	z := html.NewTokenizer(strings.NewReader(segment))
	var tags []tagToken
	var open []int
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.EndTagToken {
			continue
		}
		raw := string(z.Raw())
		name, _ := z.TagName()
		t := tagToken{raw: raw, name: string(name)}
		if voidElements[t.name] {
			continue
		}

		tags = append(tags, t)
		idx := len(tags) - 1
		if tt == html.StartTagToken {
			open = append(open, idx)
			continue
		}
		if n := len(open); n > 0 && tags[open[n-1]].name == t.name {
			tags[open[n-1]].matched = true
			tags[idx].matched = true
			open = open[:n-1]
		}
	}

	var b strings.Builder
	for _, t := range tags {
		if !t.matched {
			b.WriteString(t.raw)
		}
	}
	return b.String()
}

// Passage returns the rendered text covered by span
func (d *Document) Passage(span Span) string {
	if span.Start < 0 || span.End > len(d.source) || span.Start > span.End {
		return ""
	}
	return PlainText(d.source[span.Start:span.End])
}
