package generation

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
)

var (
	boldPattern    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	headingPattern = regexp.MustCompile(`^(#{1,3})\s*`)
)

// splitArticle takes the first line as the title and the rest as body
func splitArticle(text, topic string) (title, body string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	first, rest, _ := strings.Cut(text, "\n")

	first = strings.TrimSpace(strings.ReplaceAll(first, "**", ""))
	title = strings.TrimSpace(headingPattern.ReplaceAllString(first, ""))
	if utf8.RuneCountInString(title) < 5 {
		title = "Deep Dive: " + topic
	}
	return title, strings.TrimSpace(rest)
}

// markdownToHTML renders the small markdown subset the generators emit:
// blank-line separated blocks, #/##/### headings and **bold**
func markdownToHTML(md string) string {
	var blocks []string
	for _, block := range strings.Split(md, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if m := headingPattern.FindStringSubmatch(block); m != nil {
			tag := "h" + string(rune('0'+len(m[1])))
			text := html.EscapeString(strings.TrimSpace(block[len(m[0]):]))
			blocks = append(blocks, "<"+tag+">"+bold(text)+"</"+tag+">")
			continue
		}
		blocks = append(blocks, "<p>"+bold(html.EscapeString(block))+"</p>")
	}
	return strings.Join(blocks, "\n")
}

func bold(escaped string) string {
	return boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
}

// DefaultDisclaimer is attached to every generated article
const DefaultDisclaimer = "This material is for informational purposes only and should not be construed as investment, tax, or legal advice. Past performance is not indicative of future results. All investing involves risk, including the possible loss of principal."

// toResult turns raw model output into a Result for the given action
func toResult(kind Kind, req Request, text string) Result {
	if req.Action == domain.ActionRewrite || req.Action == domain.ActionTopics {
		return Result{Body: strings.TrimSpace(text)}
	}
	if kind == KindImage {
		return Result{Body: markdownToHTML(text)}
	}
	title, body := splitArticle(text, req.Topic)
	return Result{Title: title, Body: markdownToHTML(body), Disclaimers: DefaultDisclaimer}
}
