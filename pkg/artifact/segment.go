// Package artifact splits assistant text into prose and artifact spans.
//
// Assistant messages may embed renderable panels using an inline markup:
//
//	{artifact type="code" title="Demo" language="js"}console.log(1){/artifact}
//
// Segment separates those blocks from the surrounding prose so the two can
// be rendered differently. It is a pure function over a complete string; when
// applied to a growing buffer it is re-run from scratch on every update, so a
// block is only ever emitted once both its opening and closing tags have
// fully arrived. Until then the partial tag text is plain prose.
package artifact

import (
	"regexp"
	"strings"
)

// SpanType discriminates the two span variants.
type SpanType int

const (
	// Prose is ordinary assistant text, rendered as markdown.
	Prose SpanType = iota
	// Block is an artifact panel extracted from the text.
	Block
)

// Artifact kinds recognized by the markup. Unrecognized type attributes are
// passed through untouched rather than rejected.
const (
	KindText     = "text"
	KindMarkdown = "markdown"
	KindCode     = "code"
)

// Span is one stretch of assistant text: either prose or an artifact block.
// Kind, Title and Language are only set for Block spans.
type Span struct {
	Type     SpanType
	Text     string // prose text, or the artifact body
	Kind     string // raw value of the type attribute
	Title    string // title attribute, defaulting to Kind
	Language string // language attribute, meaningful for code artifacts
}

// The markup has no nesting, so the body match is non-greedy: the first
// closing tag after an opening tag closes the block.
var (
	blockRe    = regexp.MustCompile(`(?s)\{artifact\s+(.*?)\}(.*?)\{/artifact\}`)
	typeRe     = regexp.MustCompile(`type="([^"]+)"`)
	titleRe    = regexp.MustCompile(`title="([^"]+)"`)
	languageRe = regexp.MustCompile(`language="([^"]+)"`)
)

// Segment splits text into an ordered sequence of prose and artifact spans.
// Text with no artifact markup, including opening tags that never close,
// comes back as a single prose span equal to the input.
func Segment(text string) []Span {
	matches := blockRe.FindAllStringSubmatchIndex(text, -1)

	var spans []Span
	last := 0
	for _, m := range matches {
		attrs := text[m[2]:m[3]]
		body := text[m[4]:m[5]]

		typeMatch := typeRe.FindStringSubmatch(attrs)
		if typeMatch == nil {
			// type is required; a block without one stays prose and gets
			// folded into the surrounding text on the next boundary.
			continue
		}

		if m[0] > last {
			spans = append(spans, Span{Type: Prose, Text: text[last:m[0]]})
		}

		kind := typeMatch[1]
		title := kind
		if titleMatch := titleRe.FindStringSubmatch(attrs); titleMatch != nil {
			title = titleMatch[1]
		}
		var language string
		if languageMatch := languageRe.FindStringSubmatch(attrs); languageMatch != nil {
			language = languageMatch[1]
		}

		spans = append(spans, Span{
			Type:     Block,
			Text:     renderableBody(kind, language, strings.TrimSpace(body)),
			Kind:     kind,
			Title:    title,
			Language: language,
		})
		last = m[1]
	}

	if last < len(text) || len(spans) == 0 {
		spans = append(spans, Span{Type: Prose, Text: text[last:]})
	}

	return spans
}

// renderableBody makes every artifact body safe to feed through a markdown
// renderer. Code bodies that are not already fenced get wrapped in a fence
// carrying the language hint.
func renderableBody(kind, language, body string) string {
	if kind != KindCode || strings.HasPrefix(body, "```") {
		return body
	}
	return "```" + language + "\n" + body + "\n```"
}
