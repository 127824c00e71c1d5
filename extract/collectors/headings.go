package collectors

import (
	"context"
	"strings"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/textscan"
	"github.com/c360studio/semharvest/token"
)

// Heading is one extracted heading with its section span.
type Heading struct {
	// Line is the heading's source line, or -1.
	Line int `json:"line"`
	// Level is the heading level, 1 through 6.
	Level int `json:"level"`
	// Text is the heading's plain text.
	Text string `json:"text"`
	// Slug is a URL-safe anchor derived from Text.
	Slug string `json:"slug"`
	// ContainsTemplateSyntax flags template delimiters in the text.
	ContainsTemplateSyntax bool `json:"contains_template_syntax"`
	// SectionStartLine is the first line of the heading's section, or -1.
	SectionStartLine int `json:"section_start_line"`
	// SectionEndLine is the exclusive last line of the section, or -1.
	SectionEndLine int `json:"section_end_line"`
}

// Headings collects heading_open/heading_close pairs, taking the text
// from the inline tokens between them and the span from the warehouse
// section index.
type Headings struct {
	headings []Heading
	pending  *pendingHeading
}

type pendingHeading struct {
	section extract.Section
	text    strings.Builder
}

// NewHeadings returns a heading collector.
func NewHeadings() *Headings {
	return &Headings{headings: []Heading{}}
}

// Name implements extract.Collector.
func (c *Headings) Name() string { return "headings" }

// ShouldProcess selects heading delimiters and the inline runs that may
// sit between them.
func (c *Headings) ShouldProcess(_ int, tok *token.Token, _ *extract.Warehouse) bool {
	switch tok.Type {
	case "heading_open", "heading_close", "inline":
		return true
	}
	return false
}

// OnToken implements extract.Collector.
func (c *Headings) OnToken(_ context.Context, i int, tok *token.Token, w *extract.Warehouse) error {
	switch tok.Type {
	case "heading_open":
		// The section index only admits well-formed h1..h6 headings;
		// anything else is skipped here too.
		if section, ok := w.SectionAt(i); ok && section.HeadingIndex == i {
			c.pending = &pendingHeading{section: section}
		}
	case "inline":
		if c.pending != nil {
			c.pending.text.WriteString(tok.Text())
		}
	case "heading_close":
		if c.pending == nil {
			return nil
		}
		text := c.pending.text.String()
		c.headings = append(c.headings, Heading{
			Line:                   c.pending.section.StartLine,
			Level:                  c.pending.section.Level,
			Text:                   text,
			Slug:                   slugify(text),
			ContainsTemplateSyntax: textscan.HasTemplateSyntax(text),
			SectionStartLine:       c.pending.section.StartLine,
			SectionEndLine:         c.pending.section.EndLine,
		})
		c.pending = nil
	}
	return nil
}

// Finalize implements extract.Collector.
func (c *Headings) Finalize(_ *extract.Warehouse) (any, error) {
	return c.headings, nil
}

// slugify turns heading text into a URL-safe anchor: lowercase, letters
// and digits kept, separators collapsed to single hyphens.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
