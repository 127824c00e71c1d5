package collectors

import (
	"context"
	"strings"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/textscan"
	"github.com/c360studio/semharvest/token"
	"github.com/c360studio/semharvest/urlcheck"
)

// Link is one extracted link target with its validation verdict. Invalid
// targets are kept, flagged with Valid=false and the failing check's
// reason, so consumers see what was rejected instead of a silent gap.
type Link struct {
	// Line is the source line of the surrounding inline run, or -1.
	Line int `json:"line"`
	// Text is the visible link text.
	Text string `json:"text"`
	// Href is the raw target as written in the document.
	Href string `json:"href"`
	// Normalized is the validated, reassembled target. Empty when invalid.
	Normalized string `json:"normalized,omitempty"`
	// Valid reports whether Href cleared URL validation.
	Valid bool `json:"valid"`
	// Reason names the failed validation check. Empty when valid.
	Reason string `json:"reason,omitempty"`
	// Warnings carries validator notes such as IDNA host conversion.
	Warnings []string `json:"warnings,omitempty"`
	// ContainsTemplateSyntax flags template delimiters in the link text.
	ContainsTemplateSyntax bool `json:"contains_template_syntax"`
	// InsideHeading reports whether the link sits in heading content.
	InsideHeading bool `json:"inside_heading"`
}

// Links collects link_open/link_close pairs (autolinks included) from
// inline token children.
type Links struct {
	allowRelative bool
	links         []Link
}

// NewLinks returns a link collector. allowRelative permits scheme-less
// targets like "docs/intro.md".
func NewLinks(allowRelative bool) *Links {
	return &Links{allowRelative: allowRelative, links: []Link{}}
}

// Name implements extract.Collector.
func (c *Links) Name() string { return "links" }

// ShouldProcess selects inline runs that carry child tokens.
func (c *Links) ShouldProcess(_ int, tok *token.Token, _ *extract.Warehouse) bool {
	return tok.Type == "inline" && len(tok.Children) > 0
}

// OnToken walks the flat inline child list, tracking open links with an
// explicit stack so malformed producers that nest or never close
// link_open cannot recurse or lose records.
func (c *Links) OnToken(_ context.Context, i int, tok *token.Token, w *extract.Warehouse) error {
	line := lineOf(tok)
	insideHeading := false
	if p := w.Parent(i); p >= 0 {
		if parent := w.Token(p); parent != nil && parent.Type == "heading_open" {
			insideHeading = true
		}
	}

	type openLink struct {
		href string
		text strings.Builder
	}
	var open []*openLink

	emit := func(l *openLink) {
		c.links = append(c.links, c.record(l.href, l.text.String(), line, insideHeading))
	}

	for ci := range tok.Children {
		child := &tok.Children[ci]
		switch child.Type {
		case "link_open":
			href, _ := child.Attr("href")
			open = append(open, &openLink{href: href})
		case "link_close":
			if n := len(open); n > 0 {
				emit(open[n-1])
				open = open[:n-1]
			}
		case "text", "code_inline":
			if n := len(open); n > 0 {
				open[n-1].text.WriteString(child.Content)
			}
		case "softbreak", "hardbreak":
			if n := len(open); n > 0 {
				open[n-1].text.WriteByte('\n')
			}
		default:
			// Nested structures such as images contribute their plain
			// text to the enclosing link.
			if n := len(open); n > 0 && len(child.Children) > 0 {
				open[n-1].text.WriteString(child.Text())
			}
		}
	}

	// A link_open the producer never closed still becomes a record; its
	// target deserves validation exactly because the structure is broken.
	for n := len(open); n > 0; n-- {
		emit(open[n-1])
	}
	return nil
}

func (c *Links) record(href, text string, line int, insideHeading bool) Link {
	var opts []urlcheck.Option
	if c.allowRelative {
		opts = append(opts, urlcheck.WithRelativeAllowed())
	}
	res := urlcheck.Validate(href, opts...)
	return Link{
		Line:                   line,
		Text:                   text,
		Href:                   href,
		Normalized:             res.Normalized,
		Valid:                  res.Valid,
		Reason:                 res.Reason,
		Warnings:               res.Warnings,
		ContainsTemplateSyntax: textscan.HasTemplateSyntax(text),
		InsideHeading:          insideHeading,
	}
}

// Finalize implements extract.Collector.
func (c *Links) Finalize(_ *extract.Warehouse) (any, error) {
	return c.links, nil
}
