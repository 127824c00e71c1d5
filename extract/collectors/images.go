package collectors

import (
	"context"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/token"
	"github.com/c360studio/semharvest/urlcheck"
)

// Image is one extracted image reference with its validation verdict.
type Image struct {
	// Line is the source line of the surrounding inline run, or -1.
	Line int `json:"line"`
	// Alt is the image's alternative text.
	Alt string `json:"alt"`
	// Src is the raw target as written in the document.
	Src string `json:"src"`
	// Normalized is the validated, reassembled target. Empty when invalid.
	Normalized string `json:"normalized,omitempty"`
	// Valid reports whether Src cleared URL validation.
	Valid bool `json:"valid"`
	// Reason names the failed validation check. Empty when valid.
	Reason string `json:"reason,omitempty"`
	// Warnings carries validator notes such as IDNA host conversion.
	Warnings []string `json:"warnings,omitempty"`
	// Title is the optional image title attribute.
	Title string `json:"title,omitempty"`
}

// Images collects image tokens wherever they appear in inline children,
// nested structures included.
type Images struct {
	allowRelative bool
	images        []Image
}

// NewImages returns an image collector. allowRelative permits scheme-less
// targets.
func NewImages(allowRelative bool) *Images {
	return &Images{allowRelative: allowRelative, images: []Image{}}
}

// Name implements extract.Collector.
func (c *Images) Name() string { return "images" }

// ShouldProcess selects inline runs that carry child tokens.
func (c *Images) ShouldProcess(_ int, tok *token.Token, _ *extract.Warehouse) bool {
	return tok.Type == "inline" && len(tok.Children) > 0
}

// OnToken finds image tokens at any child depth using an explicit stack.
func (c *Images) OnToken(_ context.Context, _ int, tok *token.Token, _ *extract.Warehouse) error {
	line := lineOf(tok)

	stack := make([]*token.Token, 0, len(tok.Children))
	for ci := len(tok.Children) - 1; ci >= 0; ci-- {
		stack = append(stack, &tok.Children[ci])
	}
	for len(stack) > 0 {
		child := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if child.Type == "image" {
			c.images = append(c.images, c.record(child, line))
			continue // alt tokens inside an image are not more images
		}
		for gi := len(child.Children) - 1; gi >= 0; gi-- {
			stack = append(stack, &child.Children[gi])
		}
	}
	return nil
}

func (c *Images) record(tok *token.Token, line int) Image {
	src, _ := tok.Attr("src")
	title, _ := tok.Attr("title")

	var opts []urlcheck.Option
	if c.allowRelative {
		opts = append(opts, urlcheck.WithRelativeAllowed())
	}
	res := urlcheck.Validate(src, opts...)

	return Image{
		Line:       line,
		Alt:        tok.Text(),
		Src:        src,
		Normalized: res.Normalized,
		Valid:      res.Valid,
		Reason:     res.Reason,
		Warnings:   res.Warnings,
		Title:      title,
	}
}

// Finalize implements extract.Collector.
func (c *Images) Finalize(_ *extract.Warehouse) (any, error) {
	return c.images, nil
}
