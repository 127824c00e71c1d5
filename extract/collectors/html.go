package collectors

import (
	"context"

	"github.com/microcosm-cc/bluemonday"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/token"
)

// HTMLConfig controls the opt-in HTML fragment collector.
type HTMLConfig struct {
	// Enabled turns HTML collection on. Off by default: HTML-bearing
	// tokens are then skipped entirely and no markup, script content
	// included, can reach any result.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Sanitize runs every collected fragment through the allowlist
	// sanitizer at finalize. Only sanitized fragments have their
	// NeedsSanitization flag cleared.
	Sanitize bool `json:"sanitize" yaml:"sanitize"`
}

// HTMLFragment is one piece of raw HTML lifted from the document.
type HTMLFragment struct {
	// Line is the fragment's source line, or -1.
	Line int `json:"line"`
	// Kind is "block" for html_block tokens, "inline" for html_inline.
	Kind string `json:"kind"`
	// Content is the markup, sanitized only when NeedsSanitization is
	// false.
	Content string `json:"content"`
	// NeedsSanitization is true until the allowlist sanitizer has
	// actually run on Content. It is never cleared any other way.
	NeedsSanitization bool `json:"needs_sanitization"`
}

// HTML collects html_block and html_inline fragments. Disabled it
// processes nothing; enabled it marks every fragment as needing
// sanitization and, when configured, sanitizes at finalize with a UGC
// allowlist policy.
type HTML struct {
	cfg       HTMLConfig
	policy    *bluemonday.Policy
	fragments []HTMLFragment
}

// NewHTML returns an HTML collector for the given config.
func NewHTML(cfg HTMLConfig) *HTML {
	c := &HTML{cfg: cfg, fragments: []HTMLFragment{}}
	if cfg.Sanitize {
		c.policy = bluemonday.UGCPolicy()
	}
	return c
}

// Name implements extract.Collector.
func (c *HTML) Name() string { return "html" }

// ShouldProcess declines everything while disabled; enabled it selects
// html blocks and the inline runs whose children may carry html_inline.
func (c *HTML) ShouldProcess(_ int, tok *token.Token, _ *extract.Warehouse) bool {
	if !c.cfg.Enabled {
		return false
	}
	return tok.Type == "html_block" || (tok.Type == "inline" && len(tok.Children) > 0)
}

// OnToken implements extract.Collector.
func (c *HTML) OnToken(_ context.Context, _ int, tok *token.Token, _ *extract.Warehouse) error {
	if tok.Type == "html_block" {
		c.fragments = append(c.fragments, HTMLFragment{
			Line:              lineOf(tok),
			Kind:              "block",
			Content:           tok.Content,
			NeedsSanitization: true,
		})
		return nil
	}

	line := lineOf(tok)
	for ci := range tok.Children {
		child := &tok.Children[ci]
		if child.Type != "html_inline" {
			continue
		}
		c.fragments = append(c.fragments, HTMLFragment{
			Line:              line,
			Kind:              "inline",
			Content:           child.Content,
			NeedsSanitization: true,
		})
	}
	return nil
}

// Finalize sanitizes collected fragments when configured. Without the
// sanitize opt-in the fragments keep NeedsSanitization=true and their raw
// content; claiming a sanitization that did not run would be worse than
// handing back flagged raw markup.
func (c *HTML) Finalize(_ *extract.Warehouse) (any, error) {
	if c.policy != nil {
		for i := range c.fragments {
			c.fragments[i].Content = c.policy.Sanitize(c.fragments[i].Content)
			c.fragments[i].NeedsSanitization = false
		}
	}
	return c.fragments, nil
}
