package collectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/token"
)

func runDispatch(t *testing.T, recs []*token.Record, cs ...extract.Collector) *extract.Report {
	t.Helper()
	w, err := extract.New(token.Rawize(recs), 1024, extract.Limits{CollectorTimeout: -1})
	require.NoError(t, err)
	require.NoError(t, w.Register(cs...))
	require.NoError(t, w.DispatchAll(context.Background()))
	return w.Report()
}

func textChild(s string) *token.Record {
	return &token.Record{Type: "text", Content: s}
}

func linkChildren(href, text string) []*token.Record {
	return []*token.Record{
		{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", href}}},
		textChild(text),
		{Type: "link_close", Tag: "a", Nesting: -1},
	}
}

func paragraphWith(line int, children ...*token.Record) []*token.Record {
	return []*token.Record{
		{Type: "paragraph_open", Tag: "p", Nesting: 1, Block: true, Map: []int{line, line + 1}},
		{Type: "inline", Map: []int{line, line + 1}, Children: children},
		{Type: "paragraph_close", Tag: "p", Nesting: -1, Block: true},
	}
}

func TestLinks_Collect_ValidationVerdicts(t *testing.T) {
	var recs []*token.Record
	recs = append(recs, paragraphWith(0, linkChildren("https://example.com/docs", "docs")...)...)
	recs = append(recs, paragraphWith(2, linkChildren("javascript:alert(1)", "click me")...)...)
	recs = append(recs, paragraphWith(4, linkChildren("guide/setup.md", "setup")...)...)
	recs = append(recs, paragraphWith(6, linkChildren("mailto:team@example.com", "mail us")...)...)

	rep := runDispatch(t, recs, NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 4)

	assert.True(t, links[0].Valid)
	assert.Equal(t, "https://example.com/docs", links[0].Normalized)
	assert.Equal(t, "docs", links[0].Text)
	assert.Equal(t, 0, links[0].Line)

	// The hostile target stays in the output, flagged, so consumers can
	// see what was rejected.
	assert.False(t, links[1].Valid)
	assert.Equal(t, "Disallowed scheme: javascript", links[1].Reason)
	assert.Equal(t, "javascript:alert(1)", links[1].Href)
	assert.Empty(t, links[1].Normalized)
	assert.Equal(t, 2, links[1].Line)

	assert.False(t, links[2].Valid)
	assert.Equal(t, "Relative URL not permitted here", links[2].Reason)

	assert.True(t, links[3].Valid)
	assert.Equal(t, "mailto:team@example.com", links[3].Normalized)
}

func TestLinks_Collect_RelativeAllowed(t *testing.T) {
	rep := runDispatch(t, paragraphWith(0, linkChildren("guide/setup.md", "setup")...), NewLinks(true))
	links := LinksFrom(rep)
	require.Len(t, links, 1)
	assert.True(t, links[0].Valid)
	assert.Equal(t, "guide/setup.md", links[0].Normalized)
}

func TestLinks_Collect_TemplateSyntaxInText(t *testing.T) {
	rep := runDispatch(t, paragraphWith(0, linkChildren("https://example.com", "{{user_input}}")...), NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 1)
	assert.True(t, links[0].ContainsTemplateSyntax)
	assert.True(t, links[0].Valid, "the target itself is fine; only the text is flagged")
}

func TestLinks_Collect_InsideHeading(t *testing.T) {
	recs := []*token.Record{
		{Type: "heading_open", Tag: "h2", Nesting: 1, Block: true, Map: []int{0, 1}},
		{Type: "inline", Map: []int{0, 1}, Children: linkChildren("https://example.com", "api")},
		{Type: "heading_close", Tag: "h2", Nesting: -1, Block: true},
	}
	recs = append(recs, paragraphWith(2, linkChildren("https://example.com/2", "body")...)...)

	rep := runDispatch(t, recs, NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 2)
	assert.True(t, links[0].InsideHeading)
	assert.False(t, links[1].InsideHeading)
}

func TestLinks_Collect_UnclosedLinkStillRecorded(t *testing.T) {
	children := []*token.Record{
		{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", "https://example.com"}}},
		textChild("dangling"),
	}
	rep := runDispatch(t, paragraphWith(0, children...), NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 1)
	assert.Equal(t, "dangling", links[0].Text)
	assert.True(t, links[0].Valid)
}

func TestLinks_Collect_StrayCloseIgnored(t *testing.T) {
	children := []*token.Record{
		{Type: "link_close", Tag: "a", Nesting: -1},
		textChild("no link here"),
	}
	rep := runDispatch(t, paragraphWith(0, children...), NewLinks(false))
	assert.Empty(t, LinksFrom(rep))
}

func TestLinks_Collect_IDNAWarningCarried(t *testing.T) {
	rep := runDispatch(t, paragraphWith(0, linkChildren("https://bücher.de/k", "katalog")...), NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 1)
	assert.True(t, links[0].Valid)
	assert.Equal(t, "https://xn--bcher-kva.de/k", links[0].Normalized)
	require.Len(t, links[0].Warnings, 1)
}

func TestLinks_Collect_NestedImageContributesText(t *testing.T) {
	children := []*token.Record{
		{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", "https://example.com"}}},
		{Type: "image", Tag: "img", Attrs: [][2]string{{"src", "https://example.com/x.png"}},
			Children: []*token.Record{textChild("chart")}},
		{Type: "link_close", Tag: "a", Nesting: -1},
	}
	rep := runDispatch(t, paragraphWith(0, children...), NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 1)
	assert.Equal(t, "chart", links[0].Text)
}

func TestLinks_Collect_AutolinkAndCodeText(t *testing.T) {
	children := []*token.Record{
		{Type: "link_open", Tag: "a", Nesting: 1, Markup: "autolink",
			Attrs: [][2]string{{"href", "https://example.com"}}},
		textChild("https://example.com"),
		{Type: "link_close", Tag: "a", Nesting: -1},
		{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", "https://example.com/api"}}},
		{Type: "code_inline", Content: "GET /v1"},
		{Type: "link_close", Tag: "a", Nesting: -1},
	}
	rep := runDispatch(t, paragraphWith(0, children...), NewLinks(false))
	links := LinksFrom(rep)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com", links[0].Text)
	assert.Equal(t, "GET /v1", links[1].Text)
}
