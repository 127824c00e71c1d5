package collectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/token"
)

func imageChild(src, alt, title string) *token.Record {
	attrs := [][2]string{{"src", src}}
	if title != "" {
		attrs = append(attrs, [2]string{"title", title})
	}
	return &token.Record{
		Type: "image", Tag: "img", Attrs: attrs,
		Children: []*token.Record{textChild(alt)},
	}
}

func TestImages_Collect(t *testing.T) {
	var recs []*token.Record
	recs = append(recs, paragraphWith(0, imageChild("https://example.com/a.png", "diagram", "Overview"))...)
	recs = append(recs, paragraphWith(2, imageChild("javascript:alert(1)", "evil", ""))...)

	rep := runDispatch(t, recs, NewImages(false))
	images := ImagesFrom(rep)
	require.Len(t, images, 2)

	assert.Equal(t, "diagram", images[0].Alt)
	assert.Equal(t, "Overview", images[0].Title)
	assert.True(t, images[0].Valid)
	assert.Equal(t, "https://example.com/a.png", images[0].Normalized)
	assert.Equal(t, 0, images[0].Line)

	assert.False(t, images[1].Valid)
	assert.Equal(t, "Disallowed scheme: javascript", images[1].Reason)
	assert.Equal(t, 2, images[1].Line)
}

func TestImages_Collect_NestedInsideLink(t *testing.T) {
	children := []*token.Record{
		{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", "https://example.com"}}},
		imageChild("https://example.com/badge.svg", "build status", ""),
		{Type: "link_close", Tag: "a", Nesting: -1},
	}
	rep := runDispatch(t, paragraphWith(0, children...), NewImages(false))
	images := ImagesFrom(rep)
	require.Len(t, images, 1)
	assert.Equal(t, "build status", images[0].Alt)
}

func TestImages_Collect_RelativeAllowed(t *testing.T) {
	rep := runDispatch(t, paragraphWith(0, imageChild("assets/logo.png", "logo", "")), NewImages(true))
	images := ImagesFrom(rep)
	require.Len(t, images, 1)
	assert.True(t, images[0].Valid)
}

func TestDefaults_CanonicalOrder(t *testing.T) {
	cs := Defaults(Config{})
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{"links", "images", "headings", "html", "tables"}, names)
}

func TestReportAccessors_MissingOrNil(t *testing.T) {
	assert.Nil(t, LinksFrom(nil))
	assert.Nil(t, ImagesFrom(nil))
	assert.Nil(t, HeadingsFrom(nil))
	assert.Nil(t, HTMLFrom(nil))
	assert.Nil(t, TablesFrom(nil))

	empty := &extract.Report{Results: map[string]any{}}
	assert.Nil(t, LinksFrom(empty))
	assert.Nil(t, TablesFrom(empty))
}

func TestDefaults_FullDocumentRoundTrip(t *testing.T) {
	var recs []*token.Record
	recs = append(recs,
		&token.Record{Type: "heading_open", Tag: "h1", Nesting: 1, Block: true, Map: []int{0, 1}},
		&token.Record{Type: "inline", Map: []int{0, 1}, Children: []*token.Record{textChild("Guide")}},
		&token.Record{Type: "heading_close", Tag: "h1", Nesting: -1, Block: true},
	)
	recs = append(recs, paragraphWith(2, linkChildren("https://example.com", "home")...)...)
	recs = append(recs, paragraphWith(4, imageChild("https://example.com/a.png", "a", ""))...)

	w, err := extract.New(token.Rawize(recs), 512, extract.Limits{CollectorTimeout: -1})
	require.NoError(t, err)
	require.NoError(t, w.Register(Defaults(Config{})...))
	require.NoError(t, w.DispatchAll(context.Background()))
	rep := w.Report()

	require.Empty(t, rep.Issues)
	assert.Len(t, LinksFrom(rep), 1)
	assert.Len(t, ImagesFrom(rep), 1)
	assert.Len(t, HeadingsFrom(rep), 1)
	assert.Empty(t, HTMLFrom(rep), "disabled collector finalizes to an empty list")
	assert.Empty(t, TablesFrom(rep))

	// Disabled is not absent: the html key exists with zero fragments.
	_, present := rep.Results["html"]
	assert.True(t, present)
}
