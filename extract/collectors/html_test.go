package collectors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semharvest/token"
)

// scriptDocument builds a document carrying hostile markup as both an
// html_block and an html_inline child. The marker strings survive JSON
// encoding unescaped, so leak checks on the marshaled report are exact.
func scriptDocument() []*token.Record {
	recs := []*token.Record{
		{Type: "html_block", Content: "<script>steal('marker-block-4417')</script>\n", Block: true, Map: []int{0, 1}},
	}
	recs = append(recs, paragraphWith(2,
		textChild("before "),
		&token.Record{Type: "html_inline", Content: "<script>steal('marker-inline-4418')</script>"},
		textChild(" after"),
	)...)
	return recs
}

func TestHTML_DisabledKeepsMarkupOutOfReport(t *testing.T) {
	rep := runDispatch(t, scriptDocument(), Defaults(Config{})...)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "marker-block-4417")
	assert.NotContains(t, string(data), "marker-inline-4418")

	assert.Empty(t, HTMLFrom(rep))
	assert.Contains(t, rep.Results, "html", "collector still reports an empty result set")
}

func TestHTML_EnabledCollectsFlaggedFragments(t *testing.T) {
	rep := runDispatch(t, scriptDocument(), NewHTML(HTMLConfig{Enabled: true}))

	fragments := HTMLFrom(rep)
	require.Len(t, fragments, 2)

	assert.Equal(t, "block", fragments[0].Kind)
	assert.Equal(t, "<script>steal('marker-block-4417')</script>\n", fragments[0].Content)
	assert.Equal(t, 0, fragments[0].Line)
	assert.True(t, fragments[0].NeedsSanitization)

	assert.Equal(t, "inline", fragments[1].Kind)
	assert.Equal(t, "<script>steal('marker-inline-4418')</script>", fragments[1].Content)
	assert.Equal(t, 2, fragments[1].Line)
	assert.True(t, fragments[1].NeedsSanitization, "raw fragments stay flagged until a sanitizer actually runs")
}

func TestHTML_SanitizeStripsAndClearsFlag(t *testing.T) {
	recs := []*token.Record{
		{Type: "html_block", Content: "<script>steal()</script>", Block: true, Map: []int{0, 1}},
		{Type: "html_block", Content: `<p onclick="steal()">hello <em>world</em></p>`, Block: true, Map: []int{1, 2}},
	}

	rep := runDispatch(t, recs, NewHTML(HTMLConfig{Enabled: true, Sanitize: true}))

	fragments := HTMLFrom(rep)
	require.Len(t, fragments, 2)

	assert.Empty(t, fragments[0].Content, "script elements are removed wholesale")
	assert.False(t, fragments[0].NeedsSanitization)

	assert.Equal(t, "<p>hello <em>world</em></p>", fragments[1].Content)
	assert.False(t, fragments[1].NeedsSanitization)
}

func TestHTML_DisabledProcessesNothing(t *testing.T) {
	c := NewHTML(HTMLConfig{})
	tok := &token.Token{Type: "html_block", Content: "<div/>"}
	assert.False(t, c.ShouldProcess(0, tok, nil))
}
