package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semharvest/token"
)

func canonize(t *testing.T, recs []*token.Record) []token.Token {
	t.Helper()
	toks, err := token.Canonicalize(token.Rawize(recs), 0)
	require.NoError(t, err)
	return toks
}

func openRec(typ, tag string) *token.Record {
	return &token.Record{Type: typ, Tag: tag, Nesting: 1, Block: true}
}

func closeRec(typ, tag string) *token.Record {
	return &token.Record{Type: typ, Tag: tag, Nesting: -1, Block: true}
}

func TestBuildIndices_ParentIndex(t *testing.T) {
	toks := canonize(t, []*token.Record{
		openRec("blockquote_open", "blockquote"), // 0
		openRec("paragraph_open", "p"),           // 1
		{Type: "inline"},                         // 2
		closeRec("paragraph_close", "p"),         // 3
		closeRec("blockquote_close", "blockquote"), // 4
		openRec("paragraph_open", "p"),             // 5
		{Type: "inline"},                           // 6
		closeRec("paragraph_close", "p"),           // 7
	})

	x, err := buildIndices(toks, 0)
	require.NoError(t, err)

	want := []int{-1, 0, 1, 0, -1, -1, 5, -1}
	for i, p := range want {
		assert.Equal(t, p, x.Parent(i), "parent of token %d", i)
	}
	assert.Equal(t, -1, x.Parent(-1))
	assert.Equal(t, -1, x.Parent(len(toks)))
}

func TestBuildIndices_NestingTooDeep(t *testing.T) {
	recs := make([]*token.Record, 6)
	for i := range recs {
		recs[i] = openRec("blockquote_open", "blockquote")
	}

	_, err := buildIndices(canonize(t, recs), 4)
	var tooDeep *NestingTooDeepError
	require.ErrorAs(t, err, &tooDeep)
	assert.Equal(t, 4, tooDeep.TokenIndex, "must fail at the first violating push")
	assert.Equal(t, 5, tooDeep.Depth)
	assert.Equal(t, 4, tooDeep.MaxNesting)
	assert.True(t, IsNestingTooDeep(err))
}

func TestBuildIndices_NestingCheckDisabled(t *testing.T) {
	recs := make([]*token.Record, 500)
	for i := range recs {
		recs[i] = openRec("blockquote_open", "blockquote")
	}
	_, err := buildIndices(canonize(t, recs), -1)
	assert.NoError(t, err)
}

func TestBuildIndices_UnbalancedClosesTolerated(t *testing.T) {
	toks := canonize(t, []*token.Record{
		closeRec("paragraph_close", "p"),
		closeRec("blockquote_close", "blockquote"),
		{Type: "inline"},
	})
	x, err := buildIndices(toks, 4)
	require.NoError(t, err)
	for i := range toks {
		assert.Equal(t, -1, x.Parent(i))
	}
}

func TestBuildIndices_SectionIndex(t *testing.T) {
	heading := func(tag string, start, end int) *token.Record {
		r := openRec("heading_open", tag)
		r.Map = []int{start, end}
		return r
	}
	para := func(start, end int) *token.Record {
		r := openRec("paragraph_open", "p")
		r.Map = []int{start, end}
		return r
	}

	toks := canonize(t, []*token.Record{
		heading("h1", 0, 1),               // 0
		{Type: "inline", Content: "Intro"}, // 1
		closeRec("heading_close", "h1"),   // 2
		para(2, 3),                        // 3
		{Type: "inline"},                  // 4
		closeRec("paragraph_close", "p"),  // 5
		heading("h2", 4, 5),               // 6
		{Type: "inline"},                  // 7
		closeRec("heading_close", "h2"),   // 8
		para(6, 7),                        // 9
		{Type: "inline"},                  // 10
		closeRec("paragraph_close", "p"),  // 11
		heading("h1", 8, 9),               // 12
		{Type: "inline"},                  // 13
		closeRec("heading_close", "h1"),   // 14
	})

	x, err := buildIndices(toks, 0)
	require.NoError(t, err)

	sections := x.Sections()
	require.Len(t, sections, 3)

	assert.Equal(t, Section{HeadingIndex: 0, Level: 1, Start: 0, End: 12, StartLine: 0, EndLine: 7}, sections[0])
	assert.Equal(t, Section{HeadingIndex: 6, Level: 2, Start: 6, End: 12, StartLine: 4, EndLine: 7}, sections[1])
	assert.Equal(t, Section{HeadingIndex: 12, Level: 1, Start: 12, End: 15, StartLine: 8, EndLine: 9}, sections[2])

	// A token under the h2 heading resolves to the h2 section, the
	// innermost enclosing one.
	s, ok := x.SectionAt(10)
	require.True(t, ok)
	assert.Equal(t, 6, s.HeadingIndex)

	// A token after the h1 heading but before the h2 belongs to the h1
	// section.
	s, ok = x.SectionAt(4)
	require.True(t, ok)
	assert.Equal(t, 0, s.HeadingIndex)

	// The heading token itself starts its own section.
	s, ok = x.SectionAt(6)
	require.True(t, ok)
	assert.Equal(t, 6, s.HeadingIndex)

	_, ok = x.SectionAt(-1)
	assert.False(t, ok)
}

func TestBuildIndices_NoHeadings(t *testing.T) {
	toks := canonize(t, []*token.Record{
		openRec("paragraph_open", "p"),
		{Type: "inline"},
		closeRec("paragraph_close", "p"),
	})
	x, err := buildIndices(toks, 0)
	require.NoError(t, err)
	assert.Empty(t, x.Sections())
	_, ok := x.SectionAt(1)
	assert.False(t, ok)
}

func TestBuildIndices_SectionOpsLinearInHeadings(t *testing.T) {
	// 5000 paragraph tokens interleaved with 8 same-level headings: the
	// section stack must see one push per heading and one pop per heading,
	// independent of the token count.
	var recs []*token.Record
	for h := 0; h < 8; h++ {
		recs = append(recs,
			openRec("heading_open", "h2"),
			&token.Record{Type: "inline"},
			closeRec("heading_close", "h2"),
		)
		for p := 0; p < 625; p++ {
			recs = append(recs, &token.Record{Type: "inline"})
		}
	}

	x, err := buildIndices(canonize(t, recs), 0)
	require.NoError(t, err)
	require.Len(t, x.Sections(), 8)
	assert.LessOrEqual(t, x.sectionOps, 16, "section stack work must scale with headings, not tokens")
}

func TestBuildIndices_MalformedHeadingTagsIgnored(t *testing.T) {
	toks := canonize(t, []*token.Record{
		openRec("heading_open", "h7"),
		openRec("heading_open", "script"),
		openRec("heading_open", ""),
		openRec("heading_open", "hx"),
		openRec("heading_open", "h3"),
	})
	x, err := buildIndices(toks, 0)
	require.NoError(t, err)
	require.Len(t, x.Sections(), 1)
	assert.Equal(t, 4, x.Sections()[0].HeadingIndex)
	assert.Equal(t, 3, x.Sections()[0].Level)
}
