// Package token defines the canonical markdown token model and the
// defensive boundary between untrusted token producers and the extraction
// engine. Raw tokens come from an opaque producer and are treated as
// adversarial; Canonicalize is the only place their accessors are invoked.
package token

import (
	"maps"
	"strings"
)

// Raw is the producer-side view of a single markdown token. Implementations
// may come from third-party tokenizers or plugins and are not trusted: any
// accessor may panic or return malformed data. The engine never touches a
// Raw after canonicalization.
type Raw interface {
	// Type is the token type, e.g. "heading_open", "inline", "fence".
	Type() string

	// Tag is the corresponding element tag, e.g. "h1", "p", "code".
	Tag() string

	// Nesting is 1 for opening tokens, -1 for closing tokens, 0 otherwise.
	Nesting() int

	// Map is the [startLine, endLine) source span, or nil when unknown.
	Map() []int

	// Level is the container nesting depth reported by the producer.
	Level() int

	// Content is the token payload text.
	Content() string

	// Markup is the delimiter text, e.g. "###", "```", "**".
	Markup() string

	// Info is the fence info string, e.g. "go" for ```go blocks.
	Info() string

	// Meta is producer-defined auxiliary data.
	Meta() map[string]any

	// Block reports whether this is a block-level token.
	Block() bool

	// Hidden reports whether renderers should skip this token.
	Hidden() bool

	// Children are the inline child tokens (inline tokens only).
	Children() []Raw

	// Attrs lists {name, value} attribute pairs, e.g. {"href", "..."}.
	Attrs() [][2]string
}

// Attr is a single canonical token attribute.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LineSpan is a normalized [Start, End) source line range. Valid is false
// when the producer supplied no span or a malformed one.
type LineSpan struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Valid bool `json:"valid"`
}

// Token is an immutable canonical snapshot of a raw token. Field access on
// a Token never executes producer code; all extraction happened during
// canonicalization. Tokens are owned by the warehouse that built them and
// must be treated as read-only by collectors.
type Token struct {
	Type     string         `json:"type"`
	Tag      string         `json:"tag,omitempty"`
	Nesting  int            `json:"nesting"`
	Map      LineSpan       `json:"map,omitempty"`
	Level    int            `json:"level"`
	Content  string         `json:"content,omitempty"`
	Markup   string         `json:"markup,omitempty"`
	Info     string         `json:"info,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Block    bool           `json:"block"`
	Hidden   bool           `json:"hidden,omitempty"`
	Children []Token        `json:"children,omitempty"`
	Attrs    []Attr         `json:"attrs,omitempty"`
}

// Opens reports whether the token opens a container.
func (t *Token) Opens() bool { return t.Nesting == 1 }

// Closes reports whether the token closes a container.
func (t *Token) Closes() bool { return t.Nesting == -1 }

// Attr returns the value of the named attribute and whether it was present.
func (t *Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the concatenated plain text of the token and its
// descendants: Content of text, code_inline and softbreak-style children.
// Traversal is iterative so pathological child depth cannot exhaust the
// call stack.
func (t *Token) Text() string {
	var b strings.Builder
	stack := []*Token{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch cur.Type {
		case "text", "code_inline":
			b.WriteString(cur.Content)
		case "softbreak", "hardbreak":
			b.WriteByte('\n')
		}
		// Push children in reverse so they pop in document order.
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, &cur.Children[i])
		}
	}
	return b.String()
}

// AsRecord converts the canonical token back into a plain Record, the
// honest Raw implementation. Re-canonicalizing the result loses no fields.
func (t *Token) AsRecord() *Record {
	root := &Record{}
	type frame struct {
		tok *Token
		rec *Record
	}
	stack := []frame{{tok: t, rec: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		f.rec.Type = f.tok.Type
		f.rec.Tag = f.tok.Tag
		f.rec.Nesting = f.tok.Nesting
		if f.tok.Map.Valid {
			f.rec.Map = []int{f.tok.Map.Start, f.tok.Map.End}
		}
		f.rec.Level = f.tok.Level
		f.rec.Content = f.tok.Content
		f.rec.Markup = f.tok.Markup
		f.rec.Info = f.tok.Info
		f.rec.Meta = maps.Clone(f.tok.Meta)
		f.rec.Block = f.tok.Block
		f.rec.Hidden = f.tok.Hidden
		for _, a := range f.tok.Attrs {
			f.rec.Attrs = append(f.rec.Attrs, [2]string{a.Name, a.Value})
		}
		if n := len(f.tok.Children); n > 0 {
			f.rec.Children = make([]*Record, n)
			for i := range f.tok.Children {
				f.rec.Children[i] = &Record{}
				stack = append(stack, frame{tok: &f.tok.Children[i], rec: f.rec.Children[i]})
			}
		}
	}
	return root
}

// Record is a plain raw-token value for trusted in-process producers such
// as the goldmark adapter and tests. Its Raw view simply reads the fields.
type Record struct {
	Type     string
	Tag      string
	Nesting  int
	Map      []int
	Level    int
	Content  string
	Markup   string
	Info     string
	Meta     map[string]any
	Block    bool
	Hidden   bool
	Children []*Record
	Attrs    [][2]string
}

// Raw returns the producer-interface view of the record.
func (r *Record) Raw() Raw { return recordRaw{r: r} }

// Rawize converts a record list into the producer interface form accepted
// by the engine.
func Rawize(recs []*Record) []Raw {
	raws := make([]Raw, len(recs))
	for i, r := range recs {
		raws[i] = r.Raw()
	}
	return raws
}

// recordRaw adapts a Record to the Raw interface.
type recordRaw struct {
	r *Record
}

func (a recordRaw) Type() string         { return a.r.Type }
func (a recordRaw) Tag() string          { return a.r.Tag }
func (a recordRaw) Nesting() int         { return a.r.Nesting }
func (a recordRaw) Map() []int           { return a.r.Map }
func (a recordRaw) Level() int           { return a.r.Level }
func (a recordRaw) Content() string      { return a.r.Content }
func (a recordRaw) Markup() string       { return a.r.Markup }
func (a recordRaw) Info() string         { return a.r.Info }
func (a recordRaw) Meta() map[string]any { return a.r.Meta }
func (a recordRaw) Block() bool          { return a.r.Block }
func (a recordRaw) Hidden() bool         { return a.r.Hidden }

func (a recordRaw) Children() []Raw {
	if len(a.r.Children) == 0 {
		return nil
	}
	return Rawize(a.r.Children)
}

func (a recordRaw) Attrs() [][2]string { return a.r.Attrs }
