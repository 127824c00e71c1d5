package tokenizer

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/c360studio/semharvest/token"
)

// inlineToken emits the single "inline" token for a block, with its
// flattened children attached.
func (f *flattener) inlineToken(parent ast.Node, span []int) {
	f.emit(&token.Record{
		Type:     "inline",
		Block:    true,
		Map:      span,
		Content:  strings.TrimRight(f.linesValue(parent), "\n"),
		Children: f.flattenInline(parent),
	})
}

// inlineFrame drives the explicit inline walk. close is emitted on pop;
// popSink restores the previous output target after an image's alt
// children are done.
type inlineFrame struct {
	n       ast.Node
	close   *token.Record
	popSink bool
}

// flattenInline turns a block's inline subtree into a flat child list.
// Output goes through a sink stack so image alt content lands in the
// image record's own children rather than the surrounding run.
func (f *flattener) flattenInline(parent ast.Node) []*token.Record {
	out := []*token.Record{}
	sinks := []*[]*token.Record{&out}
	emit := func(r *token.Record) {
		s := sinks[len(sinks)-1]
		*s = append(*s, r)
	}

	var stack []inlineFrame
	pushChildren := func(n ast.Node) {
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, inlineFrame{n: c})
		}
	}
	pushChildren(parent)

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.close != nil {
			emit(fr.close)
			continue
		}
		if fr.popSink {
			sinks = sinks[:len(sinks)-1]
			continue
		}

		switch n := fr.n.(type) {
		case *ast.Text:
			if value := n.Segment.Value(f.src); len(value) > 0 {
				emit(&token.Record{Type: "text", Content: string(value)})
			}
			switch {
			case n.HardLineBreak():
				emit(&token.Record{Type: "hardbreak", Tag: "br"})
			case n.SoftLineBreak():
				emit(&token.Record{Type: "softbreak", Tag: "br"})
			}
		case *ast.String:
			emit(&token.Record{Type: "text", Content: string(n.Value)})
		case *ast.CodeSpan:
			emit(&token.Record{Type: "code_inline", Tag: "code", Markup: "`", Content: f.codeSpanText(n)})
		case *ast.Emphasis:
			typ, tag, markup := "em", "em", "*"
			if n.Level == 2 {
				typ, tag, markup = "strong", "strong", "**"
			}
			emit(&token.Record{Type: typ + "_open", Tag: tag, Nesting: 1, Markup: markup})
			stack = append(stack, inlineFrame{close: &token.Record{Type: typ + "_close", Tag: tag, Nesting: -1, Markup: markup}})
			pushChildren(n)
		case *east.Strikethrough:
			emit(&token.Record{Type: "s_open", Tag: "s", Nesting: 1, Markup: "~~"})
			stack = append(stack, inlineFrame{close: &token.Record{Type: "s_close", Tag: "s", Nesting: -1, Markup: "~~"}})
			pushChildren(n)
		case *ast.Link:
			open := &token.Record{Type: "link_open", Tag: "a", Nesting: 1, Attrs: [][2]string{{"href", string(n.Destination)}}}
			if len(n.Title) > 0 {
				open.Attrs = append(open.Attrs, [2]string{"title", string(n.Title)})
			}
			emit(open)
			stack = append(stack, inlineFrame{close: &token.Record{Type: "link_close", Tag: "a", Nesting: -1}})
			pushChildren(n)
		case *ast.AutoLink:
			f.autoLink(n, emit)
		case *ast.Image:
			rec := &token.Record{
				Type: "image", Tag: "img",
				Attrs:    [][2]string{{"src", string(n.Destination)}, {"alt", ""}},
				Children: []*token.Record{},
			}
			if len(n.Title) > 0 {
				rec.Attrs = append(rec.Attrs, [2]string{"title", string(n.Title)})
			}
			emit(rec)
			stack = append(stack, inlineFrame{popSink: true})
			sinks = append(sinks, &rec.Children)
			pushChildren(n)
		case *ast.RawHTML:
			emit(&token.Record{Type: "html_inline", Content: f.rawHTMLText(n)})
		default:
			// Unknown inline containers flatten transparently; unknown
			// leaves (task checkboxes and the like) contribute nothing.
			pushChildren(fr.n)
		}
	}
	return out
}

// autoLink emits the three-token form markdown autolinks take: an anchor
// pair around the literal URL text, marked so consumers can tell it from
// an authored link.
func (f *flattener) autoLink(n *ast.AutoLink, emit func(*token.Record)) {
	url := string(n.URL(f.src))
	label := string(n.Label(f.src))
	href := url
	if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(href, "mailto:") {
		href = "mailto:" + href
	}
	emit(&token.Record{
		Type: "link_open", Tag: "a", Nesting: 1,
		Info: "auto", Markup: "autolink",
		Attrs: [][2]string{{"href", href}},
	})
	emit(&token.Record{Type: "text", Content: label})
	emit(&token.Record{Type: "link_close", Tag: "a", Nesting: -1, Info: "auto", Markup: "autolink"})
}

func (f *flattener) codeSpanText(n *ast.CodeSpan) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(f.src))
		}
	}
	return b.String()
}

func (f *flattener) rawHTMLText(n *ast.RawHTML) string {
	var b strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		b.Write(seg.Value(f.src))
	}
	return b.String()
}
