// Package tokenizer adapts goldmark's markdown AST into the flat token
// stream the extraction engine consumes. The engine itself never imports
// this package; it is one producer among any number, and the engine
// treats its output with the same suspicion as anyone else's.
//
// The flattening is iterative throughout. Container blocks become
// *_open/*_close pairs, leaf blocks become single tokens, and inline
// runs become one "inline" token whose children carry text, links,
// images, emphasis and raw HTML.
package tokenizer

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/c360studio/semharvest/token"
)

// Tokenize parses src as GitHub-flavored markdown and returns the flat
// token stream. The result is a fresh slice each call; producers share
// nothing.
func Tokenize(src []byte) []token.Raw {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	f := &flattener{
		src:   src,
		lines: buildLineIndex(src),
		out:   []*token.Record{},
	}
	f.blocks(doc)
	return token.Rawize(f.out)
}

type flattener struct {
	src   []byte
	lines lineIndex
	out   []*token.Record
}

func (f *flattener) emit(r *token.Record) {
	f.out = append(f.out, r)
}

// blockFrame is one entry of the explicit walk stack. A non-nil close
// record marks a container exit: emit it and move on.
type blockFrame struct {
	n     ast.Node
	close *token.Record
}

func (f *flattener) blocks(doc ast.Node) {
	var stack []blockFrame
	pushChildren := func(n ast.Node) {
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, blockFrame{n: c})
		}
	}
	pushChildren(doc)

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.close != nil {
			f.emit(fr.close)
			continue
		}

		switch n := fr.n.(type) {
		case *ast.Paragraph:
			f.paragraph(n, false)
		case *ast.TextBlock:
			// Tight list items carry their content in text blocks; the
			// stream keeps the paragraph pair but hides it.
			f.paragraph(n, true)
		case *ast.Heading:
			f.heading(n)
		case *ast.FencedCodeBlock:
			f.fence(n)
		case *ast.CodeBlock:
			f.emit(&token.Record{
				Type: "code_block", Tag: "code", Block: true,
				Map:     f.spanOf(n),
				Content: f.linesValue(n),
			})
		case *ast.HTMLBlock:
			f.htmlBlock(n)
		case *ast.ThematicBreak:
			f.emit(&token.Record{Type: "hr", Tag: "hr", Markup: "---", Block: true})
		case *east.Table:
			f.table(n)
		case *ast.Blockquote:
			f.emit(&token.Record{Type: "blockquote_open", Tag: "blockquote", Nesting: 1, Markup: ">", Block: true, Map: f.spanOf(n)})
			stack = append(stack, blockFrame{close: &token.Record{Type: "blockquote_close", Tag: "blockquote", Nesting: -1, Markup: ">", Block: true}})
			pushChildren(n)
		case *ast.List:
			open, cls := listPair(n)
			open.Map = f.spanOf(n)
			f.emit(open)
			stack = append(stack, blockFrame{close: cls})
			pushChildren(n)
		case *ast.ListItem:
			f.emit(&token.Record{Type: "list_item_open", Tag: "li", Nesting: 1, Block: true, Map: f.spanOf(n)})
			stack = append(stack, blockFrame{close: &token.Record{Type: "list_item_close", Tag: "li", Nesting: -1, Block: true}})
			pushChildren(n)
		default:
			// Unknown blocks flatten transparently.
			pushChildren(fr.n)
		}
	}
}

func listPair(n *ast.List) (open, cls *token.Record) {
	typ, tag := "bullet_list", "ul"
	if n.IsOrdered() {
		typ, tag = "ordered_list", "ol"
	}
	markup := string(n.Marker)
	open = &token.Record{Type: typ + "_open", Tag: tag, Nesting: 1, Markup: markup, Block: true}
	if n.IsOrdered() && n.Start != 1 {
		open.Attrs = [][2]string{{"start", strconv.Itoa(n.Start)}}
	}
	cls = &token.Record{Type: typ + "_close", Tag: tag, Nesting: -1, Markup: markup, Block: true}
	return open, cls
}

func (f *flattener) paragraph(n ast.Node, hidden bool) {
	span := f.spanOf(n)
	f.emit(&token.Record{Type: "paragraph_open", Tag: "p", Nesting: 1, Block: true, Hidden: hidden, Map: span})
	f.inlineToken(n, span)
	f.emit(&token.Record{Type: "paragraph_close", Tag: "p", Nesting: -1, Block: true, Hidden: hidden})
}

func (f *flattener) heading(n *ast.Heading) {
	tag := "h" + strconv.Itoa(n.Level)
	markup := strings.Repeat("#", n.Level)
	span := f.spanOf(n)
	f.emit(&token.Record{Type: "heading_open", Tag: tag, Nesting: 1, Markup: markup, Block: true, Map: span})
	f.inlineToken(n, span)
	f.emit(&token.Record{Type: "heading_close", Tag: tag, Nesting: -1, Markup: markup, Block: true})
}

func (f *flattener) fence(n *ast.FencedCodeBlock) {
	rec := &token.Record{
		Type: "fence", Tag: "code", Markup: "```", Block: true,
		Content: f.linesValue(n),
	}
	if n.Info != nil {
		rec.Info = string(n.Info.Segment.Value(f.src))
		// The info segment sits on the opening fence line, which the
		// content lines never cover.
		start := f.lines.lineOf(n.Info.Segment.Start)
		end := start + 1
		if span := f.spanOf(n); len(span) == 2 {
			end = span[1]
		}
		rec.Map = []int{start, end}
	} else {
		rec.Map = f.spanOf(n)
	}
	f.emit(rec)
}

func (f *flattener) htmlBlock(n *ast.HTMLBlock) {
	content := f.linesValue(n)
	span := f.spanOf(n)
	if n.HasClosure() {
		content += string(n.ClosureLine.Value(f.src))
		end := f.lines.lineOf(max(n.ClosureLine.Stop-1, 0)) + 1
		if len(span) == 2 {
			span = []int{span[0], end}
		} else {
			span = []int{f.lines.lineOf(n.ClosureLine.Start), end}
		}
	}
	f.emit(&token.Record{Type: "html_block", Block: true, Map: span, Content: content})
}

func (f *flattener) table(n *east.Table) {
	f.emit(&token.Record{Type: "table_open", Tag: "table", Nesting: 1, Block: true, Map: f.spanOf(n)})

	row := n.FirstChild()
	if header, ok := row.(*east.TableHeader); ok {
		f.emit(&token.Record{Type: "thead_open", Tag: "thead", Nesting: 1, Block: true})
		f.tableRow(header, "th")
		f.emit(&token.Record{Type: "thead_close", Tag: "thead", Nesting: -1, Block: true})
		row = header.NextSibling()
	}
	if row != nil {
		f.emit(&token.Record{Type: "tbody_open", Tag: "tbody", Nesting: 1, Block: true})
		for ; row != nil; row = row.NextSibling() {
			f.tableRow(row, "td")
		}
		f.emit(&token.Record{Type: "tbody_close", Tag: "tbody", Nesting: -1, Block: true})
	}
	f.emit(&token.Record{Type: "table_close", Tag: "table", Nesting: -1, Block: true})
}

func (f *flattener) tableRow(row ast.Node, cellTag string) {
	f.emit(&token.Record{Type: "tr_open", Tag: "tr", Nesting: 1, Block: true})
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cell, ok := c.(*east.TableCell)
		if !ok {
			continue
		}
		open := &token.Record{Type: cellTag + "_open", Tag: cellTag, Nesting: 1, Block: true}
		if style := alignStyle(cell.Alignment); style != "" {
			open.Attrs = [][2]string{{"style", style}}
		}
		f.emit(open)
		f.inlineToken(cell, nil)
		f.emit(&token.Record{Type: cellTag + "_close", Tag: cellTag, Nesting: -1, Block: true})
	}
	f.emit(&token.Record{Type: "tr_close", Tag: "tr", Nesting: -1, Block: true})
}

func alignStyle(a east.Alignment) string {
	switch a {
	case east.AlignLeft:
		return "text-align:left"
	case east.AlignCenter:
		return "text-align:center"
	case east.AlignRight:
		return "text-align:right"
	}
	return ""
}

// linesValue concatenates a block node's source lines.
func (f *flattener) linesValue(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(f.src))
	}
	return b.String()
}

// spanOf computes a [startLine, endLine) pair for a block node, walking
// down to the first and last descendants that carry source lines.
// Returns nil when no descendant does.
func (f *flattener) spanOf(n ast.Node) []int {
	first := firstLined(n)
	last := lastLined(n)
	if first == nil || last == nil {
		return nil
	}
	fl := first.Lines().At(0)
	ll := last.Lines().At(last.Lines().Len() - 1)
	start := f.lines.lineOf(fl.Start)
	end := f.lines.lineOf(max(ll.Stop-1, 0)) + 1
	return []int{start, end}
}

func firstLined(root ast.Node) ast.Node {
	stack := []ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !blockish(n) {
			continue
		}
		if n.Lines().Len() > 0 {
			return n
		}
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, c)
		}
	}
	return nil
}

func lastLined(root ast.Node) ast.Node {
	stack := []ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !blockish(n) {
			continue
		}
		if n.Lines().Len() > 0 {
			return n
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			stack = append(stack, c)
		}
	}
	return nil
}

func blockish(n ast.Node) bool {
	return n.Type() == ast.TypeBlock || n.Type() == ast.TypeDocument
}

// lineIndex maps byte offsets to zero-based line numbers.
type lineIndex []int

func buildLineIndex(src []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (ix lineIndex) lineOf(offset int) int {
	i := sort.Search(len(ix), func(i int) bool { return ix[i] > offset })
	return i - 1
}
