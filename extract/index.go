package extract

import "github.com/c360studio/semharvest/token"

// Section is one heading-delimited span of the token stream. Start is the
// heading token itself; End is exclusive. Sections nest: an h3 section
// lies inside the enclosing h2 section. Line fields are -1 when the
// producer supplied no usable line spans.
type Section struct {
	// HeadingIndex is the heading_open token that starts the section.
	HeadingIndex int `json:"heading_index"`
	// Level is the heading level, 1 through 6.
	Level int `json:"level"`
	// Start is the first token index of the section (the heading itself).
	Start int `json:"start"`
	// End is the exclusive token index where the section closes.
	End int `json:"end"`
	// StartLine is the heading's source line, or -1.
	StartLine int `json:"start_line"`
	// EndLine is the exclusive source line where the section closes, or -1.
	EndLine int `json:"end_line"`
}

// Indices holds the read-only lookup structures built once over the
// canonical token stream: the parent index (token to nearest enclosing
// open container) and the section index (token to innermost heading
// section). Collectors query them through the warehouse.
type Indices struct {
	parent    []int
	sectionOf []int
	sections  []Section

	// sectionOps counts section stack pushes and pops; the build is
	// required to stay O(H) in the heading count, not O(N*H).
	sectionOps int
}

// Parent returns the token index of i's nearest enclosing open container,
// or -1 for top-level tokens and out-of-range indices.
func (x *Indices) Parent(i int) int {
	if i < 0 || i >= len(x.parent) {
		return -1
	}
	return x.parent[i]
}

// SectionAt returns the innermost section containing token i.
func (x *Indices) SectionAt(i int) (Section, bool) {
	if i < 0 || i >= len(x.sectionOf) || x.sectionOf[i] < 0 {
		return Section{}, false
	}
	return x.sections[x.sectionOf[i]], true
}

// Sections returns all sections in document order.
func (x *Indices) Sections() []Section {
	return x.sections
}

// buildIndices runs the single forward pass that constructs every index.
// Traversal is iterative with explicit stacks; nesting depth is checked at
// each container push so a pathologically nested document fails at the
// first violating token instead of after allocating the full structure.
// Unbalanced closes from a malformed producer pop an empty stack as a
// no-op.
func buildIndices(tokens []token.Token, maxNesting int) (*Indices, error) {
	x := &Indices{
		parent:    make([]int, len(tokens)),
		sectionOf: make([]int, len(tokens)),
	}

	var containers []int // open container token indices
	var open []int       // open section positions in x.sections
	lastLine := -1

	for i := range tokens {
		tok := &tokens[i]

		switch {
		case tok.Opens():
			x.parent[i] = top(containers)
			containers = append(containers, i)
			if maxNesting > 0 && len(containers) > maxNesting {
				return nil, &NestingTooDeepError{
					TokenIndex: i, Depth: len(containers), MaxNesting: maxNesting,
				}
			}
		case tok.Closes():
			if len(containers) > 0 {
				containers = containers[:len(containers)-1]
			}
			x.parent[i] = top(containers)
		default:
			x.parent[i] = top(containers)
		}

		if lvl := headingLevel(tok); lvl > 0 {
			// A heading of level L closes every open section at L or
			// deeper before starting its own.
			for len(open) > 0 && x.sections[open[len(open)-1]].Level >= lvl {
				x.closeSection(&open, i, lastLine)
			}
			x.sections = append(x.sections, Section{
				HeadingIndex: i,
				Level:        lvl,
				Start:        i,
				StartLine:    startLine(tok),
				End:          -1,
				EndLine:      -1,
			})
			open = append(open, len(x.sections)-1)
			x.sectionOps++
		}
		x.sectionOf[i] = top(open) // -1 outside any section

		if tok.Map.Valid && tok.Map.End > lastLine {
			lastLine = tok.Map.End
		}
	}

	for len(open) > 0 {
		x.closeSection(&open, len(tokens), lastLine)
	}
	return x, nil
}

func (x *Indices) closeSection(open *[]int, end, endLine int) {
	s := (*open)[len(*open)-1]
	*open = (*open)[:len(*open)-1]
	x.sections[s].End = end
	x.sections[s].EndLine = endLine
	x.sectionOps++
}

func top(stack []int) int {
	if len(stack) == 0 {
		return -1
	}
	return stack[len(stack)-1]
}

// headingLevel returns 1..6 for a heading_open token with a well-formed
// h1..h6 tag, 0 otherwise. Producer tags are data, not trusted structure;
// anything outside the h1..h6 alphabet is ignored for sectioning.
func headingLevel(tok *token.Token) int {
	if tok.Type != "heading_open" || len(tok.Tag) != 2 || tok.Tag[0] != 'h' {
		return 0
	}
	if tok.Tag[1] < '1' || tok.Tag[1] > '6' {
		return 0
	}
	return int(tok.Tag[1] - '0')
}

func startLine(tok *token.Token) int {
	if tok.Map.Valid {
		return tok.Map.Start
	}
	return -1
}
