package collectors

import (
	"context"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/textscan"
	"github.com/c360studio/semharvest/token"
)

// Table summarizes one GFM table.
type Table struct {
	// Line is the table's first source line, or -1.
	Line int `json:"line"`
	// EndLine is the exclusive last source line, or -1.
	EndLine int `json:"end_line"`
	// Headers lists the header cell texts in column order.
	Headers []string `json:"headers,omitempty"`
	// Rows counts body rows, the header row excluded.
	Rows int `json:"rows"`
	// ContainsTemplateSyntax flags template delimiters in any cell.
	ContainsTemplateSyntax bool `json:"contains_template_syntax"`
}

// Tables collects table_open/table_close spans. Open tables form an
// explicit stack so a producer nesting tables, which GFM cannot express,
// still yields one record per close without recursion.
type Tables struct {
	tables []Table
	open   []*tableState
}

type tableState struct {
	table  Table
	inHead bool
}

// NewTables returns a table collector.
func NewTables() *Tables {
	return &Tables{tables: []Table{}}
}

// Name implements extract.Collector.
func (c *Tables) Name() string { return "tables" }

// ShouldProcess selects table structure tokens and the inline cell runs
// between them.
func (c *Tables) ShouldProcess(_ int, tok *token.Token, _ *extract.Warehouse) bool {
	switch tok.Type {
	case "table_open", "table_close", "thead_open", "thead_close", "tr_open", "inline":
		return true
	}
	return false
}

// OnToken implements extract.Collector.
func (c *Tables) OnToken(_ context.Context, _ int, tok *token.Token, _ *extract.Warehouse) error {
	cur := c.top()
	switch tok.Type {
	case "table_open":
		c.open = append(c.open, &tableState{table: Table{
			Line:    lineOf(tok),
			EndLine: endLineOf(tok),
			Headers: []string{},
		}})
	case "table_close":
		if cur != nil {
			c.open = c.open[:len(c.open)-1]
			c.tables = append(c.tables, cur.table)
		}
	case "thead_open":
		if cur != nil {
			cur.inHead = true
		}
	case "thead_close":
		if cur != nil {
			cur.inHead = false
		}
	case "tr_open":
		if cur != nil && !cur.inHead {
			cur.table.Rows++
		}
	case "inline":
		if cur == nil {
			return nil
		}
		text := tok.Text()
		if cur.inHead {
			cur.table.Headers = append(cur.table.Headers, text)
		}
		if textscan.HasTemplateSyntax(text) {
			cur.table.ContainsTemplateSyntax = true
		}
	}
	return nil
}

func (c *Tables) top() *tableState {
	if len(c.open) == 0 {
		return nil
	}
	return c.open[len(c.open)-1]
}

// Finalize implements extract.Collector.
func (c *Tables) Finalize(_ *extract.Warehouse) (any, error) {
	return c.tables, nil
}

func endLineOf(tok *token.Token) int {
	if tok.Map.Valid {
		return tok.Map.End
	}
	return -1
}
