package token

import (
	"fmt"
	"maps"
)

// BudgetError reports that canonicalization would exceed the token budget.
// Child tokens count against the same budget as top-level tokens so a
// hostile producer cannot hide volume inside Children().
type BudgetError struct {
	// Count is the allocation total that tripped the budget.
	Count int
	// Budget is the configured ceiling.
	Budget int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("canonical token count %d exceeds budget %d", e.Count, e.Budget)
}

// safeField invokes fn and returns its result, or the zero value if fn
// panics. This is the isolation boundary around every raw-token accessor:
// a poisoned field never aborts the snapshot and never reaches the caller.
func safeField[T any](fn func() T) (v T) {
	defer func() { _ = recover() }()
	return fn()
}

// Canonicalize snapshots a raw token stream into canonical tokens. Each
// field of each token is extracted in isolation; a panicking accessor only
// loses that one field. budget caps the total number of tokens allocated,
// children included; exceeding it returns a BudgetError and no tokens.
// budget <= 0 disables the cap and must only be used for trusted producers
// (an unbudgeted walk cannot defend against self-referential child lists).
//
// Traversal uses an explicit work stack; producer-controlled nesting depth
// cannot exhaust the call stack.
func Canonicalize(raws []Raw, budget int) ([]Token, error) {
	alloc := len(raws)
	if budget > 0 && alloc > budget {
		return nil, &BudgetError{Count: alloc, Budget: budget}
	}
	top := make([]Token, len(raws))

	type frame struct {
		raws []Raw
		dst  []Token
		next int
	}
	stack := []frame{{raws: raws, dst: top}}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.next >= len(f.raws) {
			stack = stack[:len(stack)-1]
			continue
		}
		i := f.next
		f.next++

		r := f.raws[i]
		if r == nil {
			continue // slot keeps its zero Token
		}

		t := &f.dst[i]
		t.Type = safeField(r.Type)
		t.Tag = safeField(r.Tag)
		t.Nesting = clampNesting(safeField(r.Nesting))
		t.Map = normalizeSpan(safeField(r.Map))
		t.Level = max(safeField(r.Level), 0)
		t.Content = safeField(r.Content)
		t.Markup = safeField(r.Markup)
		t.Info = safeField(r.Info)
		t.Meta = maps.Clone(safeField(r.Meta))
		t.Block = safeField(r.Block)
		t.Hidden = safeField(r.Hidden)
		t.Attrs = copyAttrs(safeField(r.Attrs))

		kids := safeField(r.Children)
		if len(kids) > 0 {
			if budget > 0 && alloc+len(kids) > budget {
				return nil, &BudgetError{Count: alloc + len(kids), Budget: budget}
			}
			alloc += len(kids)
			t.Children = make([]Token, len(kids))
			stack = append(stack, frame{raws: kids, dst: t.Children})
		}
	}
	return top, nil
}

func clampNesting(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// normalizeSpan validates a producer line span. Anything other than a
// well-ordered non-negative pair is dropped rather than trusted.
func normalizeSpan(m []int) LineSpan {
	if len(m) < 2 {
		return LineSpan{}
	}
	start, end := m[0], m[1]
	if start < 0 || end < start {
		return LineSpan{}
	}
	return LineSpan{Start: start, End: end, Valid: true}
}

func copyAttrs(pairs [][2]string) []Attr {
	if len(pairs) == 0 {
		return nil
	}
	attrs := make([]Attr, len(pairs))
	for i, p := range pairs {
		attrs[i] = Attr{Name: p[0], Value: p[1]}
	}
	return attrs
}
