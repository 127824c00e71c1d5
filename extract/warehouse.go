// Package extract is the hardened dispatch core: it canonicalizes an
// untrusted token stream, enforces resource admission, builds parent and
// section indices, and runs registered collectors over the tokens under
// panic isolation and per-invocation watchdogs. Fatal conditions (document
// too large, nesting too deep, reentrant dispatch) fail the whole document
// closed; collector failures accumulate as issues without stopping the run.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semharvest/token"
)

// Dispatch lifecycle states.
const (
	stateIdle int32 = iota
	stateDispatching
	stateDone
)

// Warehouse owns the canonical tokens and indices for one document and
// runs the single dispatch pass over its registered collectors. Instances
// are single-use: construct, register, dispatch once, read the report.
// Parallelism across documents is separate Warehouse instances; one
// instance must not be dispatched concurrently (the state guard turns the
// attempt into ErrReentrantDispatch rather than a race).
type Warehouse struct {
	tokens  []token.Token
	indices *Indices
	limits  Limits

	collectors []Collector
	names      []string
	registered map[string]bool

	state    atomic.Int32
	issues   []Issue
	results  map[string]any
	duration time.Duration

	runID    string
	srcBytes int
	logger   *slog.Logger
}

// Option configures a Warehouse.
type Option func(*Warehouse)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Warehouse) {
		w.logger = logger
	}
}

// WithRunID overrides the generated run ID, letting callers correlate the
// report with an upstream request ID.
func WithRunID(id string) Option {
	return func(w *Warehouse) {
		w.runID = id
	}
}

// New admits, canonicalizes and indexes a raw token stream. The admission
// gate runs before canonicalization touches any raw token, so an oversized
// document is rejected before it can amplify memory; a hostile child-token
// blowup inside canonicalization surfaces as the same DocumentTooLargeError.
// On any error no Warehouse exists; there is no partially indexed state.
func New(raws []token.Raw, srcBytes int, limits Limits, opts ...Option) (*Warehouse, error) {
	limits = limits.withDefaults()

	if err := admit(len(raws), srcBytes, limits); err != nil {
		return nil, err
	}

	budget := limits.MaxTokens
	if budget < 0 {
		budget = 0
	}
	toks, err := token.Canonicalize(raws, budget)
	if err != nil {
		var blown *token.BudgetError
		if errors.As(err, &blown) {
			return nil, &DocumentTooLargeError{
				TokenCount: blown.Count, MaxTokens: limits.MaxTokens,
				SrcBytes: srcBytes, MaxBytes: limits.MaxBytes,
			}
		}
		return nil, fmt.Errorf("canonicalize tokens: %w", err)
	}

	indices, err := buildIndices(toks, limits.MaxNesting)
	if err != nil {
		return nil, err
	}

	w := &Warehouse{
		tokens:     toks,
		indices:    indices,
		limits:     limits,
		registered: make(map[string]bool),
		results:    make(map[string]any),
		runID:      uuid.New().String(),
		srcBytes:   srcBytes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register adds collectors in the order given; dispatch preserves this
// registration order within each token. Names must be unique and non-empty.
// Registration is only valid before DispatchAll.
func (w *Warehouse) Register(collectors ...Collector) error {
	if w.state.Load() != stateIdle {
		return fmt.Errorf("collectors must be registered before dispatch")
	}
	for _, c := range collectors {
		name := c.Name()
		if name == "" {
			return fmt.Errorf("collector name must not be empty")
		}
		if w.registered[name] {
			return fmt.Errorf("collector %q already registered", name)
		}
		w.registered[name] = true
		w.collectors = append(w.collectors, c)
		w.names = append(w.names, name)
	}
	return nil
}

// DispatchAll runs the one dispatch pass: every token in document order,
// and for each token every willing collector in registration order, then
// one Finalize per collector. Collector errors and timeouts are recorded
// as issues and dispatch continues (StrictErrors aborts on the first
// error). The pass is strictly single-use; after it returns the warehouse
// only serves reads. Calling it again returns ErrDispatchDone, and calling
// it while a dispatch is running, including from inside a collector
// callback, returns ErrReentrantDispatch.
func (w *Warehouse) DispatchAll(ctx context.Context) error {
	if !w.state.CompareAndSwap(stateIdle, stateDispatching) {
		if w.state.Load() == stateDispatching {
			return ErrReentrantDispatch
		}
		return ErrDispatchDone
	}
	defer w.state.Store(stateDone)

	started := time.Now()
	defer func() { w.duration = time.Since(started) }()

	timeout := w.limits.CollectorTimeout
	var runners []*runner
	if timeout > 0 {
		runners = make([]*runner, len(w.collectors))
		for i, c := range w.collectors {
			runners[i] = newRunner(c, w)
		}
		defer func() {
			for _, r := range runners {
				r.shutdown()
			}
		}()
	}

	for i := range w.tokens {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch canceled at token %d: %w", i, err)
		}
		tok := &w.tokens[i]
		for ci := range w.collectors {
			if !w.wantsToken(ci, i, tok) {
				continue
			}

			var timedOut bool
			var err error
			if runners != nil {
				_, timedOut, err = runners[ci].invoke(invocation{
					kind: invokeToken, ctx: ctx, index: i, tok: tok,
				}, timeout)
			} else {
				err = safeOnToken(ctx, w.collectors[ci], i, tok, w)
			}

			switch {
			case timedOut:
				w.addIssue(Issue{
					Collector: w.names[ci], TokenIndex: i,
					Kind: IssueTimeout, Detail: fmt.Sprintf("exceeded %s", timeout),
				})
			case err != nil:
				w.addIssue(Issue{
					Collector: w.names[ci], TokenIndex: i,
					Kind: IssueError, Detail: err.Error(),
				})
				if w.limits.StrictErrors {
					return fmt.Errorf("collector %s failed on token %d: %w", w.names[ci], i, err)
				}
			}
		}
	}

	if err := w.finalizeAll(runners, timeout); err != nil {
		return err
	}

	w.logger.Debug("dispatch complete",
		"run_id", w.runID,
		"tokens", len(w.tokens),
		"collectors", len(w.collectors),
		"issues", len(w.issues),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// finalizeAll collects each collector's aggregate. Finalize failures and
// timeouts are recorded with TokenIndex -1 and leave that collector's
// entry out of the results map; the other collectors still publish theirs.
// Under StrictErrors the first finalize error aborts instead.
func (w *Warehouse) finalizeAll(runners []*runner, timeout time.Duration) error {
	for ci := range w.collectors {
		var value any
		var timedOut bool
		var err error
		if runners != nil {
			value, timedOut, err = runners[ci].invoke(invocation{kind: invokeFinalize}, timeout)
		} else {
			value, err = safeFinalize(w.collectors[ci], w)
		}

		switch {
		case timedOut:
			w.addIssue(Issue{
				Collector: w.names[ci], TokenIndex: -1,
				Kind: IssueTimeout, Detail: fmt.Sprintf("finalize exceeded %s", timeout),
			})
		case err != nil:
			w.addIssue(Issue{
				Collector: w.names[ci], TokenIndex: -1,
				Kind: IssueFinalize, Detail: err.Error(),
			})
			if w.limits.StrictErrors {
				return fmt.Errorf("collector %s finalize failed: %w", w.names[ci], err)
			}
		default:
			w.results[w.names[ci]] = value
		}
	}
	return nil
}

// wantsToken runs ShouldProcess under panic isolation; a panicking filter
// counts as declining the token and records an issue.
func (w *Warehouse) wantsToken(ci, i int, tok *token.Token) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			w.addIssue(Issue{
				Collector: w.names[ci], TokenIndex: i,
				Kind: IssueError, Detail: fmt.Sprintf("should-process panic: %v", rec),
			})
		}
	}()
	return w.collectors[ci].ShouldProcess(i, tok, w)
}

func (w *Warehouse) addIssue(issue Issue) {
	w.issues = append(w.issues, issue)
	w.logger.Debug("collector issue",
		"run_id", w.runID,
		"collector", issue.Collector,
		"token_index", issue.TokenIndex,
		"kind", string(issue.Kind),
		"detail", issue.Detail,
	)
}

// Read-only views. Collectors receive the warehouse during dispatch and
// must treat everything below as immutable.

// Len returns the canonical token count.
func (w *Warehouse) Len() int { return len(w.tokens) }

// Token returns token i, or nil when i is out of range.
func (w *Warehouse) Token(i int) *token.Token {
	if i < 0 || i >= len(w.tokens) {
		return nil
	}
	return &w.tokens[i]
}

// Tokens returns the canonical token stream.
func (w *Warehouse) Tokens() []token.Token { return w.tokens }

// Parent returns the index of token i's nearest enclosing open container,
// or -1.
func (w *Warehouse) Parent(i int) int { return w.indices.Parent(i) }

// SectionAt returns the innermost heading section containing token i.
func (w *Warehouse) SectionAt(i int) (Section, bool) { return w.indices.SectionAt(i) }

// Sections returns all heading sections in document order.
func (w *Warehouse) Sections() []Section { return w.indices.Sections() }

// Limits returns the effective resource limits (defaults applied).
func (w *Warehouse) Limits() Limits { return w.limits }

// RunID returns the correlation ID carried into the report.
func (w *Warehouse) RunID() string { return w.runID }

// SrcBytes returns the original source length given at construction.
func (w *Warehouse) SrcBytes() int { return w.srcBytes }
