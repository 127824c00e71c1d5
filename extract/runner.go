package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/semharvest/token"
)

type invokeKind int

const (
	invokeToken invokeKind = iota
	invokeFinalize
)

type invocation struct {
	kind  invokeKind
	ctx   context.Context
	index int
	tok   *token.Token
}

type outcome struct {
	value any
	err   error
}

// runner owns every call into one collector, serialized on a dedicated
// worker goroutine. When the dispatcher abandons a timed-out call, the
// worker is still inside it; routing all later calls (Finalize included)
// through the same worker guarantees the abandoned call can never race a
// subsequent one on the collector's private state. An abandoned call leaks
// its goroutine until the collector returns; that is the accepted cost of
// bounding dispatch time without forcibly killing collector code.
type runner struct {
	c       Collector
	w       *Warehouse
	calls   chan invocation
	results chan outcome
}

func newRunner(c Collector, w *Warehouse) *runner {
	r := &runner{
		c:     c,
		w:     w,
		calls: make(chan invocation),
		// One slot so a late result from an abandoned call parks here
		// instead of wedging the worker.
		results: make(chan outcome, 1),
	}
	go r.loop()
	return r
}

func (r *runner) loop() {
	for inv := range r.calls {
		r.results <- r.exec(inv)
	}
}

func (r *runner) exec(inv invocation) outcome {
	switch inv.kind {
	case invokeFinalize:
		v, err := safeFinalize(r.c, r.w)
		return outcome{value: v, err: err}
	default:
		return outcome{err: safeOnToken(inv.ctx, r.c, inv.index, inv.tok, r.w)}
	}
}

// invoke submits one call and waits at most timeout for its result. The
// budget covers submission too: if the worker is still executing an
// earlier abandoned call, the new call times out without ever starting.
func (r *runner) invoke(inv invocation, timeout time.Duration) (value any, timedOut bool, err error) {
	// Discard the result of a previously abandoned call, if it has
	// finished in the meantime.
	select {
	case <-r.results:
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r.calls <- inv:
	case <-timer.C:
		return nil, true, nil
	}
	select {
	case out := <-r.results:
		return out.value, false, out.err
	case <-timer.C:
		return nil, true, nil
	}
}

// shutdown lets the worker exit after any in-flight call returns. Never
// blocks the dispatcher.
func (r *runner) shutdown() {
	close(r.calls)
}

// safeOnToken and safeFinalize convert collector panics into errors so a
// faulty collector damages its own results, never the dispatch loop.

func safeOnToken(ctx context.Context, c Collector, i int, tok *token.Token, w *Warehouse) (err error) {
	defer recoverToError(&err)
	return c.OnToken(ctx, i, tok, w)
}

func safeFinalize(c Collector, w *Warehouse) (v any, err error) {
	defer recoverToError(&err)
	return c.Finalize(w)
}

func recoverToError(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("panic: %v", rec)
	}
}
