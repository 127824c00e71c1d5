package extract

import (
	"context"

	"github.com/c360studio/semharvest/token"
)

// Collector is a pluggable extractor fed canonical tokens by the dispatch
// loop. Implementations are stateful: each instance owns a private
// accumulator and must never be shared across warehouses or registered
// twice. Tokens and warehouse views handed to a collector are read-only.
//
// Collectors must not perform blocking I/O in any of these methods; the
// watchdog exists for defense, not as a scheduling mechanism.
type Collector interface {
	// Name identifies the collector. It keys the results map and issue
	// records, so it must be unique within a warehouse and non-empty.
	Name() string

	// ShouldProcess is the cheap filter deciding whether OnToken runs for
	// token i. It is called on the dispatching goroutine and may overlap
	// with an abandoned OnToken invocation still draining on a watchdog
	// worker, so it must only read the token and warehouse, never the
	// collector's own mutable state.
	ShouldProcess(i int, tok *token.Token, w *Warehouse) bool

	// OnToken processes token i. Errors and panics are recorded as issues
	// without stopping dispatch (unless Limits.StrictErrors). Long calls
	// are abandoned after Limits.CollectorTimeout; well-behaved
	// implementations watch ctx and return early when it is done.
	OnToken(ctx context.Context, i int, tok *token.Token, w *Warehouse) error

	// Finalize runs once after the token loop and returns the collector's
	// aggregated result, stored in the report under Name.
	Finalize(w *Warehouse) (any, error)
}
