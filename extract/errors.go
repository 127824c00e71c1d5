package extract

import (
	"errors"
	"fmt"
)

// Fatal construction and dispatch errors. Fatal means the document is
// rejected whole: no warehouse, no indices, no partial results.

// DocumentTooLargeError is returned when a document exceeds the admission
// budget, by token count (child tokens included) or by source byte length.
type DocumentTooLargeError struct {
	// TokenCount is the observed token total.
	TokenCount int
	// MaxTokens is the configured token ceiling.
	MaxTokens int
	// SrcBytes is the original source length in bytes.
	SrcBytes int
	// MaxBytes is the configured byte ceiling.
	MaxBytes int
}

func (e *DocumentTooLargeError) Error() string {
	if e.MaxTokens > 0 && e.TokenCount > e.MaxTokens {
		return fmt.Sprintf("document too large: %d tokens exceeds limit %d", e.TokenCount, e.MaxTokens)
	}
	return fmt.Sprintf("document too large: %d bytes exceeds limit %d", e.SrcBytes, e.MaxBytes)
}

// NestingTooDeepError is returned when container nesting exceeds the
// configured depth during index construction. TokenIndex identifies the
// opening token that first crossed the limit.
type NestingTooDeepError struct {
	TokenIndex int
	Depth      int
	MaxNesting int
}

func (e *NestingTooDeepError) Error() string {
	return fmt.Sprintf("nesting depth %d at token %d exceeds limit %d", e.Depth, e.TokenIndex, e.MaxNesting)
}

// Dispatch lifecycle sentinels.
var (
	// ErrReentrantDispatch is returned when DispatchAll is invoked while a
	// dispatch is already in progress, including from inside a collector
	// callback.
	ErrReentrantDispatch = errors.New("dispatch already in progress")

	// ErrDispatchDone is returned when DispatchAll is invoked on a
	// warehouse whose single dispatch has already completed.
	ErrDispatchDone = errors.New("dispatch already completed")
)

// IsDocumentTooLarge reports whether err is an admission failure.
func IsDocumentTooLarge(err error) bool {
	var tooLarge *DocumentTooLargeError
	return errors.As(err, &tooLarge)
}

// IsNestingTooDeep reports whether err is a nesting-depth failure.
func IsNestingTooDeep(err error) bool {
	var tooDeep *NestingTooDeepError
	return errors.As(err, &tooDeep)
}

// IssueKind classifies a non-fatal collector failure.
type IssueKind string

const (
	// IssueError records a collector callback that returned an error or
	// panicked.
	IssueError IssueKind = "error"
	// IssueTimeout records a collector invocation that exceeded the
	// watchdog deadline.
	IssueTimeout IssueKind = "timeout"
	// IssueFinalize records a collector whose finalize step failed.
	IssueFinalize IssueKind = "finalize"
)

// Issue is one recorded non-fatal failure. Issues accumulate on the
// warehouse and never abort dispatch (unless Limits.StrictErrors is set);
// downstream callers decide whether accumulated issues block use of the
// results.
type Issue struct {
	// Collector is the name of the failing collector.
	Collector string `json:"collector"`
	// TokenIndex is the token being processed, or -1 for finalize-stage
	// failures.
	TokenIndex int `json:"token_index"`
	// Kind classifies the failure.
	Kind IssueKind `json:"kind"`
	// Detail is the error or panic message.
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s[%d]: %s: %s", i.Collector, i.TokenIndex, i.Kind, i.Detail)
}
