package extract

import "time"

// Default resource ceilings. Tunable per deployment through Limits; these
// are starting points sized for documentation-scale markdown, not absolutes.
const (
	DefaultMaxTokens        = 100_000
	DefaultMaxBytes         = 10 << 20
	DefaultMaxNesting       = 256
	DefaultCollectorTimeout = 2 * time.Second
)

// Limits is the resource budget for one document. It is a plain value
// passed at warehouse construction, never global state. The zero value
// means "all defaults"; set a field negative to disable that check.
type Limits struct {
	// MaxTokens caps the canonical token count, child tokens included.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxBytes caps the raw source length in bytes.
	MaxBytes int `json:"max_bytes" yaml:"max_bytes"`

	// MaxNesting caps container nesting depth during index construction.
	MaxNesting int `json:"max_nesting" yaml:"max_nesting"`

	// CollectorTimeout bounds each collector invocation. Negative disables
	// the watchdog entirely; collector calls then run inline on the
	// dispatching goroutine.
	CollectorTimeout time.Duration `json:"collector_timeout" yaml:"collector_timeout"`

	// StrictErrors propagates the first collector error instead of
	// recording it and continuing. Intended for tests and debugging;
	// production dispatch favors completeness under partial failure.
	StrictErrors bool `json:"strict_errors" yaml:"strict_errors"`
}

// DefaultLimits returns the default resource budget.
func DefaultLimits() Limits {
	return Limits{
		MaxTokens:        DefaultMaxTokens,
		MaxBytes:         DefaultMaxBytes,
		MaxNesting:       DefaultMaxNesting,
		CollectorTimeout: DefaultCollectorTimeout,
	}
}

// withDefaults fills zero fields with defaults. Negative values pass
// through unchanged; callers treat them as "check disabled".
func (l Limits) withDefaults() Limits {
	if l.MaxTokens == 0 {
		l.MaxTokens = DefaultMaxTokens
	}
	if l.MaxBytes == 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxNesting == 0 {
		l.MaxNesting = DefaultMaxNesting
	}
	if l.CollectorTimeout == 0 {
		l.CollectorTimeout = DefaultCollectorTimeout
	}
	return l
}

// admit is the fail-fast admission gate. It runs before canonicalization
// allocates anything so oversized input is rejected with no memory
// amplification and no partial state.
func admit(tokenCount, srcBytes int, l Limits) error {
	if l.MaxTokens > 0 && tokenCount > l.MaxTokens {
		return &DocumentTooLargeError{
			TokenCount: tokenCount, MaxTokens: l.MaxTokens,
			SrcBytes: srcBytes, MaxBytes: l.MaxBytes,
		}
	}
	if l.MaxBytes > 0 && srcBytes > l.MaxBytes {
		return &DocumentTooLargeError{
			TokenCount: tokenCount, MaxTokens: l.MaxTokens,
			SrcBytes: srcBytes, MaxBytes: l.MaxBytes,
		}
	}
	return nil
}
