package extract

// Report is the aggregated outcome of one dispatch: per-collector result
// lists keyed by collector name, plus every accumulated issue. It is a
// snapshot view over warehouse-owned data; read it after DispatchAll
// returns.
type Report struct {
	// RunID correlates this report with logs and downstream events.
	RunID string `json:"run_id"`
	// Results maps collector name to that collector's finalized output.
	// Collectors whose finalize failed have no entry.
	Results map[string]any `json:"results"`
	// Issues lists every recorded non-fatal collector failure.
	Issues []Issue `json:"issues,omitempty"`
	// TokenCount is the canonical token count of the document.
	TokenCount int `json:"token_count"`
	// SrcBytes is the original source length in bytes.
	SrcBytes int `json:"src_bytes"`
	// DurationMs is the wall time of the dispatch pass.
	DurationMs int64 `json:"duration_ms"`
}

// Report returns the dispatch outcome. Before DispatchAll it reports empty
// results; afterwards its contents are final.
func (w *Warehouse) Report() *Report {
	return &Report{
		RunID:      w.runID,
		Results:    w.results,
		Issues:     w.issues,
		TokenCount: len(w.tokens),
		SrcBytes:   w.srcBytes,
		DurationMs: w.duration.Milliseconds(),
	}
}
