package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/harvest"
)

func TestResultSubject(t *testing.T) {
	got := ResultSubject("semharvest.extract", "doc.notes.abc123def456")
	assert.Equal(t, "semharvest.extract.result.doc.notes.abc123def456", got)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher

	res := &harvest.Result{
		Document: harvest.DocumentMeta{ID: "doc.x.abc"},
		Report:   &extract.Report{RunID: "run-1"},
	}

	require.NoError(t, p.PublishResult(context.Background(), res))
	p.Close()
}
