package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpansShareTraceAcrossNesting(t *testing.T) {
	tr := NewTracer(true)
	ctx, run := tr.StartSpan(context.Background(), "run")
	defer run.End()
	evCtx, ev := tr.StartSpan(ctx, "event")
	defer ev.End()

	runTrace, runSpan := ExtractIDs(ctx)
	evTrace, evSpan := ExtractIDs(evCtx)
	assert.NotEmpty(t, runTrace)
	assert.Equal(t, runTrace, evTrace, "event spans inherit the run trace")
	assert.NotEqual(t, runSpan, evSpan)
	assert.Equal(t, runSpan, ev.Context().ParentSpanID)
}

func TestDisabledTracerYieldsNothing(t *testing.T) {
	tr := NewTracer(false)
	ctx, sp := tr.StartSpan(context.Background(), "run")
	sp.End()
	trace, span := ExtractIDs(ctx)
	assert.Empty(t, trace)
	assert.Empty(t, span)
}
