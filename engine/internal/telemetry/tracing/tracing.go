// Package tracing provides run/event span identifiers for log correlation.
// There is no exporter: spans exist so that every log line of one event can
// be grouped after the fact.
package tracing

import (
	"context"
	randcrypto "crypto/rand"
	"encoding/hex"
	"time"
)

type SpanContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Start, End   time.Time
}

type Span struct {
	ctx   SpanContext
	ended bool
}

func (s *Span) End() {
	if !s.ended {
		s.ctx.End = time.Now()
		s.ended = true
	}
}

func (s *Span) Context() SpanContext { return s.ctx }

type Tracer struct{ enabled bool }

func NewTracer(enabled bool) *Tracer { return &Tracer{enabled: enabled} }

// StartSpan opens a span under any span already in ctx; the run span opens
// the trace, event spans nest below it.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if !t.enabled {
		return ctx, &Span{ended: true}
	}
	parent := fromContext(ctx)
	traceID := ""
	parentID := ""
	if parent != nil {
		traceID = parent.ctx.TraceID
		parentID = parent.ctx.SpanID
	}
	if traceID == "" {
		traceID = newID(16)
	}
	sp := &Span{ctx: SpanContext{TraceID: traceID, SpanID: newID(8), ParentSpanID: parentID, Start: time.Now()}}
	return context.WithValue(ctx, spanKey{}, sp), sp
}

type spanKey struct{}

func fromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	sp, _ := ctx.Value(spanKey{}).(*Span)
	return sp
}

// ExtractIDs returns the trace/span IDs in ctx, empty when none.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sp := fromContext(ctx)
	if sp == nil {
		return "", ""
	}
	return sp.ctx.TraceID, sp.ctx.SpanID
}

func newID(n int) string {
	b := make([]byte, n)
	_, _ = randcrypto.Read(b)
	return hex.EncodeToString(b)
}
