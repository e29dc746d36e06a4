package tracing

import (
	"context"
	"hash/fnv"

	"github.com/nepal-guide-hub/discovery/pkg/config"
)

// Tracer decides which requests get their span tree logged. Spans are always
// built so callers never branch on sampling; unsampled trees are discarded.
type Tracer struct {
	enabled bool
	rate    float64
}

func NewTracer(cfg config.TracingConfig) *Tracer {
	return &Tracer{enabled: cfg.Enabled, rate: cfg.SampleRate}
}

// Start opens the root span of a request.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	return StartSpan(ctx, name, traceID)
}

// Finish ends the root span and logs the tree when the trace is sampled.
func (t *Tracer) Finish(span *Span) {
	span.End()
	if t.Sampled(span.TraceID) {
		span.Log()
	}
}

// Sampled reports whether traceID falls inside the sample rate. The decision
// is a hash of the id, so every service agrees on it.
func (t *Tracer) Sampled(traceID string) bool {
	if t == nil || !t.enabled || t.rate <= 0 {
		return false
	}
	if t.rate >= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(traceID))
	return float64(h.Sum32())/float64(^uint32(0)) < t.rate
}
