// Package observability provides lightweight request tracing and the
// Prometheus metric set AMAS exposes at /metrics: native-accelerator call
// outcomes, circuit breaker state, reward processing, and HTTP request
// counts.
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Trace Spans — lightweight span tracking without an external OTel SDK ──

// SpanKind classifies a span.
type SpanKind int

const (
	SpanInternal SpanKind = iota
	SpanServer
	SpanClient
)

// Span represents a unit of work within a request trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Kind      SpanKind          `json:"kind"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer stores recent spans in a bounded ring buffer for inspection; it
// does not export to an external collector.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a new span with the given operation name. Callers
// invoke EndSpan when the operation completes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}

	span := &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    generateID(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		Kind:      SpanInternal,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}

	return span
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans, at most limit of them.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}

	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "amas-trace-id"
	spanIDKey  contextKey = "amas-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// generateID creates a short unique ID; not cryptographically secure, fine
// for correlating log lines and spans.
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus metrics (spec §6.7)
// ═══════════════════════════════════════════════════════════════════════════

// ─── Native Accelerator Metrics ─────────────────────────────────────────────

// NativeCallTotal tracks native-vs-fallback dispatch outcomes by operation
// and route taken.
var NativeCallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "amas",
	Subsystem: "native",
	Name:      "call_total",
	Help:      "Total smart-router dispatches by operation, route, and outcome.",
}, []string{"operation", "route", "outcome"})

// NativeCallDurationMS tracks native/fallback call latency by operation
// and route.
var NativeCallDurationMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "amas",
	Subsystem: "native",
	Name:      "call_duration_ms",
	Help:      "Smart-router dispatch latency in milliseconds.",
	Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
}, []string{"operation", "route"})

// CircuitBreakerState tracks each operation's breaker state.
var CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "amas",
	Subsystem: "circuit_breaker",
	Name:      "state",
	Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
}, []string{"operation"})

// ─── Reward Pipeline Metrics ─────────────────────────────────────────────────

// RewardProcessedTotal tracks reward applications by resulting status.
var RewardProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "amas",
	Subsystem: "reward",
	Name:      "processed_total",
	Help:      "Total reward queue items processed by resulting status.",
}, []string{"status"})

// RewardProcessingDurationSeconds tracks time spent applying one reward,
// from dequeue to persistence.
var RewardProcessingDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "amas",
	Subsystem: "reward",
	Name:      "processing_duration_seconds",
	Help:      "Time spent applying one reward queue item.",
	Buckets:   prometheus.DefBuckets,
})

// ─── HTTP Metrics ────────────────────────────────────────────────────────────

// HTTPRequestsTotal tracks requests served by route, method, and status
// class.
var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "amas",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests served by route, method, and status class.",
}, []string{"route", "method", "status"})

// HTTPRequests5xxTotal tracks server-error responses by route, for
// alerting on a narrower series than the method and status-class labels
// of HTTPRequestsTotal.
var HTTPRequests5xxTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "amas",
	Subsystem: "http",
	Name:      "requests_5xx_total",
	Help:      "Total HTTP 5xx responses by route.",
}, []string{"route"})

// HTTPRequestDurationSeconds tracks end-to-end handler latency by route.
var HTTPRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "amas",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP handler latency in seconds by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})
