package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one manager operation.
type OperationStats struct {
	Calls       int64     `json:"calls"`
	Failures    int64     `json:"failures"`
	TotalMS     float64   `json:"total_ms"`
	MaxMS       float64   `json:"max_ms"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// ExpvarMetricsSnapshot is a point-in-time copy of an ExpvarMetricsRecorder.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps per-operation stats and publishes them as an expvar.Func.
type ExpvarMetricsRecorder struct {
	name  string
	clock Clock

	mu  sync.Mutex
	ops map[string]*OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a generated
// vivarium_manager_metrics_N name when name is empty. Publishing the same name twice panics,
// as expvar.Publish does.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("vivarium_manager_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, clock: ClockFunc(time.Now), ops: map[string]*OperationStats{}}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name is the expvar key.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, stats := range r.ops {
		ops[op] = *stats
	}
	return ExpvarMetricsSnapshot{Operations: ops, RecordedAt: r.clock.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.ops[operation]
	if !ok {
		stats = &OperationStats{}
		r.ops[operation] = stats
	}
	stats.Calls++
	stats.TotalMS += ms
	stats.MaxMS = max(stats.MaxMS, ms)
	if !success {
		stats.Failures++
		stats.LastFailure = r.clock.Now().UTC()
	}
}

// PrometheusMetricsRecorder exports operation counts and latencies as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the recorder's collectors with reg. A nil registerer
// uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vivarium",
			Subsystem: "manager",
			Name:      "operations_total",
			Help:      "Facility manager operations by outcome.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vivarium",
			Subsystem: "manager",
			Name:      "operation_duration_seconds",
			Help:      "Facility manager operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.operations, rec.latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register prometheus collector: %w", err)
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// MultiMetricsRecorder fans observations out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

// JSONTraceEntry is one finished span. ParentID links spans started from a context that
// already carried a span from the same tracer.
type JSONTraceEntry struct {
	SpanID     string    `json:"span_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them for Entries.
type JSONTraceTracer struct {
	clock Clock
	newID func() string

	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

type spanContextKey struct{}

// NewJSONTracer writes spans to w, which may be nil. A nil clock uses the system clock.
func NewJSONTracer(w io.Writer, clock Clock) *JSONTraceTracer {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	t := &JSONTraceTracer{clock: clock, newID: uuid.NewString}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the finished spans in end order.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{tracer: t, id: t.newID(), operation: operation, started: t.clock.Now().UTC()}
	if parent, ok := ctx.Value(spanContextKey{}).(*jsonTraceSpan); ok && parent.tracer == t {
		span.parentID = parent.id
	}
	return context.WithValue(ctx, spanContextKey{}, span), span
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	id        string
	parentID  string
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *jsonTraceSpan) End(err error) {
	if s.ended.Swap(true) {
		return
	}
	ended := s.tracer.clock.Now().UTC()
	entry := JSONTraceEntry{
		SpanID:     s.id,
		ParentID:   s.parentID,
		Operation:  s.operation,
		Status:     string(AuditStatusSuccess),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = string(AuditStatusError)
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
