package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/NTGClarityPK/ntg-rms-v2-sub007/observability"

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartStoreSpan starts a span for local store operations
func StartStoreSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("Store %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartSyncSpan starts a span for sync pipeline operations
func StartSyncSpan(ctx context.Context, component, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", component, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sync.component", component),
			attribute.String("sync.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SyncMetrics holds queue delivery metrics. A nil *SyncMetrics is valid and
// records nothing, so wiring metrics stays optional in tests.
type SyncMetrics struct {
	pushDuration  metric.Float64Histogram
	pushCount     metric.Int64Counter
	conflictCount metric.Int64Counter
	queueDepth    metric.Int64Gauge
}

// NewSyncMetrics creates sync metrics instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	pushDuration, err := meter.Float64Histogram(
		"sync.push.duration",
		metric.WithDescription("Queue entry push duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	pushCount, err := meter.Int64Counter(
		"sync.push.count",
		metric.WithDescription("Total number of queue entry pushes"),
	)
	if err != nil {
		return nil, err
	}

	conflictCount, err := meter.Int64Counter(
		"sync.conflict.count",
		metric.WithDescription("Total number of surfaced sync conflicts"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge(
		"sync.queue.depth",
		metric.WithDescription("Pending entries in the sync queue"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		pushDuration:  pushDuration,
		pushCount:     pushCount,
		conflictCount: conflictCount,
		queueDepth:    queueDepth,
	}, nil
}

// RecordPush records one delivery attempt outcome
func (m *SyncMetrics) RecordPush(ctx context.Context, table, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	)
	m.pushCount.Add(ctx, 1, attrs)
	m.pushDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordConflict records one surfaced conflict
func (m *SyncMetrics) RecordConflict(ctx context.Context, table, kind string) {
	if m == nil {
		return
	}
	m.conflictCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("kind", kind),
	))
}

// QueueDepth records the observed queue depth at drain time
func (m *SyncMetrics) QueueDepth(ctx context.Context, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Record(ctx, depth)
}
