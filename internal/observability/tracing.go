package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type TraceManager struct {
	tracer trace.Tracer
}

func NewTraceManager(serviceName string) *TraceManager {
	return &TraceManager{
		tracer: otel.Tracer(serviceName),
	}
}

func (tm *TraceManager) InjectTraceContext(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// StartMonitorSpan opens the root span for one probe or story
// execution, named after the monitor itself.
func (tm *TraceManager) StartMonitorSpan(ctx context.Context, monitorName, monitorType string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, monitorName, trace.WithAttributes(
		attribute.String("prodzilla.monitor.type", monitorType),
	))
}

// StartCallSpan opens the span for a single HTTP call, named per W3C
// semantic convention as "<METHOD> <URL>".
func (tm *TraceManager) StartCallSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, method+" "+url, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	))
}

func (tm *TraceManager) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(1, err.Error()) // Error status
	}
}

func (tm *TraceManager) SetSpanSuccess(span trace.Span) {
	span.SetStatus(2, "") // OK status
}

// AddSpanEvent adds a timestamped event to a span for tracking processing steps
func (tm *TraceManager) AddSpanEvent(span trace.Span, eventName string, attributes ...attribute.KeyValue) {
	span.AddEvent(eventName, trace.WithAttributes(attributes...))
}

// AddComponentAttribute adds a component identifier to a span
func (tm *TraceManager) AddComponentAttribute(span trace.Span, component string) {
	span.SetAttributes(attribute.String("prodzilla.component", component))
}
