package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsManager owns the metric instruments the monitor runner emits
// on every probe, story, and step execution.
type MetricsManager struct {
	meter metric.Meter

	runs           metric.Int64Counter
	errors         metric.Int64Counter
	duration       metric.Float64Histogram
	status         metric.Int64Gauge
	httpStatusCode metric.Int64Gauge
}

// RunAttributes is the attribute set every metric carries:
// {name, type, ...tags}.
type RunAttributes struct {
	Name string
	Type string // "probe", "story", or "step"
	Tags map[string]string
}

func (a RunAttributes) keyValues() []attribute.KeyValue {
	kv := make([]attribute.KeyValue, 0, 2+len(a.Tags))
	kv = append(kv, attribute.String("name", a.Name), attribute.String("type", a.Type))
	for k, v := range a.Tags {
		kv = append(kv, attribute.String(k, v))
	}
	return kv
}

func NewMetricsManager(meter metric.Meter) (*MetricsManager, error) {
	mm := &MetricsManager{meter: meter}

	var err error
	mm.runs, err = meter.Int64Counter(
		"runs",
		metric.WithDescription("Total number of monitor executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.errors, err = meter.Int64Counter(
		"errors",
		metric.WithDescription("Monitor executions that failed (0 recorded on success, to keep the series continuous)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.duration, err = meter.Float64Histogram(
		"duration",
		metric.WithDescription("Monitor execution duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	mm.status, err = meter.Int64Gauge(
		"status",
		metric.WithDescription("Current monitor health: 0 OK, 1 Error"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.httpStatusCode, err = meter.Int64Gauge(
		"http_status_code",
		metric.WithDescription("Observed HTTP status code, or 0 on transport failure"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

func (mm *MetricsManager) IncrementRuns(ctx context.Context, attrs RunAttributes) {
	mm.runs.Add(ctx, 1, metric.WithAttributes(attrs.keyValues()...))
}

// RecordError increments the errors counter with an explicit 0 or 1,
// per spec: the value-0 increment on success keeps the time series
// continuous instead of leaving gaps between failures.
func (mm *MetricsManager) RecordError(ctx context.Context, attrs RunAttributes, failed bool) {
	v := int64(0)
	if failed {
		v = 1
	}
	mm.errors.Add(ctx, v, metric.WithAttributes(attrs.keyValues()...))
}

func (mm *MetricsManager) RecordDuration(ctx context.Context, attrs RunAttributes, d time.Duration) {
	mm.duration.Record(ctx, float64(d.Microseconds())/1000.0, metric.WithAttributes(attrs.keyValues()...))
}

func (mm *MetricsManager) RecordStatus(ctx context.Context, attrs RunAttributes, failed bool) {
	v := int64(0)
	if failed {
		v = 1
	}
	mm.status.Record(ctx, v, metric.WithAttributes(attrs.keyValues()...))
}

func (mm *MetricsManager) RecordHTTPStatusCode(ctx context.Context, attrs RunAttributes, code int) {
	mm.httpStatusCode.Record(ctx, int64(code), metric.WithAttributes(attrs.keyValues()...))
}

// StartTimer returns a closure that records the elapsed time against
// duration when invoked, following the teacher's start/defer idiom.
func (mm *MetricsManager) StartTimer() func(ctx context.Context, attrs RunAttributes) {
	start := time.Now()
	return func(ctx context.Context, attrs RunAttributes) {
		mm.RecordDuration(ctx, attrs, time.Since(start))
	}
}
