// Package observability wires OpenTelemetry tracing and metrics, a
// buffered structured-logging slog.Handler, and a standalone
// health/metrics HTTP server for the monitoring daemon.
//
// NewObservability builds the tracer, meter, and logger from a single
// Config; TraceManager and MetricsManager wrap the tracer and meter
// with the span shapes and metric instruments the monitor runner
// needs (see internal/runner). HealthServer exposes /health, /ready,
// and /metrics on a port separate from the control API.
package observability
