// Package httpcaller is the sole place this daemon issues outbound
// probe requests: one entry point that opens a span, propagates trace
// context, enforces a timeout, and buffers the response.
package httpcaller

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "Prodzilla Probe/1.0"
	responseEventBodyLimit = 500
)

// Caller issues one HTTP request per Call, sharing a single
// connection-pooled client the way the teacher's observability layer
// shares a single tracer/meter pair across all call sites.
type Caller struct {
	client *http.Client
	traces *observability.TraceManager
}

func New(traces *observability.TraceManager) *Caller {
	return &Caller{
		client: &http.Client{},
		traces: traces,
	}
}

// Call builds and sends one request, propagating the active trace
// context, and returns a structured EndpointResult. It never returns
// a *monitor.TransportError for a non-2xx status — that is a valid
// response, evaluated later by the expectation evaluator; only
// network/DNS/TLS/timeout failures produce an error here.
func (c *Caller) Call(ctx context.Context, method, url string, input *monitor.InputParameters, sensitive bool) (monitor.EndpointResult, error) {
	ctx, span := c.traces.StartCallSpan(ctx, method, url)
	defer span.End()

	timeout := defaultTimeout
	if input != nil && input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if input != nil && input.Body != "" {
		bodyReader = bytes.NewBufferString(input.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		c.traces.RecordError(span, err)
		return monitor.EndpointResult{}, &monitor.TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	// Propagation headers go on first so user-provided headers can
	// still override anything except the propagation keys themselves.
	propagated := make(map[string]string)
	c.traces.InjectTraceContext(ctx, propagated)
	for k, v := range propagated {
		req.Header.Set(k, v)
	}
	if input != nil {
		for k, v := range input.Headers {
			if _, isPropagation := propagated[k]; isPropagation {
				continue
			}
			req.Header.Set(k, v)
		}
	}

	requestStarted := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.traces.RecordError(span, err)
		return monitor.EndpointResult{}, &monitor.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		c.traces.RecordError(span, err)
		return monitor.EndpointResult{}, &monitor.TransportError{URL: url, Err: err}
	}
	responseReceived := time.Now()
	body := string(bodyBytes)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !sensitive {
		c.traces.AddSpanEvent(span, "response", attribute.String("body", firstScalars(body, responseEventBodyLimit)))
	}
	c.traces.SetSpanSuccess(span)

	spanCtx := span.SpanContext()
	return monitor.EndpointResult{
		TimestampRequestStarted:   requestStarted,
		TimestampResponseReceived: responseReceived,
		StatusCode:                resp.StatusCode,
		Body:                      body,
		TraceID:                   spanCtx.TraceID().String(),
		SpanID:                    spanCtx.SpanID().String(),
		Sensitive:                 sensitive,
	}, nil
}

func firstScalars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
