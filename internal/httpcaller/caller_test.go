package httpcaller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newTestCaller installs a recording tracer provider and the W3C trace
// context propagator as the otel globals, which the caller reads; in
// the daemon, observability.NewObservability installs them.
func newTestCaller() *Caller {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return New(observability.NewTraceManager("httpcaller-test"))
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Traceparent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	result, err := newTestCaller().Call(context.Background(), http.MethodGet, srv.URL, nil, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "ok", result.Body)
	assert.NotEmpty(t, result.TraceID)
}

func TestCallRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	params := &monitor.InputParameters{TimeoutSeconds: 1}
	_, err := newTestCaller().Call(context.Background(), http.MethodGet, srv.URL, params, false)
	require.NoError(t, err)
}

func TestCallPostWithBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		assert.Equal(t, `{"x":1}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	input := &monitor.InputParameters{
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    `{"x":1}`,
	}
	result, err := newTestCaller().Call(context.Background(), http.MethodPost, srv.URL, input, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
}

func TestCallNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result, err := newTestCaller().Call(context.Background(), http.MethodGet, srv.URL, nil, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestCallTransportErrorOnUnreachableHost(t *testing.T) {
	_, err := newTestCaller().Call(context.Background(), http.MethodGet, "http://127.0.0.1:1", nil, false)
	require.Error(t, err)
	var transportErr *monitor.TransportError
	assert.ErrorAs(t, err, &transportErr)
}
