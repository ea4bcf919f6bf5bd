package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prodzilla/prodzilla/internal/alerts"
	"github.com/prodzilla/prodzilla/internal/httpcaller"
	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/observability"
	"github.com/prodzilla/prodzilla/internal/runner"
	"github.com/prodzilla/prodzilla/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newTestServer(t *testing.T, probes []*monitor.Probe, stories []*monitor.Story) (*Server, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	traces := observability.NewTraceManager("server-test")
	metrics, err := observability.NewMetricsManager(noop.NewMeterProvider().Meter("server-test"))
	require.NoError(t, err)
	caller := httpcaller.New(traces)
	dispatcher := alerts.New(logger)
	st := store.New()
	r := runner.New(caller, dispatcher, st, traces, metrics, logger)
	return New(probes, stories, st, r, logger), st
}

func TestHandleRootReturnsRoar(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Roar!", rec.Body.String())
}

func TestHandleTriggerProbeRunsSynchronouslyAndReportsStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	probe := &monitor.Probe{Name: "Health", URL: backend.URL, HTTPMethod: http.MethodGet}
	s, _ := newTestServer(t, []*monitor.Probe{probe}, nil)

	req := httptest.NewRequest(http.MethodGet, "/probes/Health/trigger", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result monitor.ProbeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)

	listReq := httptest.NewRequest(http.MethodGet, "/probes", nil)
	listRec := httptest.NewRecorder()
	s.routes().ServeHTTP(listRec, listReq)

	var statuses []monitorStatus
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "OK", statuses[0].Status)
}

func TestHandleProbeResultsBoundedAndNewestFirst(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	probe := &monitor.Probe{Name: "Repeated", URL: backend.URL, HTTPMethod: http.MethodGet}
	s, st := newTestServer(t, []*monitor.Probe{probe}, nil)

	for i := 0; i < 105; i++ {
		req := httptest.NewRequest(http.MethodGet, "/probes/Repeated/trigger", nil)
		s.routes().ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Len(t, st.ProbeResults("Repeated"), 100)

	req := httptest.NewRequest(http.MethodGet, "/probes/Repeated/results", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var results []monitor.ProbeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 100)
	assert.Nil(t, results[0].Response)
	assert.False(t, results[0].TimestampStarted.Before(results[len(results)-1].TimestampStarted))
}

func TestHandleProbeResultsShowResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer backend.Close()

	probe := &monitor.Probe{Name: "Pingable", URL: backend.URL, HTTPMethod: http.MethodGet}
	s, _ := newTestServer(t, []*monitor.Probe{probe}, nil)

	trigger := httptest.NewRequest(http.MethodGet, "/probes/Pingable/trigger", nil)
	s.routes().ServeHTTP(httptest.NewRecorder(), trigger)

	req := httptest.NewRequest(http.MethodGet, "/probes/Pingable/results?show_response=true", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var results []monitor.ProbeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Response)
	assert.Equal(t, "pong", results[0].Response.Body)
}

func TestHandleBulkTriggerSelectsByAnyMatchingTag(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	prod := &monitor.Probe{Name: "Prod API", URL: backend.URL, HTTPMethod: http.MethodGet, Tags: map[string]string{"env": "prod", "tier": "api"}}
	staging := &monitor.Probe{Name: "Staging API", URL: backend.URL, HTTPMethod: http.MethodGet, Tags: map[string]string{"env": "staging", "tier": "api"}}
	prodWeb := &monitor.Probe{Name: "Prod Web", URL: backend.URL, HTTPMethod: http.MethodGet, Tags: map[string]string{"env": "prod", "tier": "web"}}

	s, _ := newTestServer(t, []*monitor.Probe{prod, staging, prodWeb}, nil)

	body, _ := json.Marshal(bulkTriggerRequest{Tags: []string{"env:prod", "tier:api"}})
	req := httptest.NewRequest(http.MethodPost, "/probes/bulk/trigger", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp bulkTriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TriggeredCount)
}

func TestHandleBulkTriggerEmptyTagsRunsAll(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a := &monitor.Probe{Name: "A", URL: backend.URL, HTTPMethod: http.MethodGet}
	b := &monitor.Probe{Name: "B", URL: backend.URL, HTTPMethod: http.MethodGet}
	s, _ := newTestServer(t, []*monitor.Probe{a, b}, nil)

	req := httptest.NewRequest(http.MethodPost, "/probes/bulk/trigger", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var resp bulkTriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TriggeredCount)
}

func TestHandleTriggerUnknownProbeReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/probes/Missing/trigger", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTriggerStoryRunsAndReportsSteps(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	story := &monitor.Story{
		Name:  "Onboarding",
		Steps: []monitor.Step{{Name: "Signup", URL: backend.URL, HTTPMethod: http.MethodPost}},
	}
	s, _ := newTestServer(t, nil, []*monitor.Story{story})

	req := httptest.NewRequest(http.MethodGet, "/stories/Onboarding/trigger", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result monitor.StoryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Len(t, result.StepResults, 1)
}
