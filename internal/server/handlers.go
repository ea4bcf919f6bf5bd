package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/prodzilla/prodzilla/internal/monitor"
)

// monitorStatus is the shape returned by the listing endpoints: name,
// derived OK/FAILING status, and the tags the monitor carries.
type monitorStatus struct {
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	LastProbed string            `json:"last_probed,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

const (
	statusOK      = "OK"
	statusFailing = "FAILING"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleListProbes(w http.ResponseWriter, r *http.Request) {
	out := make([]monitorStatus, 0, len(s.probes))
	for _, name := range s.sortedProbeNames() {
		probe := s.probes[name]
		out = append(out, monitorStatusFor(name, probe.Tags, probeResultStatus(s.store.LastProbeResult(name))))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	out := make([]monitorStatus, 0, len(s.stories))
	for _, name := range s.sortedStoryNames() {
		story := s.stories[name]
		out = append(out, monitorStatusFor(name, story.Tags, storyResultStatus(s.store.LastStoryResult(name))))
	}
	writeJSON(w, http.StatusOK, out)
}

func monitorStatusFor(name string, tags map[string]string, outcome *resultOutcome) monitorStatus {
	ms := monitorStatus{Name: name, Status: statusOK, Tags: tags}
	if outcome == nil {
		return ms
	}
	ms.LastProbed = outcome.timestamp
	if !outcome.success {
		ms.Status = statusFailing
	}
	return ms
}

type resultOutcome struct {
	success   bool
	timestamp string
}

func probeResultStatus(r *monitor.ProbeResult) *resultOutcome {
	if r == nil {
		return nil
	}
	return &resultOutcome{success: r.Success, timestamp: r.TimestampStarted.Format(timeFormat)}
}

func storyResultStatus(r *monitor.StoryResult) *resultOutcome {
	if r == nil {
		return nil
	}
	return &resultOutcome{success: r.Success, timestamp: r.TimestampStarted.Format(timeFormat)}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func showResponseRequested(r *http.Request) bool {
	return r.URL.Query().Get("show_response") == "true"
}

// reversedProbeResults and reversedStepResults return a reversed copy
// of a chronologically-ordered slice (newest first), matching the
// control API's documented read order.
func reversedProbeResults(results []monitor.ProbeResult) []monitor.ProbeResult {
	out := make([]monitor.ProbeResult, len(results))
	for i, r := range results {
		out[len(results)-1-i] = r
	}
	return out
}

func reversedStepResults(results []monitor.StoryResult) []monitor.StoryResult {
	out := make([]monitor.StoryResult, len(results))
	for i, r := range results {
		out[len(results)-1-i] = r
	}
	return out
}

func (s *Server) handleProbeResults(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.probes[name]; !ok {
		http.NotFound(w, r)
		return
	}

	results := reversedProbeResults(s.store.ProbeResults(name))
	if !showResponseRequested(r) {
		for i := range results {
			results[i].Response = nil
		}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStoryResults(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.stories[name]; !ok {
		http.NotFound(w, r)
		return
	}

	results := reversedStepResults(s.store.StoryResults(name))
	if !showResponseRequested(r) {
		for i := range results {
			for j := range results[i].StepResults {
				results[i].StepResults[j].Response = nil
			}
		}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTriggerProbe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	probe, ok := s.probes[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.runner.RunProbe(r.Context(), probe)
	writeJSON(w, http.StatusOK, s.store.LastProbeResult(name))
}

func (s *Server) handleTriggerStory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	story, ok := s.stories[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.runner.RunStory(r.Context(), story)
	writeJSON(w, http.StatusOK, s.store.LastStoryResult(name))
}

// bulkTriggerRequest selects monitors by an OR of "k:v" tag matches;
// an empty list selects every registered monitor.
type bulkTriggerRequest struct {
	Tags []string `json:"tags"`
}

type bulkTriggerResponse struct {
	TriggeredCount int         `json:"triggered_count"`
	Results        interface{} `json:"results"`
}

func matchesAnyTag(tags map[string]string, selectors []string) bool {
	if len(selectors) == 0 {
		return true
	}
	for _, selector := range selectors {
		k, v, found := strings.Cut(selector, ":")
		if !found {
			continue
		}
		if tags[k] == v {
			return true
		}
	}
	return false
}

func decodeBulkTriggerRequest(r *http.Request) (bulkTriggerRequest, error) {
	var req bulkTriggerRequest
	if r.Body == nil {
		return req, nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return bulkTriggerRequest{}, err
	}
	return req, nil
}

func (s *Server) handleBulkTriggerProbes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeBulkTriggerRequest(r)
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	var selected []*monitor.Probe
	for _, name := range s.sortedProbeNames() {
		probe := s.probes[name]
		if matchesAnyTag(probe.Tags, req.Tags) {
			selected = append(selected, probe)
		}
	}

	results := make([]*monitor.ProbeResult, len(selected))
	var wg sync.WaitGroup
	for i, probe := range selected {
		wg.Add(1)
		go func(i int, probe *monitor.Probe) {
			defer wg.Done()
			s.runner.RunProbe(ctx, probe)
			results[i] = s.store.LastProbeResult(probe.Name)
		}(i, probe)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, bulkTriggerResponse{TriggeredCount: len(selected), Results: results})
}

func (s *Server) handleBulkTriggerStories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeBulkTriggerRequest(r)
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	var selected []*monitor.Story
	for _, name := range s.sortedStoryNames() {
		story := s.stories[name]
		if matchesAnyTag(story.Tags, req.Tags) {
			selected = append(selected, story)
		}
	}

	results := make([]*monitor.StoryResult, len(selected))
	var wg sync.WaitGroup
	for i, story := range selected {
		wg.Add(1)
		go func(i int, story *monitor.Story) {
			defer wg.Done()
			s.runner.RunStory(ctx, story)
			results[i] = s.store.LastStoryResult(story.Name)
		}(i, story)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, bulkTriggerResponse{TriggeredCount: len(selected), Results: results})
}
