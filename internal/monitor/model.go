// Package monitor holds the declarative data model shared by every
// probe and story, the expectation evaluator, and the cross-step
// variable substitutor.
package monitor

import "time"

// ExpectField names the part of an HTTP response an expectation is
// evaluated against.
type ExpectField string

const (
	FieldBody       ExpectField = "Body"
	FieldStatusCode ExpectField = "StatusCode"
)

// ExpectOperation names the comparison an expectation performs.
type ExpectOperation string

const (
	OpEquals      ExpectOperation = "Equals"
	OpNotEquals   ExpectOperation = "NotEquals"
	OpContains    ExpectOperation = "Contains"
	OpNotContains ExpectOperation = "NotContains"
	OpIsOneOf     ExpectOperation = "IsOneOf"
	OpMatches     ExpectOperation = "Matches"
)

// Expectation is a single declarative predicate against a response.
type Expectation struct {
	Field     ExpectField     `yaml:"field" json:"field"`
	Operation ExpectOperation `yaml:"operation" json:"operation"`
	Value     string          `yaml:"value" json:"value"`
}

// InputParameters carries the request-shaping fields a probe or step
// may set: headers, a body, and an optional per-request timeout.
type InputParameters struct {
	Headers        map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body           string            `yaml:"body,omitempty" json:"body,omitempty"`
	TimeoutSeconds uint              `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// Schedule is the periodic-execution policy of a probe or story.
type Schedule struct {
	InitialDelay uint `yaml:"initial_delay" json:"initial_delay"`
	Interval     uint `yaml:"interval" json:"interval"`
}

// Alert is an outbound notification target. The delivery provider is
// inferred from the URL's host at dispatch time.
type Alert struct {
	URL string `yaml:"url" json:"url"`
}

// Step is one element of a Story: shaped like a Probe minus the
// fields that only make sense for a standalone, independently
// scheduled monitor.
type Step struct {
	Name         string            `yaml:"name" json:"name"`
	URL          string            `yaml:"url" json:"url"`
	HTTPMethod   string            `yaml:"http_method" json:"http_method"`
	With         *InputParameters  `yaml:"with,omitempty" json:"with,omitempty"`
	Expectations []Expectation     `yaml:"expectations,omitempty" json:"expectations,omitempty"`
	Sensitive    bool              `yaml:"sensitive,omitempty" json:"sensitive,omitempty"`
}

// Probe is a single, independently scheduled HTTP check.
type Probe struct {
	Name         string            `yaml:"name" json:"name"`
	URL          string            `yaml:"url" json:"url"`
	HTTPMethod   string            `yaml:"http_method" json:"http_method"`
	With         *InputParameters  `yaml:"with,omitempty" json:"with,omitempty"`
	Expectations []Expectation     `yaml:"expectations,omitempty" json:"expectations,omitempty"`
	Schedule     Schedule          `yaml:"schedule" json:"schedule"`
	Alerts       []Alert           `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Sensitive    bool              `yaml:"sensitive,omitempty" json:"sensitive,omitempty"`
	Tags         map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Story is an ordered sequence of steps that pass state to each other
// via variable substitution, scheduled and alerted on as a unit.
type Story struct {
	Name     string            `yaml:"name" json:"name"`
	Steps    []Step            `yaml:"steps" json:"steps"`
	Schedule Schedule          `yaml:"schedule" json:"schedule"`
	Alerts   []Alert           `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// GetName, GetSchedule and GetTags give the scheduler and runner a closed
// contract over the two monitor kinds, following the "tagged variant"
// choice in favor of an open interface (see design notes: the set of
// kinds — probe, story — is closed and will not grow at runtime).
func (p *Probe) GetName() string       { return p.Name }
func (p *Probe) GetSchedule() Schedule { return p.Schedule }
func (p *Probe) GetTags() map[string]string { return p.Tags }

func (s *Story) GetName() string       { return s.Name }
func (s *Story) GetSchedule() Schedule { return s.Schedule }
func (s *Story) GetTags() map[string]string { return s.Tags }

// EndpointResult is the transient outcome of one HTTP call, returned
// by the HTTP caller and never persisted on its own.
type EndpointResult struct {
	TimestampRequestStarted  time.Time `json:"timestamp_request_started"`
	TimestampResponseReceived time.Time `json:"timestamp_response_received"`
	StatusCode               int       `json:"status_code"`
	Body                     string    `json:"body"`
	TraceID                  string    `json:"trace_id"`
	SpanID                   string    `json:"span_id"`
	Sensitive                bool      `json:"sensitive"`
}

// ProbeResponse is the persisted, redaction-aware view of an
// EndpointResult embedded in a ProbeResult or StepResult.
type ProbeResponse struct {
	TimestampReceived time.Time `json:"timestamp_received"`
	StatusCode        int       `json:"status_code"`
	Body              string    `json:"body"`
	Sensitive         bool      `json:"sensitive,omitempty"`
}

// ToProbeResponse narrows a transient EndpointResult into the
// persisted ProbeResponse shape embedded in a ProbeResult or
// StepResult.
func (e EndpointResult) ToProbeResponse() *ProbeResponse {
	return &ProbeResponse{
		TimestampReceived: e.TimestampResponseReceived,
		StatusCode:        e.StatusCode,
		Body:              e.Body,
		Sensitive:         e.Sensitive,
	}
}

// ProbeResult is the persisted outcome of one probe execution.
type ProbeResult struct {
	ProbeName        string         `json:"probe_name"`
	TimestampStarted time.Time      `json:"timestamp_started"`
	Success          bool           `json:"success"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Response         *ProbeResponse `json:"response,omitempty"`
	TraceID          string         `json:"trace_id,omitempty"`
}

// StepResult is the persisted outcome of one story step, identical in
// shape to ProbeResult plus the span ID of the step's own span.
type StepResult struct {
	StepName         string         `json:"step_name"`
	TimestampStarted time.Time      `json:"timestamp_started"`
	Success          bool           `json:"success"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Response         *ProbeResponse `json:"response,omitempty"`
	TraceID          string         `json:"trace_id,omitempty"`
	SpanID           string         `json:"span_id,omitempty"`
}

// StoryResult is the persisted outcome of one story execution. Success
// mirrors the last executed step; a story that aborts early carries
// fewer step results than it has steps.
type StoryResult struct {
	StoryName        string       `json:"story_name"`
	TimestampStarted time.Time    `json:"timestamp_started"`
	Success          bool         `json:"success"`
	StepResults      []StepResult `json:"step_results"`
}
