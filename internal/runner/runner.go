// Package runner implements the polymorphic "run one probe / run one
// story" contract: orchestrate substitution, the HTTP call, and
// expectation evaluation, record spans and metrics, write history,
// and fire alerts on failure.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prodzilla/prodzilla/internal/alerts"
	"github.com/prodzilla/prodzilla/internal/httpcaller"
	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/observability"
	"github.com/prodzilla/prodzilla/internal/store"
	"go.opentelemetry.io/otel/trace"
)

// Runner wires together the components a monitor execution needs.
// None of its dependencies are process-wide globals; main owns one
// Runner and hands it to the scheduler.
type Runner struct {
	caller  *httpcaller.Caller
	alerts  *alerts.Dispatcher
	store   *store.Store
	traces  *observability.TraceManager
	metrics *observability.MetricsManager
	logger  *slog.Logger
}

func New(caller *httpcaller.Caller, dispatcher *alerts.Dispatcher, st *store.Store, traces *observability.TraceManager, metrics *observability.MetricsManager, logger *slog.Logger) *Runner {
	return &Runner{
		caller:  caller,
		alerts:  dispatcher,
		store:   st,
		traces:  traces,
		metrics: metrics,
		logger:  logger,
	}
}

// RunProbe executes one probe to completion and appends its result to
// the store. It never returns an error: every failure mode becomes
// part of the recorded ProbeResult.
func (r *Runner) RunProbe(ctx context.Context, p *monitor.Probe) {
	attrs := observability.RunAttributes{Name: p.Name, Type: "probe", Tags: p.Tags}
	r.metrics.IncrementRuns(ctx, attrs)
	timer := r.metrics.StartTimer()
	defer timer(ctx, attrs)

	ctx, span := r.traces.StartMonitorSpan(ctx, p.Name, "probe")
	defer span.End()

	started := time.Now()
	result := monitor.ProbeResult{
		ProbeName:        p.Name,
		TimestampStarted: started,
	}

	endpoint, err := r.caller.Call(ctx, p.HTTPMethod, p.URL, p.With, p.Sensitive)
	if err != nil {
		r.metrics.RecordHTTPStatusCode(ctx, attrs, 0)
		r.traces.RecordError(span, err)
		result.Success = false
		result.ErrorMessage = err.Error()
	} else {
		r.metrics.RecordHTTPStatusCode(ctx, attrs, endpoint.StatusCode)
		result.TraceID = endpoint.TraceID
		result.Response = endpoint.ToProbeResponse()

		if expErr := monitor.Evaluate(endpoint.StatusCode, endpoint.Body, p.Expectations); expErr != nil {
			r.traces.RecordError(span, expErr)
			if p.Sensitive {
				expErr.Body = "Redacted"
			}
			result.Success = false
			result.ErrorMessage = expErr.Verbose()
		} else {
			r.traces.SetSpanSuccess(span)
			result.Success = true
		}
	}

	r.metrics.RecordError(ctx, attrs, !result.Success)
	r.metrics.RecordStatus(ctx, attrs, !result.Success)
	r.logger.Info(fmt.Sprintf("Finished scheduled probe %s, success: %t", p.Name, result.Success))

	if !result.Success {
		for _, alertErr := range r.alerts.DispatchOnFailure(false, alerts.Failure{
			MonitorName:  p.Name,
			ErrorMessage: result.ErrorMessage,
			Response:     result.Response,
			FailureTime:  started,
			TraceID:      result.TraceID,
		}, p.Alerts) {
			r.logger.Warn("alert delivery failed", "probe", p.Name, "error", alertErr)
		}
	}

	r.store.AppendProbeResult(p.Name, result)
}

// RunStory executes a story's steps in order, substituting
// accumulated step variables, and aborts at the first failing step.
// The story's overall success mirrors its last executed step.
func (r *Runner) RunStory(ctx context.Context, s *monitor.Story) {
	attrs := observability.RunAttributes{Name: s.Name, Type: "story", Tags: s.Tags}
	r.metrics.IncrementRuns(ctx, attrs)
	timer := r.metrics.StartTimer()
	defer timer(ctx, attrs)

	ctx, span := r.traces.StartMonitorSpan(ctx, s.Name, "story")
	defer span.End()

	started := time.Now()
	vars := monitor.NewStoryVariables()
	result := monitor.StoryResult{
		StoryName:        s.Name,
		TimestampStarted: started,
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		stepAttrs := observability.RunAttributes{Name: step.Name, Type: "step", Tags: s.Tags}
		stepCtx, stepSpan := r.traces.StartMonitorSpan(ctx, step.Name, "step")

		stepResult := r.runStep(stepCtx, stepSpan, step, vars)
		result.StepResults = append(result.StepResults, stepResult)
		r.metrics.RecordError(ctx, stepAttrs, !stepResult.Success)
		stepSpan.End()

		if !stepResult.Success {
			break
		}
		if stepResult.Response != nil {
			vars.Set(step.Name, stepResult.Response.Body)
		}
	}

	result.Success = len(result.StepResults) > 0 && result.StepResults[len(result.StepResults)-1].Success
	r.metrics.RecordError(ctx, attrs, !result.Success)
	r.metrics.RecordStatus(ctx, attrs, !result.Success)
	r.logger.Info(fmt.Sprintf("Finished scheduled story %s, success: %t", s.Name, result.Success))

	if result.Success {
		r.traces.SetSpanSuccess(span)
	}

	if !result.Success {
		var last monitor.StepResult
		if len(result.StepResults) > 0 {
			last = result.StepResults[len(result.StepResults)-1]
		}
		for _, alertErr := range r.alerts.DispatchOnFailure(false, alerts.Failure{
			MonitorName:  s.Name,
			ErrorMessage: last.ErrorMessage,
			Response:     last.Response,
			FailureTime:  started,
			TraceID:      last.TraceID,
		}, s.Alerts) {
			r.logger.Warn("alert delivery failed", "story", s.Name, "error", alertErr)
		}
	}

	r.store.AppendStoryResult(s.Name, result)
}

// runStep substitutes accumulated story variables into one step's
// request, performs the call, and evaluates its expectations.
func (r *Runner) runStep(ctx context.Context, span trace.Span, step *monitor.Step, vars *monitor.StoryVariables) monitor.StepResult {
	result := monitor.StepResult{
		StepName:         step.Name,
		TimestampStarted: time.Now(),
	}

	url := monitor.Substitute(r.logger, step.URL, vars)
	input := substituteInput(r.logger, step.With, vars)

	endpoint, err := r.caller.Call(ctx, step.HTTPMethod, url, input, step.Sensitive)
	spanCtx := span.SpanContext()
	result.TraceID = spanCtx.TraceID().String()
	result.SpanID = spanCtx.SpanID().String()

	if err != nil {
		r.traces.RecordError(span, err)
		result.Success = false
		result.ErrorMessage = err.Error()
		return result
	}

	result.Response = endpoint.ToProbeResponse()

	if expErr := monitor.Evaluate(endpoint.StatusCode, endpoint.Body, step.Expectations); expErr != nil {
		r.traces.RecordError(span, expErr)
		if step.Sensitive {
			expErr.Body = "Redacted"
		}
		result.Success = false
		result.ErrorMessage = expErr.Verbose()
		return result
	}

	r.traces.SetSpanSuccess(span)
	result.Success = true
	return result
}

// substituteInput applies variable substitution to a step's body and
// every header name and value. A nil input parameter set passes
// through unchanged.
func substituteInput(logger *slog.Logger, with *monitor.InputParameters, vars *monitor.StoryVariables) *monitor.InputParameters {
	if with == nil {
		return nil
	}
	substituted := &monitor.InputParameters{
		Body:           monitor.Substitute(logger, with.Body, vars),
		TimeoutSeconds: with.TimeoutSeconds,
	}
	if with.Headers != nil {
		substituted.Headers = make(map[string]string, len(with.Headers))
		for k, v := range with.Headers {
			name := monitor.Substitute(logger, k, vars)
			substituted.Headers[name] = monitor.Substitute(logger, v, vars)
		}
	}
	return substituted
}
