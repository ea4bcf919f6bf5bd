// Package alerts fans out a failing monitor result to every
// configured alert target, shaping the payload per provider.
package alerts

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prodzilla/prodzilla/internal/monitor"
)

const (
	timeout   = 10 * time.Second
	userAgent = "Prodzilla Alert/1.0"
	bodyTruncationLimit = 500
)

// Dispatcher POSTs a shaped failure payload to every configured alert
// target, collecting per-target errors instead of stopping at the
// first one.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Failure is everything a dispatch needs to know about the run that
// triggered it.
type Failure struct {
	MonitorName  string
	ErrorMessage string
	Response     *monitor.ProbeResponse
	FailureTime  time.Time
	TraceID      string
}

// DispatchOnFailure sends one payload per alert target if success is
// false; it is a no-op on success, matching the runner's contract
// that alerts never fire for a passing run.
func (d *Dispatcher) DispatchOnFailure(success bool, failure Failure, targets []monitor.Alert) []error {
	if success {
		return nil
	}

	d.logWarning(failure)

	var errs []error
	for _, target := range targets {
		if err := d.send(target.URL, failure); err != nil {
			errs = append(errs, &monitor.AlertError{URL: target.URL, Err: err})
		}
	}
	return errs
}

func (d *Dispatcher) logWarning(f Failure) {
	body := ""
	if f.Response != nil {
		body = redactedBody(f.Response)
	}
	d.logger.Warn("monitor failed",
		"name", f.MonitorName,
		"error", f.ErrorMessage,
		"body", body,
	)
}

func (d *Dispatcher) send(url string, f Failure) error {
	payload, contentType := buildPayload(url, f)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode}
	}
	return nil
}

// provider picks the payload shape by inspecting the alert URL's
// host, following spec.md's host-based routing table.
func provider(rawURL string) string {
	host := hostOf(rawURL)
	switch {
	case host == "hooks.slack.com":
		return "slack"
	case host == "discord.com" || host == "discordapp.com":
		return "discord"
	default:
		return "generic"
	}
}

func hostOf(rawURL string) string {
	trimmed := strings.TrimPrefix(rawURL, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	if idx := strings.IndexAny(trimmed, "/?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func buildPayload(url string, f Failure) ([]byte, string) {
	switch provider(url) {
	case "slack":
		b, _ := json.Marshal(slackPayload(f))
		return b, "application/json"
	case "discord":
		b, _ := json.Marshal(discordPayload(f))
		return b, "application/json"
	default:
		b, _ := json.Marshal(genericPayload(f))
		return b, "application/json"
	}
}

func redactedBody(r *monitor.ProbeResponse) string {
	if r.Sensitive {
		return "Redacted"
	}
	return truncate(r.Body, bodyTruncationLimit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return "alert target responded with status " + strconv.Itoa(e.status)
}
