package alerts

import "fmt"

// genericWebhook is the plain JSON payload sent to any alert target
// whose host isn't a recognized provider. Optional fields are omitted
// entirely when absent, not sent as null.
type genericWebhook struct {
	Message          string `json:"message"`
	ProbeName        string `json:"probe_name"`
	ErrorMessage     string `json:"error_message"`
	FailureTimestamp string `json:"failure_timestamp"`
	TraceID          string `json:"trace_id,omitempty"`
	StatusCode       int    `json:"status_code,omitempty"`
	Body             string `json:"body,omitempty"`
}

func genericPayload(f Failure) genericWebhook {
	p := genericWebhook{
		Message:          "Probe failed.",
		ProbeName:        f.MonitorName,
		ErrorMessage:     f.ErrorMessage,
		FailureTimestamp: f.FailureTime.Format("2006-01-02T15:04:05Z07:00"),
		TraceID:          f.TraceID,
	}
	if f.Response != nil {
		p.StatusCode = f.Response.StatusCode
		p.Body = redactedBody(f.Response)
	}
	return p
}

// Slack Block Kit payload: header + error section + optional
// status/body section + a context footer carrying the timestamp and
// trace ID.
type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string          `json:"type"`
	Text     *slackText      `json:"text,omitempty"`
	Elements []slackText     `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func slackPayload(f Failure) slackMessage {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Probe failed: %s", f.MonitorName)},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Error:* %s", f.ErrorMessage)},
		},
	}

	if f.Response != nil {
		blocks = append(blocks,
			slackBlock{Type: "divider"},
			slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Status code:* %d\n*Body:* %s", f.Response.StatusCode, redactedBody(f.Response))},
			},
		)
	}

	footer := fmt.Sprintf("Failed at %s", f.FailureTime.Format("2006-01-02T15:04:05Z07:00"))
	if f.TraceID != "" {
		footer += fmt.Sprintf(" | Trace ID: %s", f.TraceID)
	}
	blocks = append(blocks, slackBlock{
		Type:     "context",
		Elements: []slackText{{Type: "mrkdwn", Text: footer}},
	})

	return slackMessage{Blocks: blocks}
}

// discordPayload is the supplemented third provider: a single
// fenced-code-block message, matching the shape
// original_source/src/alerts/integrations/discord.rs sends.
type discordMessage struct {
	Content string `json:"content"`
}

func discordPayload(f Failure) discordMessage {
	content := fmt.Sprintf(
		"```%s | Probe failed\nProbe Name: %s\nError: %s\nFailure Timestamp: %s```",
		f.MonitorName, f.MonitorName, f.ErrorMessage, f.FailureTime.Format("2006-01-02T15:04:05Z07:00"),
	)
	return discordMessage{Content: content}
}
