package monitor

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// subRegex matches `${{ <anything> }}` references, non-greedily, so
// multiple references in one string are each substituted in turn.
var subRegex = regexp.MustCompile(`\$\{\{(.*?)\}\}`)

// StepVariables is what a completed story step contributes to later
// steps: its raw response body.
type StepVariables struct {
	ResponseBody string
}

// StoryVariables accumulates StepVariables across a single story run,
// keyed by step name. It is intentionally populated with the
// unredacted body even for sensitive steps — substitution needs the
// real value to chain requests; only outbound surfaces redact.
type StoryVariables struct {
	Steps map[string]StepVariables
}

func NewStoryVariables() *StoryVariables {
	return &StoryVariables{Steps: make(map[string]StepVariables)}
}

func (v *StoryVariables) Set(stepName, responseBody string) {
	v.Steps[stepName] = StepVariables{ResponseBody: responseBody}
}

// Substitute replaces every `${{ ... }}` reference in content. Unknown
// references resolve to the empty string and log a warning; they
// never fail the caller.
func Substitute(logger *slog.Logger, content string, vars *StoryVariables) string {
	return subRegex.ReplaceAllStringFunc(content, func(match string) string {
		path := strings.TrimSpace(subRegex.FindStringSubmatch(match)[1])
		segments := strings.Split(path, ".")
		if len(segments) == 0 {
			return ""
		}

		switch segments[0] {
		case "steps":
			return substituteStepValue(logger, segments, vars)
		case "generate":
			return generatedValue(logger, segments)
		default:
			logger.Warn("unknown variable namespace", "path", path)
			return ""
		}
	})
}

func generatedValue(logger *slog.Logger, segments []string) string {
	if len(segments) >= 2 && segments[1] == "uuid" {
		return uuid.New().String()
	}
	logger.Warn("unknown generate target", "path", strings.Join(segments, "."))
	return ""
}

// substituteStepValue resolves `steps.<name>.response.body[.path...]`.
// With no trailing path it returns the raw body; otherwise the body is
// parsed as JSON and the remaining segments are traversed as object
// keys.
func substituteStepValue(logger *slog.Logger, segments []string, vars *StoryVariables) string {
	if len(segments) < 4 {
		logger.Warn("malformed steps reference", "path", strings.Join(segments, "."))
		return ""
	}
	stepName := segments[1]
	step, ok := vars.Steps[stepName]
	if !ok {
		logger.Warn("reference to unknown or not-yet-completed step", "step", stepName)
		return ""
	}

	// segments[2:4] is "response.body"; anything past that is a JSON path.
	if len(segments) == 4 {
		return step.ResponseBody
	}

	return nestedJSONValue(logger, step.ResponseBody, segments[4:])
}

// nestedJSONValue parses raw as JSON and traverses path as a sequence
// of object keys. A string leaf returns its raw text; any other value
// is re-serialized as JSON.
func nestedJSONValue(logger *slog.Logger, raw string, path []string) string {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		logger.Warn("step response body is not valid JSON", "error", err)
		return ""
	}

	for _, key := range path {
		obj, ok := value.(map[string]interface{})
		if !ok {
			logger.Warn("cannot traverse into non-object JSON value", "key", key)
			return ""
		}
		next, ok := obj[key]
		if !ok {
			logger.Warn("JSON key not found in step response", "key", key)
			return ""
		}
		value = next
	}

	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Warn("failed to serialize resolved JSON value", "error", err)
		return ""
	}
	return string(encoded)
}
