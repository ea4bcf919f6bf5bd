package config

import (
	"bytes"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"gopkg.in/yaml.v3"
)

// envRef matches `${{ env.NAME }}` tokens in the raw config text,
// tolerating whitespace around the reference.
var envRef = regexp.MustCompile(`\$\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// MonitorConfig is the top-level shape of the YAML monitor file: a
// list of independently scheduled probes and a list of multi-step
// stories.
type MonitorConfig struct {
	Probes  []monitor.Probe `yaml:"probes"`
	Stories []monitor.Story `yaml:"stories"`
}

// LoadMonitors reads path, substitutes `${{ env.NAME }}` references in
// the raw text against the process environment, and parses the result
// as YAML. With strict set, an unrecognized field in the document is
// a *monitor.ConfigError rather than being silently dropped. Any
// failure is wrapped in a *monitor.ConfigError, the only error type
// allowed to escape startup.
func LoadMonitors(logger *slog.Logger, path string, strict bool) (*MonitorConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &monitor.ConfigError{Path: path, Err: err}
	}

	interpolated := interpolateEnv(logger, string(raw))

	var cfg MonitorConfig
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(interpolated)))
	decoder.KnownFields(strict)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, &monitor.ConfigError{Path: path, Err: err}
	}

	return &cfg, nil
}

// interpolateEnv replaces every `${{ env.NAME }}` token with the
// value of environment variable NAME. A missing variable resolves to
// the empty string and logs a warning, matching the runtime
// substitution engine's degrade-silently contract.
func interpolateEnv(logger *slog.Logger, content string) string {
	return envRef.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(envRef.FindStringSubmatch(match)[1])
		value, ok := os.LookupEnv(name)
		if !ok {
			logger.Warn("environment variable referenced in config is not set", "name", name)
			return ""
		}
		return value
	})
}
