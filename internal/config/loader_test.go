package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prodzilla.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMonitorsParsesProbesAndStories(t *testing.T) {
	path := writeConfig(t, `
probes:
  - name: Health check
    url: https://example.com/health
    http_method: GET
    schedule:
      initial_delay: 0
      interval: 60
    expectations:
      - field: StatusCode
        operation: Equals
        value: "200"
stories:
  - name: Checkout flow
    schedule:
      initial_delay: 0
      interval: 300
    steps:
      - name: Login
        url: https://example.com/login
        http_method: POST
`)

	cfg, err := LoadMonitors(discardLogger(), path, false)
	require.NoError(t, err)
	require.Len(t, cfg.Probes, 1)
	assert.Equal(t, "Health check", cfg.Probes[0].Name)
	assert.Equal(t, uint(60), cfg.Probes[0].Schedule.Interval)
	require.Len(t, cfg.Stories, 1)
	assert.Equal(t, "Checkout flow", cfg.Stories[0].Name)
	require.Len(t, cfg.Stories[0].Steps, 1)
	assert.Equal(t, "Login", cfg.Stories[0].Steps[0].Name)
}

func TestLoadMonitorsInterpolatesEnvVars(t *testing.T) {
	t.Setenv("PROBE_HOST", "internal.example.com")
	path := writeConfig(t, `
probes:
  - name: Interpolated
    url: "https://${{ env.PROBE_HOST }}/health"
    http_method: GET
    schedule:
      initial_delay: 0
      interval: 30
`)

	cfg, err := LoadMonitors(discardLogger(), path, false)
	require.NoError(t, err)
	require.Len(t, cfg.Probes, 1)
	assert.Equal(t, "https://internal.example.com/health", cfg.Probes[0].URL)
}

func TestLoadMonitorsMissingEnvVarBecomesEmptyString(t *testing.T) {
	os.Unsetenv("DEFINITELY_NOT_SET")
	path := writeConfig(t, `
probes:
  - name: Missing env
    url: "https://${{ env.DEFINITELY_NOT_SET }}example.com/health"
    http_method: GET
    schedule:
      initial_delay: 0
      interval: 30
`)

	cfg, err := LoadMonitors(discardLogger(), path, false)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/health", cfg.Probes[0].URL)
}

func TestLoadMonitorsMissingFileReturnsConfigError(t *testing.T) {
	_, err := LoadMonitors(discardLogger(), filepath.Join(t.TempDir(), "missing.yml"), false)
	require.Error(t, err)
	var configErr *monitor.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestLoadMonitorsMalformedYAMLReturnsConfigError(t *testing.T) {
	path := writeConfig(t, "probes: [this is not valid: yaml: at all")
	_, err := LoadMonitors(discardLogger(), path, false)
	require.Error(t, err)
	var configErr *monitor.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestLoadMonitorsStrictRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
probes:
  - name: Typo'd field
    url: https://example.com/health
    http_method: GET
    schedule:
      initial_delay: 0
      interval: 60
    expectaitons:
      - field: StatusCode
`)

	_, err := LoadMonitors(discardLogger(), path, true)
	require.Error(t, err)

	cfg, err := LoadMonitors(discardLogger(), path, false)
	require.NoError(t, err)
	require.Len(t, cfg.Probes, 1)
}
