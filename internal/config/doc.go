// Package config loads process-level configuration from environment
// variables: where the control API listens, where telemetry is
// exported, and which monitor config file to load.
//
// All fields have defaults, so the daemon runs with zero configuration.
// Monitor definitions (probes/stories) are a separate concern, loaded
// by internal/config.LoadMonitors from the YAML file named here.
package config
