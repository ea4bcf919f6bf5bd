package config

import (
	"os"
	"strconv"
)

// AppConfig holds process-level configuration that sits outside the
// monitor definitions themselves: where to listen, where to export
// telemetry, and how verbosely to log.
type AppConfig struct {
	// Control API
	ListenAddr string
	ListenPort string

	// Monitor config file, before env-var interpolation and YAML parsing
	ConfigFile string

	// Observability Configuration
	OTLPEndpoint   string
	HealthPort     string

	// Service Configuration
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string

	// ShutdownTimeoutSeconds bounds how long graceful shutdown waits
	// for the control and health servers to drain and for the
	// telemetry flush before the process exits anyway. Scheduled
	// monitor runs still in flight are not waited for.
	ShutdownTimeoutSeconds int

	// StrictConfig rejects unknown fields in the monitor YAML file
	// instead of silently ignoring them, useful for catching typos in
	// probe/story definitions during CI.
	StrictConfig bool
}

// Load loads configuration from environment variables with defaults
func Load() *AppConfig {
	return &AppConfig{
		ListenAddr: getEnv("PRODZILLA_LISTEN_ADDR", ""),
		ListenPort: getEnv("PRODZILLA_LISTEN_PORT", "3000"),

		ConfigFile: getEnv("PRODZILLA_CONFIG_FILE", "prodzilla.yml"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317"),
		HealthPort:   getEnv("PRODZILLA_HEALTH_PORT", "8080"),

		ServiceName:    getEnv("SERVICE_NAME", "prodzilla"),
		ServiceVersion: getEnv("SERVICE_VERSION", "0.1.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),

		ShutdownTimeoutSeconds: getEnvAsInt("PRODZILLA_SHUTDOWN_TIMEOUT_SECONDS", 10),
		StrictConfig:           getEnvAsBool("PRODZILLA_STRICT_CONFIG", false),
	}
}

// ListenAddress returns the address the control API binds to.
func (c *AppConfig) ListenAddress() string {
	return c.ListenAddr + ":" + c.ListenPort
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean with a default fallback
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
