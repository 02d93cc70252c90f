package telemetry

import "fmt"

// Config holds the telemetry configuration for a reconciliation run.
type Config struct {
	// ServiceName identifies the service in traces and metrics.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the build version.
	ServiceVersion string `yaml:"service_version"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures span export.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics configures the Prometheus registry.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// Format is "console" or "json".
	Format string `yaml:"format" env:"LOG_FORMAT"`

	// Output is "stdout", "stderr", or a file path.
	Output string `yaml:"output" env:"LOG_OUTPUT"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled controls whether spans are exported at all.
	Enabled bool `yaml:"enabled" env:"TRACE_ENABLED"`

	// Exporter is "stdout", "otlp", or "none".
	Exporter string `yaml:"exporter" env:"TRACE_EXPORTER"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint" env:"TRACE_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" env:"TRACE_INSECURE"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`
}

// DefaultConfig returns the defaults for an interactive CLI run.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "hostconform",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
			Insecure: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hostconform",
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	switch c.Tracing.Exporter {
	case "", "stdout", "otlp", "none":
	default:
		return fmt.Errorf("invalid trace exporter: %q", c.Tracing.Exporter)
	}
	return nil
}
