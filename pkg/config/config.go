// Package config provides unified configuration for the agentbridge server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (AGENTBRIDGE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Runtime identifiers accepted in engine.runtime.
const (
	RuntimeHTTP   = "http"
	RuntimeOpenAI = "openai"
)

// Config holds all configuration for the agentbridge server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`                // default: 8080
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	MaxBodySize       int64         `yaml:"max_body_size"`       // default: 10 MB
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 30s

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// EngineConfig holds agent runtime and bridge settings.
type EngineConfig struct {
	Runtime       string        `yaml:"runtime"`        // "http" or "openai", default: "http"
	BackendURL    string        `yaml:"backend_url"`    // required for runtime http
	APIKey        string        `yaml:"api_key"`        // optional
	APIKeyFile    string        `yaml:"api_key_file"`   // _file variant for api_key
	DefaultModel  string        `yaml:"default_model"`  // optional
	PrimerTimeout time.Duration `yaml:"primer_timeout"` // default: 0 (disabled)
	Timeout       time.Duration `yaml:"timeout"`        // agent runtime request timeout, default: 120s

	// SystemPrompt and AgentName configure the openai runtime.
	SystemPrompt string `yaml:"system_prompt"`
	AgentName    string `yaml:"agent_name"` // default: "assistant"
}

// RateLimitConfig throttles chat completion requests per client address.
// A zero RequestsPerMinute disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"` // default: requests_per_minute
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Format string `yaml:"format"` // "console" or "json", default: "console"
	Debug  string `yaml:"debug"`  // debug categories, comma separated
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"

	// Addr serves metrics on a separate listener when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			MaxBodySize:       10 << 20,
			ShutdownTimeout:   30 * time.Second,
		},
		Engine: EngineConfig{
			Runtime:   RuntimeHTTP,
			Timeout:   120 * time.Second,
			AgentName: "assistant",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "console",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
