package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.MaxBodySize != 10<<20 {
		t.Errorf("default server.max_body_size = %d, want 10MB", cfg.Server.MaxBodySize)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("default server.shutdown_timeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Engine.Runtime != RuntimeHTTP {
		t.Errorf("default engine.runtime = %q, want %q", cfg.Engine.Runtime, RuntimeHTTP)
	}
	if cfg.Engine.PrimerTimeout != 0 {
		t.Errorf("default engine.primer_timeout = %v, want 0", cfg.Engine.PrimerTimeout)
	}
	if cfg.Engine.Timeout != 120*time.Second {
		t.Errorf("default engine.timeout = %v, want 120s", cfg.Engine.Timeout)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("default logging.format = %q, want \"console\"", cfg.Logging.Format)
	}
	if cfg.Server.RateLimit.RequestsPerMinute != 0 {
		t.Errorf("default rate limit = %d, want disabled", cfg.Server.RateLimit.RequestsPerMinute)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v, want enabled on /metrics", cfg.Observability.Metrics)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
  max_body_size: 1024
  shutdown_timeout: 5s
  rate_limit:
    requests_per_minute: 120
    burst: 10
engine:
  runtime: openai
  backend_url: http://localhost:4000/v1
  api_key: sk-test-key
  default_model: gpt-4o
  primer_timeout: 15s
  system_prompt: You are terse.
  agent_name: helper
logging:
  level: DEBUG
  format: json
  debug: bridge,transport
observability:
  metrics:
    enabled: true
    path: /internal/metrics
    addr: ":9091"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.MaxBodySize != 1024 {
		t.Errorf("server.max_body_size = %d, want 1024", cfg.Server.MaxBodySize)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("server.shutdown_timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.RateLimit.RequestsPerMinute != 120 || cfg.Server.RateLimit.Burst != 10 {
		t.Errorf("server.rate_limit = %+v", cfg.Server.RateLimit)
	}
	if cfg.Engine.Runtime != RuntimeOpenAI {
		t.Errorf("engine.runtime = %q, want openai", cfg.Engine.Runtime)
	}
	if cfg.Engine.APIKey != "sk-test-key" {
		t.Errorf("engine.api_key = %q, want sk-test-key", cfg.Engine.APIKey)
	}
	if cfg.Engine.DefaultModel != "gpt-4o" {
		t.Errorf("engine.default_model = %q, want gpt-4o", cfg.Engine.DefaultModel)
	}
	if cfg.Engine.PrimerTimeout != 15*time.Second {
		t.Errorf("engine.primer_timeout = %v, want 15s", cfg.Engine.PrimerTimeout)
	}
	if cfg.Engine.SystemPrompt != "You are terse." || cfg.Engine.AgentName != "helper" {
		t.Errorf("engine prompt/name = %q/%q", cfg.Engine.SystemPrompt, cfg.Engine.AgentName)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Debug != "bridge,transport" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.Path != "/internal/metrics" || cfg.Observability.Metrics.Addr != ":9091" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
}

func TestYAMLDefaultsMerge(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
engine:
  backend_url: http://agent:9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Engine.Runtime != RuntimeHTTP {
		t.Errorf("engine.runtime = %q, want default http", cfg.Engine.Runtime)
	}
	if cfg.Engine.AgentName != "assistant" {
		t.Errorf("engine.agent_name = %q, want default assistant", cfg.Engine.AgentName)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
engine:
  backend_url: http://from-file:8000
`)

	t.Setenv("AGENTBRIDGE_BACKEND_URL", "http://from-env:8000")
	t.Setenv("AGENTBRIDGE_PORT", "7070")
	t.Setenv("AGENTBRIDGE_MODEL", "llama-3")
	t.Setenv("AGENTBRIDGE_PRIMER_TIMEOUT", "2s")
	t.Setenv("AGENTBRIDGE_LOG_FORMAT", "json")
	t.Setenv("AGENTBRIDGE_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.BackendURL != "http://from-env:8000" {
		t.Errorf("backend_url = %q, want env value", cfg.Engine.BackendURL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Engine.DefaultModel != "llama-3" {
		t.Errorf("default_model = %q, want llama-3", cfg.Engine.DefaultModel)
	}
	if cfg.Engine.PrimerTimeout != 2*time.Second {
		t.Errorf("primer_timeout = %v, want 2s", cfg.Engine.PrimerTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled by env")
	}
}

func TestEnvOverrideMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"PORT", "eighty"},
		{"PRIMER_TIMEOUT", "soon"},
		{"METRICS_ENABLED", "maybe"},
		{"RATE_LIMIT_RPM", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "config-*.yaml", "engine:\n  backend_url: http://agent:9000\n")
			t.Setenv("AGENTBRIDGE_"+tt.name, tt.value)

			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), "AGENTBRIDGE_"+tt.name) {
				t.Fatalf("Load() error = %v, want error naming AGENTBRIDGE_%s", err, tt.name)
			}
		})
	}
}

func TestFileReference(t *testing.T) {
	keyFile := writeTemp(t, "key-*", "  sk-from-file\n")
	path := writeTemp(t, "config-*.yaml", `
engine:
  backend_url: http://agent:9000
  api_key_file: `+keyFile+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.APIKey != "sk-from-file" {
		t.Errorf("api_key = %q, want trimmed file content", cfg.Engine.APIKey)
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	keyFile := writeTemp(t, "key-*", "sk-from-file")
	path := writeTemp(t, "config-*.yaml", `
engine:
  backend_url: http://agent:9000
  api_key: sk-explicit
  api_key_file: `+keyFile+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.APIKey != "sk-explicit" {
		t.Errorf("api_key = %q, want explicit value", cfg.Engine.APIKey)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
engine:
  backend_url: http://agent:9000
  api_key_file: /nonexistent/agentbridge/key
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "engine.api_key_file") {
		t.Fatalf("Load() error = %v, want api_key_file error", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	// Explicit path.
	explicit := writeTemp(t, "config-*.yaml", `
engine:
  backend_url: http://explicit:8000
`)
	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load(explicit) error: %v", err)
	}
	if cfg.Engine.BackendURL != "http://explicit:8000" {
		t.Errorf("explicit path: backend_url = %q", cfg.Engine.BackendURL)
	}

	// AGENTBRIDGE_CONFIG env var.
	envFile := writeTemp(t, "envconfig-*.yaml", `
engine:
  backend_url: http://env-config:8000
`)
	t.Setenv("AGENTBRIDGE_CONFIG", envFile)

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(AGENTBRIDGE_CONFIG) error: %v", err)
	}
	if cfg.Engine.BackendURL != "http://env-config:8000" {
		t.Errorf("AGENTBRIDGE_CONFIG: backend_url = %q", cfg.Engine.BackendURL)
	}

	// No file: defaults plus env overrides.
	t.Setenv("AGENTBRIDGE_CONFIG", "")
	t.Setenv("AGENTBRIDGE_BACKEND_URL", "http://defaults-only:8000")

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(no file) error: %v", err)
	}
	if cfg.Engine.BackendURL != "http://defaults-only:8000" {
		t.Errorf("no file: backend_url = %q", cfg.Engine.BackendURL)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid http runtime",
			modify:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing backend_url",
			modify:  func(c *Config) { c.Engine.BackendURL = "" },
			wantErr: "engine.backend_url is required",
		},
		{
			name: "openai with api key only",
			modify: func(c *Config) {
				c.Engine.Runtime = RuntimeOpenAI
				c.Engine.BackendURL = ""
				c.Engine.APIKey = "sk-test"
			},
			wantErr: "",
		},
		{
			name: "openai without key or url",
			modify: func(c *Config) {
				c.Engine.Runtime = RuntimeOpenAI
				c.Engine.BackendURL = ""
			},
			wantErr: "engine.api_key or engine.backend_url is required",
		},
		{
			name:    "unknown runtime",
			modify:  func(c *Config) { c.Engine.Runtime = "grpc" },
			wantErr: "engine.runtime must be",
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0",
		},
		{
			name:    "negative primer timeout",
			modify:  func(c *Config) { c.Engine.PrimerTimeout = -time.Second },
			wantErr: "engine.primer_timeout must be >= 0",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format must be",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Logging.Level = "LOUD" },
			wantErr: "logging.level must be",
		},
		{
			name:    "relative metrics path",
			modify:  func(c *Config) { c.Observability.Metrics.Path = "metrics" },
			wantErr: "observability.metrics.path must start with",
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.Server.RateLimit.RequestsPerMinute = -1 },
			wantErr: "server.rate_limit values must be >= 0",
		},
		{
			name: "metrics path ignored when disabled",
			modify: func(c *Config) {
				c.Observability.Metrics.Enabled = false
				c.Observability.Metrics.Path = ""
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Engine.BackendURL = "http://agent:9000"
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "engine.backend_url", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

// writeTemp creates a temporary file with the given content and returns its path.
// The file is removed when the test finishes.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return f.Name()
}
