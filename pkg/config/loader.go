package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/agentbridge/pkg/debug"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "AGENTBRIDGE_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AGENTBRIDGE_CONFIG env, ./config.yaml, /etc/agentbridge/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", zap.String("path", filePath))
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. AGENTBRIDGE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/agentbridge/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/agentbridge/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps AGENTBRIDGE_* environment variables to config
// fields. Malformed numbers and durations are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	str("RUNTIME", &cfg.Engine.Runtime)
	str("BACKEND_URL", &cfg.Engine.BackendURL)
	str("API_KEY", &cfg.Engine.APIKey)
	str("API_KEY_FILE", &cfg.Engine.APIKeyFile)
	str("MODEL", &cfg.Engine.DefaultModel)
	str("SYSTEM_PROMPT", &cfg.Engine.SystemPrompt)
	str("AGENT_NAME", &cfg.Engine.AgentName)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("METRICS_PATH", &cfg.Observability.Metrics.Path)
	str("METRICS_ADDR", &cfg.Observability.Metrics.Addr)

	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT_RPM"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_RPM: %w", EnvPrefix, err)
		}
		cfg.Server.RateLimit.RequestsPerMinute = rpm
	}
	if v := os.Getenv(EnvPrefix + "METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", EnvPrefix, err)
		}
		cfg.Observability.Metrics.Enabled = enabled
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"PRIMER_TIMEOUT", &cfg.Engine.PrimerTimeout},
		{"TIMEOUT", &cfg.Engine.Timeout},
		{"SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(EnvPrefix + d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. An explicit value wins over its file reference.
func resolveFileReferences(cfg *Config) error {
	if cfg.Engine.APIKeyFile != "" && cfg.Engine.APIKey == "" {
		val, err := readSecretFile(cfg.Engine.APIKeyFile)
		if err != nil {
			return fmt.Errorf("engine.api_key_file: %w", err)
		}
		cfg.Engine.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
