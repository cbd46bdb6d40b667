package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All failures are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	switch c.Engine.Runtime {
	case RuntimeHTTP:
		if c.Engine.BackendURL == "" {
			errs = append(errs, fmt.Errorf("engine.backend_url is required when engine.runtime is %q", RuntimeHTTP))
		}
	case RuntimeOpenAI:
		if c.Engine.BackendURL == "" && c.Engine.APIKey == "" {
			errs = append(errs, fmt.Errorf("engine.api_key or engine.backend_url is required when engine.runtime is %q", RuntimeOpenAI))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.runtime must be %q or %q, got %q", RuntimeHTTP, RuntimeOpenAI, c.Engine.Runtime))
	}

	if c.Engine.PrimerTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine.primer_timeout must be >= 0, got %s", c.Engine.PrimerTimeout))
	}

	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit values must be >= 0"))
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "ERROR", "WARN", "WARNING", "INFO", "DEBUG", "TRACE":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of ERROR, WARN, INFO, DEBUG, TRACE, got %q", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
