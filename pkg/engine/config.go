package engine

import (
	"time"

	"github.com/rhuss/agentbridge/pkg/api"
)

// FallbackModel is reported when neither the request nor the configuration
// names a model.
const FallbackModel = "gpt-3.5-turbo-0125"

// Config holds configuration for the engine.
type Config struct {
	// DefaultModel is used when the request omits the model field.
	DefaultModel string

	// PrimerTimeout bounds the wait for the first agent snapshot. Zero
	// disables the bound.
	PrimerTimeout time.Duration

	// Validation holds the request limits. The zero value applies
	// api.DefaultValidationConfig.
	Validation api.ValidationConfig
}

// model resolves the model name for a request.
func (c Config) model(requested string) string {
	switch {
	case requested != "":
		return requested
	case c.DefaultModel != "":
		return c.DefaultModel
	default:
		return FallbackModel
	}
}

func (c Config) validation() api.ValidationConfig {
	if c.Validation == (api.ValidationConfig{}) {
		return api.DefaultValidationConfig()
	}
	return c.Validation
}
