package httpagent

import "time"

// RunPath is the endpoint a remote runtime serves runs on.
const RunPath = "/v1/agents/run"

// Config holds configuration for the HTTP agent runtime.
type Config struct {
	// BaseURL is the runtime's base URL (e.g., "http://localhost:9090").
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds connection setup and response headers. Zero means
	// 120s. The body of a run is bounded by the request context only.
	Timeout time.Duration

	// MaxLineSize bounds a single snapshot line. Zero means 4MB.
	MaxLineSize int
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 120 * time.Second
	}
	return c.Timeout
}

func (c Config) maxLineSize() int {
	if c.MaxLineSize <= 0 {
		return 4 << 20
	}
	return c.MaxLineSize
}
