package agent

import (
	"fmt"
	"net/http"

	"github.com/rhuss/agentbridge/pkg/api"
)

// StatusError maps an HTTP status reported by an agent backend to an
// APIError. An empty message is replaced with a generic one.
func StatusError(status int, message string) *api.APIError {
	switch {
	case status == http.StatusBadRequest:
		if message == "" {
			message = "invalid request to agent runtime"
		}
		return api.NewInvalidRequestError("", message)

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "agent runtime authentication failed"
		}
		return api.NewServerError(message)

	case status == http.StatusNotFound:
		if message == "" {
			message = "agent runtime endpoint not found"
		}
		return api.NewNotFoundError(message)

	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "agent runtime rate limit exceeded"
		}
		return api.NewTooManyRequestsError(message)

	case status == http.StatusGatewayTimeout:
		if message == "" {
			message = "agent runtime timed out"
		}
		return api.NewTimeoutError(message)

	case status >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("agent runtime error (HTTP %d)", status)
		}
		return api.NewModelError(message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected agent runtime response (HTTP %d)", status)
		}
		return api.NewServerError(message)
	}
}
