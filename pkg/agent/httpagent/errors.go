package httpagent

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
)

// MapHTTPError converts a non-2xx runtime response into an APIError. It
// tries to read an OpenAI-style error body for a descriptive message.
func MapHTTPError(resp *http.Response) *api.APIError {
	return agent.StatusError(resp.StatusCode, ExtractErrorMessage(resp.Body))
}

// MapNetworkError converts a connection-level failure into an APIError.
func MapNetworkError(err error) *api.APIError {
	return api.NewServerError(fmt.Sprintf("agent runtime connection error: %s", err.Error()))
}

// ExtractErrorMessage reads at most 4KB of body and returns error.message
// (or a top-level message/detail field) when present.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &errResp); err != nil {
		return ""
	}
	switch {
	case errResp.Error != nil && errResp.Error.Message != "":
		return errResp.Error.Message
	case errResp.Message != "":
		return errResp.Message
	default:
		return errResp.Detail
	}
}
