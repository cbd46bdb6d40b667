package transport

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
)

var statusByType = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:  http.StatusBadRequest,
	api.ErrorTypeNotFound:        http.StatusNotFound,
	api.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
	api.ErrorTypeTimeout:         http.StatusGatewayTimeout,
	api.ErrorTypeModelError:      http.StatusBadGateway,
}

// HTTPStatusFromError returns the status of a JSON error response for err.
// Unknown types map to 500. Body size, media type and method errors pick
// their status in the HTTP adapter instead.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := statusByType[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse writes apiErr as a JSON error envelope with the given
// status. It must only be used before a stream has begun.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr}); err != nil {
		debug.Log("transport", "error response not delivered", zap.Error(err))
	}
}

// WriteAPIError writes apiErr with the status derived from its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
