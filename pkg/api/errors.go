package api

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure. The transport layer derives the HTTP
// status of a JSON error response from it.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeModelError      ErrorType = "model_error" // agent runtime failed
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeTimeout         ErrorType = "timeout" // no snapshot within the primer timeout
)

// APIError is the error body sent to clients, either as JSON before a
// stream begins or as the message of a terminating error line.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// AsAPIError returns the APIError in err's chain. Any other error becomes
// a server error carrying err's text. A nil err yields nil.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewServerError(err.Error())
}

func newError(t ErrorType, message string) *APIError {
	return &APIError{Type: t, Message: message}
}

// NewInvalidRequestError reports a malformed request; param names the
// offending field, e.g. "messages[0].content".
func NewInvalidRequestError(param, message string) *APIError {
	e := newError(ErrorTypeInvalidRequest, message)
	e.Param = param
	return e
}

func NewNotFoundError(message string) *APIError {
	return newError(ErrorTypeNotFound, message)
}

func NewServerError(message string) *APIError {
	return newError(ErrorTypeServerError, message)
}

// NewModelError reports a failure of the agent runtime.
func NewModelError(message string) *APIError {
	return newError(ErrorTypeModelError, message)
}

func NewTooManyRequestsError(message string) *APIError {
	return newError(ErrorTypeTooManyRequests, message)
}

// NewTimeoutError reports an agent that produced no snapshot in time.
func NewTimeoutError(message string) *APIError {
	return newError(ErrorTypeTimeout, message)
}
