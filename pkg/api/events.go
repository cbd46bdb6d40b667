package api

import (
	"errors"
	"strings"
)

// ObjectChatCompletionChunk is the object tag of every streamed chunk.
const ObjectChatCompletionChunk = "chat.completion.chunk"

// SSE wire framing.
const (
	DataPrefix   = "data: "
	DoneSentinel = "[DONE]"
	DoneLine     = DataPrefix + DoneSentinel + "\n\n"
	ErrorPrefix  = "error: "
)

// ErrorLine formats the diagnostic line that ends a stream after a
// mid-stream failure. An APIError contributes its message only.
func ErrorLine(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ErrorPrefix + apiErr.Message
	}
	return ErrorPrefix + err.Error()
}

// IsTerminalLine reports whether no further line may follow the given one.
func IsTerminalLine(line string) bool {
	return line == DoneLine || strings.HasPrefix(line, ErrorPrefix)
}
