package transport

import (
	"context"

	"github.com/rhuss/agentbridge/pkg/api"
)

// ChatCompletionCreator handles the create-chat-completion operation.
// The implementation receives a validated-by-shape request and writes the
// SSE lines of the bridged agent stream to the StreamWriter.
//
// An error returned before StreamWriter.Begin was called is reported to the
// client as a JSON error response. Once Begin has been called, the stream
// is committed and failures must be written as an error line instead.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) error
}

// ChatCompletionCreatorFunc is an adapter that allows using an ordinary
// function as a ChatCompletionCreator.
type ChatCompletionCreatorFunc func(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) error

// CreateChatCompletion calls f(ctx, req, w).
func (f ChatCompletionCreatorFunc) CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) error {
	return f(ctx, req, w)
}

// StreamWriter abstracts the SSE output of one request.
//
// Begin commits the response: it sends the stream headers and registers
// the stream ID for cancellation. WriteLine sends one preformatted line.
// Calling WriteLine after a terminal line ([DONE] or an error line)
// returns an error.
type StreamWriter interface {
	// Begin starts the stream under the given ID. It may be called once.
	Begin(streamID string) error

	// WriteLine sends a single line. Begin is implied when it was not
	// called explicitly.
	WriteLine(ctx context.Context, line string) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
