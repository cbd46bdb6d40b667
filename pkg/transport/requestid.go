package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/agentbridge/pkg/api"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID makes sure every request carries an ID. The HTTP adapter
// normally sets one from X-Request-ID; callers without it get a UUID.
func RequestID() Middleware {
	return func(next ChatCompletionCreator) ChatCompletionCreator {
		return ChatCompletionCreatorFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, uuid.NewString())
			}
			return next.CreateChatCompletion(ctx, req, w)
		})
	}
}
