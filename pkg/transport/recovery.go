package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/api"
)

// Recovery turns a panic in the creator into a server error. The panic
// value and stack go to the log only; the client sees a generic message,
// as JSON or as an error line depending on whether the stream began.
func Recovery(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next ChatCompletionCreator) ChatCompletionCreator {
		return ChatCompletionCreatorFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in chat completion",
						zap.String("request_id", RequestIDFromContext(ctx)),
						zap.Any("panic", r),
						zap.Stack("stack"))
					retErr = api.NewServerError("internal server error")
				}
			}()
			return next.CreateChatCompletion(ctx, req, w)
		})
	}
}
