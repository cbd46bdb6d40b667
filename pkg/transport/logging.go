package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// chat completion request: request ID, model, message count, duration, and
// the error when the request failed before its stream was committed.
//
// HTTP method, path and status are not visible at this level; the HTTP
// adapter logs those separately.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next ChatCompletionCreator) ChatCompletionCreator {
		return ChatCompletionCreatorFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w StreamWriter) error {
			start := time.Now()

			err := next.CreateChatCompletion(ctx, req, w)

			fields := []zap.Field{
				zap.String("request_id", RequestIDFromContext(ctx)),
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Duration("duration", time.Since(start)),
			}

			if err != nil {
				logger.Error("request failed", append(fields, zap.Error(err))...)
			} else {
				logger.Info("request completed", fields...)
			}

			return err
		})
	}
}
