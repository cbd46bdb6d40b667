package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
	"github.com/rhuss/agentbridge/pkg/observability"
	"github.com/rhuss/agentbridge/pkg/transport"
)

// Engine bridges chat completion requests to an agent runtime. It
// implements transport.ChatCompletionCreator.
type Engine struct {
	runtime agent.Runtime
	cfg     Config
	logger  *zap.Logger
}

// Ensure Engine implements transport.ChatCompletionCreator at compile time.
var _ transport.ChatCompletionCreator = (*Engine)(nil)

// New creates a new Engine. The runtime must not be nil.
func New(rt agent.Runtime, cfg Config, logger *zap.Logger) (*Engine, error) {
	if rt == nil {
		return nil, fmt.Errorf("engine: runtime must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		runtime: rt,
		cfg:     cfg,
		logger:  logger.Named("engine"),
	}, nil
}

// CreateChatCompletion validates and normalizes the request, starts an
// agent run, and streams the bridged lines to w.
//
// Failures up to and including priming are returned before w.Begin is
// called, so the client receives a JSON error. Once streaming has begun, a
// failure is written as an error line and the method returns nil.
func (e *Engine) CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w transport.StreamWriter) error {
	if apiErr := api.ValidateRequest(req, e.cfg.validation()); apiErr != nil {
		return apiErr
	}

	model := e.cfg.model(req.Model)
	runtimeName := e.runtime.Name()
	requestID := transport.RequestIDFromContext(ctx)

	runReq := &agent.RunRequest{
		Model:    model,
		Messages: Normalize(req.Messages),
	}
	debug.Log("bridge", "starting agent run",
		zap.String("request_id", requestID),
		zap.String("runtime", runtimeName),
		zap.String("model", model),
		zap.Int("messages", len(runReq.Messages)))

	start := time.Now()
	src, err := e.runtime.Run(ctx, runReq)
	if err != nil {
		return e.primingFailed(ctx, runtimeName, err)
	}

	bridge, err := Prime(ctx, src, BridgeOptions{
		Translator:    NewTranslator(model),
		PrimerTimeout: e.cfg.PrimerTimeout,
		Logger:        e.logger,
	})
	if err != nil {
		return e.primingFailed(ctx, runtimeName, err)
	}
	observability.FirstSnapshotLatency.WithLabelValues(runtimeName, model).Observe(time.Since(start).Seconds())

	if err := w.Begin(bridge.StreamID()); err != nil {
		bridge.Close()
		return err
	}

	observability.ActiveStreams.Inc()
	defer observability.ActiveStreams.Dec()

	log := e.logger.With(
		zap.String("request_id", requestID),
		zap.String("stream_id", bridge.StreamID()),
		zap.String("runtime", runtimeName))

	outcome := observability.OutcomeDrained
	chunks := 0
	for line, err := range bridge.Events(ctx) {
		if err != nil {
			errLine, ok := failureLine(ctx, err)
			if !ok {
				outcome = observability.OutcomeCancelled
				break
			}
			outcome = observability.OutcomeError
			log.Error("agent stream failed", zap.Int("chunks", chunks), zap.Error(err))
			if werr := w.WriteLine(ctx, errLine); werr != nil {
				log.Debug("writing error line", zap.Error(werr))
			}
			break
		}
		if werr := w.WriteLine(ctx, line); werr != nil {
			outcome = observability.OutcomeCancelled
			log.Debug("client stopped reading", zap.Error(werr))
			break
		}
		chunks++
		observability.ChunksTotal.WithLabelValues(runtimeName, model).Inc()
	}

	observability.StreamsTotal.WithLabelValues(runtimeName, outcome).Inc()
	debug.Log("bridge", "stream finished",
		zap.String("stream_id", bridge.StreamID()),
		zap.String("outcome", outcome),
		zap.Int("chunks", chunks))
	return nil
}

// primingFailed records a failure that happened before any line existed and
// maps it to the APIError returned to the client.
func (e *Engine) primingFailed(ctx context.Context, runtimeName string, err error) error {
	reason, apiErr := classifyPrimingError(err)
	observability.PrimingFailuresTotal.WithLabelValues(runtimeName, reason).Inc()

	if ctx.Err() == nil {
		e.logger.Error("agent run failed before streaming",
			zap.String("request_id", transport.RequestIDFromContext(ctx)),
			zap.String("runtime", runtimeName),
			zap.String("reason", reason),
			zap.Error(err))
	}
	return apiErr
}

func classifyPrimingError(err error) (string, *api.APIError) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return string(apiErr.Type), apiErr
	case errors.Is(err, ErrPrimerTimeout):
		return "timeout", api.NewTimeoutError(err.Error())
	case errors.Is(err, agent.ErrNoSnapshot):
		return "no_snapshot", api.NewModelError(err.Error())
	case errors.Is(err, agent.ErrEmptyHistory):
		return "empty_history", api.NewModelError(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled", api.NewServerError(err.Error())
	default:
		return "runtime", api.NewModelError(err.Error())
	}
}
