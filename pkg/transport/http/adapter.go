package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
	"github.com/rhuss/agentbridge/pkg/observability"
	"github.com/rhuss/agentbridge/pkg/transport"
)

// ChatCompletionsPath is the route of the chat completions endpoint.
const ChatCompletionsPath = "/v1/chat/completions"

// Adapter serves the OpenAI chat completions API over HTTP.
// It routes requests to the creator and relays its lines as SSE.
type Adapter struct {
	creator  transport.ChatCompletionCreator
	inflight *transport.InFlightRegistry
	router   chi.Router
	config   Config
	logger   *zap.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// HTTPMiddleware runs after request ID and metrics, before routing.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for the given creator. Middleware is
// applied to the creator in the given order.
func NewAdapter(creator transport.ChatCompletionCreator, cfg Config, logger *zap.Logger, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Adapter{
		creator:  creator,
		inflight: transport.NewInFlightRegistry(),
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
	}

	a.router.Use(middleware.RealIP)
	a.router.Use(httpRequestIDMiddleware)
	a.router.Use(observability.MetricsMiddleware)
	a.router.Use(cfg.HTTPMiddleware...)

	a.router.Post(ChatCompletionsPath, a.handleCreateChatCompletion)
	a.router.Delete(ChatCompletionsPath+"/{id}", a.handleCancelStream)

	return a
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// Router exposes the underlying router so operational endpoints (health,
// metrics) can share the listener.
func (a *Adapter) Router() chi.Router {
	return a.router
}

// InFlight returns the registry of running streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header into the context, generating one when the client sent
// none, and echoes it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	w.ensureRequestIDHeader()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleCreateChatCompletion handles POST /v1/chat/completions. The
// response is always an SSE stream, whatever the stream flag says.
func (a *Adapter) handleCreateChatCompletion(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var registeredID string
	sw := newSSEStreamWriter(w, func(id string) {
		if !a.inflight.Register(id, cancel) {
			a.logger.Warn("duplicate stream ID, cancel by ID unavailable", zap.String("stream_id", id))
			return
		}
		registeredID = id
		debug.Log("transport", "stream registered", zap.String("stream_id", id))
	})

	err := a.creator.CreateChatCompletion(ctx, &req, sw)

	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}

	if err != nil {
		a.writeHandlerError(w, sw, err)
	}
}

// handleCancelStream handles DELETE /v1/chat/completions/{id}. It cancels a
// running stream; the agent source is released as the stream unwinds.
func (a *Adapter) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !api.ValidateStreamID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed stream ID"),
			http.StatusBadRequest,
		)
		return
	}

	if !a.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("stream "+id+" not found"))
		return
	}

	a.logger.Info("stream cancelled", zap.String("stream_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// writeHandlerError writes an error returned by the creator. Before the
// stream started, the client gets a JSON error with a matching status.
// Afterwards, the error is written as the terminating error line.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, sw *sseStreamWriter, err error) {
	apiErr := api.AsAPIError(err)
	if sw.hasStarted() {
		if werr := sw.WriteLine(context.Background(), api.ErrorLine(apiErr)); werr != nil {
			debug.Log("transport", "error line not delivered", zap.Error(werr))
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}
