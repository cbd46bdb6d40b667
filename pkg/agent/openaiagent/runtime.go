// Package openaiagent runs a single assistant agent on an OpenAI-compatible
// chat completions backend. Every streamed delta becomes a snapshot whose
// last chat_history entry is that delta.
package openaiagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
)

// Config holds configuration for the OpenAI-backed runtime.
type Config struct {
	// BaseURL of the backend including the /v1 suffix. Empty uses OpenAI.
	BaseURL string

	APIKey string

	// SystemPrompt is prepended to every conversation when non-empty.
	SystemPrompt string

	// AgentName is reported as the name of the assistant history entries.
	AgentName string
}

// Runtime implements agent.Runtime on top of go-openai.
type Runtime struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

var _ agent.Runtime = (*Runtime)(nil)

// New creates a Runtime.
func New(cfg Config, logger *zap.Logger) (*Runtime, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaiagent: api key is required for the default backend")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Runtime{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.Named("openaiagent"),
	}, nil
}

// Name returns "openai".
func (r *Runtime) Name() string { return "openai" }

// Run opens a streaming chat completion for the conversation.
func (r *Runtime) Run(ctx context.Context, req *agent.RunRequest) (agent.Source, error) {
	messages, dropped := r.chatMessages(req.Messages)
	if dropped > 0 {
		debug.Log("agent", "images are not forwarded to the openai runtime", zap.Int("dropped", dropped))
	}

	stream, err := r.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		apiErr := mapError(err)
		r.logger.Warn("backend rejected chat completion", zap.String("model", req.Model), zap.Error(apiErr))
		return nil, apiErr
	}

	return &deltaSource{
		stream:  stream,
		history: history(req.Messages),
		name:    r.cfg.AgentName,
	}, nil
}

// Close is a no-op; go-openai keeps no per-runtime resources.
func (r *Runtime) Close() error { return nil }

func (r *Runtime) chatMessages(msgs []agent.Message) ([]openai.ChatCompletionMessage, int) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if r.cfg.SystemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.cfg.SystemPrompt,
		})
	}
	dropped := 0
	for _, m := range msgs {
		dropped += len(m.Images)
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out, dropped
}

func history(msgs []agent.Message) []agent.HistoryEntry {
	out := make([]agent.HistoryEntry, len(msgs))
	for i, m := range msgs {
		out[i] = agent.HistoryEntry{Role: m.Role, Content: m.Content}
	}
	return out
}

// deltaSource turns chat completion deltas into snapshots.
type deltaSource struct {
	stream  *openai.ChatCompletionStream
	history []agent.HistoryEntry
	name    string

	closeOnce sync.Once
}

var _ agent.Source = (*deltaSource)(nil)

func (s *deltaSource) Next(ctx context.Context) (agent.Snapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return agent.Snapshot{}, err
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return agent.Snapshot{}, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return agent.Snapshot{}, ctxErr
			}
			return agent.Snapshot{}, streamError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		role := delta.Role
		if role == "" {
			role = openai.ChatMessageRoleAssistant
		}

		n := len(s.history)
		entries := append(s.history[:n:n], agent.HistoryEntry{
			Role:    role,
			Content: delta.Content,
			Name:    s.name,
		})
		return agent.Snapshot{ChatHistory: entries}, nil
	}
}

func (s *deltaSource) Close() error {
	s.closeOnce.Do(func() {
		s.stream.Close()
	})
	return nil
}

// streamError classifies a failure after the stream was opened. Backend
// error payloads keep their status mapping; anything else is a model error.
func streamError(err error) *api.APIError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return mapError(err)
	}
	return api.NewModelError(fmt.Sprintf("openai stream: %v", err))
}

// mapError converts go-openai errors into APIErrors.
func mapError(err error) *api.APIError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return agent.StatusError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return agent.StatusError(reqErr.HTTPStatusCode, "")
	}
	return api.NewServerError(fmt.Sprintf("agent runtime connection error: %s", err.Error()))
}
