// Package mockagent serves a deterministic agent runtime over the
// httpagent wire protocol. Replies are chosen from the content of the last
// user message, so tests and local setups can provoke every stream shape.
//
// Markers recognized in the last user message:
//
//	[fail-early]  respond 503 before any snapshot
//	[rate-limit]  respond 429 before any snapshot
//	[silent]      end the run without a snapshot
//	[hang]        never produce a snapshot
//	[fail-mid]    two snapshots, then an error line
//	[long]        a long reply, paced by Config.ChunkDelay
//
// Any other message is echoed back word by word.
package mockagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/agent/httpagent"
)

// Wire formats of a run response.
const (
	FormatNDJSON = "ndjson"
	FormatSSE    = "sse"
)

// Config configures the mock runtime.
type Config struct {
	// Format is FormatNDJSON (default) or FormatSSE.
	Format string

	// AgentName is the name placed on assistant history entries.
	AgentName string

	// ChunkDelay is the pause between two snapshots.
	ChunkDelay time.Duration

	Logger *zap.Logger
}

type runRequest struct {
	Model    string          `json:"model"`
	Messages []agent.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

type server struct {
	cfg    Config
	logger *zap.Logger
}

// Handler returns the HTTP handler of the mock runtime. It serves
// httpagent.RunPath and GET /healthz.
func Handler(cfg Config) http.Handler {
	if cfg.Format == "" {
		cfg.Format = FormatNDJSON
	}
	if cfg.AgentName == "" {
		cfg.AgentName = "assistant"
	}
	s := &server{cfg: cfg, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Post(httpagent.RunPath, s.handleRun)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return r
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	last := lastUserMessage(req.Messages)
	s.logger.Debug("run received",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.String("last", last.Content))

	switch {
	case strings.Contains(last.Content, "[fail-early]"):
		writeError(w, http.StatusServiceUnavailable, "agent unavailable")
		return
	case strings.Contains(last.Content, "[rate-limit]"):
		writeError(w, http.StatusTooManyRequests, "too many runs")
		return
	}

	sw := s.startStream(w)

	switch {
	case strings.Contains(last.Content, "[silent]"):
		return
	case strings.Contains(last.Content, "[hang]"):
		<-r.Context().Done()
		return
	}

	words := strings.Fields(reply(last))
	failAfter := -1
	if strings.Contains(last.Content, "[fail-mid]") {
		failAfter = 2
	}

	history := historyOf(req.Messages)
	for i, word := range words {
		if i == failAfter {
			sw.write(map[string]any{"error": map[string]string{"message": "agent crashed"}})
			return
		}
		if i > 0 {
			word = " " + word
			if !s.pause(r.Context()) {
				return
			}
		}
		snap := agent.Snapshot{ChatHistory: append(history, agent.HistoryEntry{
			Role:    "assistant",
			Content: word,
			Name:    s.cfg.AgentName,
		})}
		if err := sw.write(snap); err != nil {
			s.logger.Debug("client gone", zap.Error(err))
			return
		}
	}
	if s.cfg.Format == FormatSSE {
		sw.raw("data: [DONE]\n\n")
	}
}

func (s *server) pause(ctx context.Context) bool {
	if s.cfg.ChunkDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.ChunkDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// reply builds the assistant text for the last user message.
func reply(m agent.Message) string {
	switch {
	case strings.Contains(m.Content, "[long]"):
		var b strings.Builder
		for i := 1; i <= 50; i++ {
			fmt.Fprintf(&b, "word%d ", i)
		}
		return b.String()
	case strings.Contains(m.Content, "[fail-mid]"):
		return "partial answer before the crash"
	case len(m.Images) > 0:
		return fmt.Sprintf("I see %d image(s).", len(m.Images))
	default:
		return "Echo: " + m.Content
	}
}

func lastUserMessage(msgs []agent.Message) agent.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i]
		}
	}
	return msgs[len(msgs)-1]
}

func historyOf(msgs []agent.Message) []agent.HistoryEntry {
	out := make([]agent.HistoryEntry, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, agent.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// streamWriter frames snapshots in the configured format.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	framing string
}

func (s *server) startStream(w http.ResponseWriter) *streamWriter {
	if s.cfg.Format == FormatSSE {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)
	sw := &streamWriter{w: w, rc: http.NewResponseController(w), framing: s.cfg.Format}
	sw.rc.Flush()
	return sw
}

func (sw *streamWriter) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if sw.framing == FormatSSE {
		return sw.raw("data: " + string(data) + "\n\n")
	}
	return sw.raw(string(data) + "\n")
}

func (sw *streamWriter) raw(s string) error {
	if _, err := sw.w.Write([]byte(s)); err != nil {
		return err
	}
	return sw.rc.Flush()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": msg},
	})
}
