package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/transport"
)

// writerState tracks the state of an SSE StreamWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Headers sent, lines may follow
	writerCompleted                    // Terminal line sent
)

// sseStreamWriter implements transport.StreamWriter for HTTP/SSE responses.
type sseStreamWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState

	// onBegin is called once with the stream ID when the stream starts,
	// for in-flight registry registration.
	onBegin func(id string)
}

var _ transport.StreamWriter = (*sseStreamWriter)(nil)

// newSSEStreamWriter creates a StreamWriter wrapping an http.ResponseWriter.
// onBegin may be nil.
func newSSEStreamWriter(w http.ResponseWriter, onBegin func(id string)) *sseStreamWriter {
	return &sseStreamWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		onBegin: onBegin,
	}
}

// Begin sends the SSE headers and registers the stream.
func (s *sseStreamWriter) Begin(streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != writerIdle {
		return errors.New("cannot begin stream: already started")
	}
	return s.begin(streamID)
}

func (s *sseStreamWriter) begin(streamID string) error {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if streamID != "" {
		h.Set("X-Stream-ID", streamID)
	}
	s.w.WriteHeader(http.StatusOK)
	s.state = writerStreaming

	if streamID != "" && s.onBegin != nil {
		s.onBegin(streamID)
		s.onBegin = nil
	}

	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush headers: %w", err)
	}
	return nil
}

// WriteLine sends one line and flushes it. Data lines arrive framed; an
// error line gets the blank-line terminator SSE clients expect. After a
// terminal line the writer is completed.
func (s *sseStreamWriter) WriteLine(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write line: writer is completed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.state == writerIdle {
		if err := s.begin(""); err != nil {
			return err
		}
	}

	out := line
	if strings.HasPrefix(line, api.ErrorPrefix) && !strings.HasSuffix(line, "\n\n") {
		out = line + "\n\n"
	}

	if _, err := io.WriteString(s.w, out); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if api.IsTerminalLine(line) {
		s.state = writerCompleted
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseStreamWriter) Flush() error {
	return s.rc.Flush()
}

// hasStarted reports whether the SSE headers have been sent.
func (s *sseStreamWriter) hasStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}
