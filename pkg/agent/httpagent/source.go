package httpagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
)

// streamLine is one decoded line of a run response. A runtime reports a
// failure after the stream started with an "error" object.
type streamLine struct {
	agent.Snapshot
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// lineSource reads snapshots from a run response body. Failures the runtime
// reports in the stream surface as model errors.
//
// Accepted framing, one snapshot per line:
//
//	{"chat_history":[...]}
//	data: {"chat_history":[...]}
//	data: [DONE]
//
// Blank lines and SSE comment, event, id and retry fields are skipped.
type lineSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *zap.Logger

	done      bool
	closeOnce sync.Once
	closeErr  error
}

var _ agent.Source = (*lineSource)(nil)

func newLineSource(body io.ReadCloser, maxLine int, logger *zap.Logger) *lineSource {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &lineSource{body: body, scanner: scanner, logger: logger}
}

// Next returns the next snapshot or io.EOF at the end of the run.
func (s *lineSource) Next(ctx context.Context) (agent.Snapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return agent.Snapshot{}, err
		}
		if s.done {
			return agent.Snapshot{}, io.EOF
		}

		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return agent.Snapshot{}, ctxErr
				}
				if errors.Is(err, bufio.ErrTooLong) {
					return agent.Snapshot{}, api.NewModelError("agent snapshot exceeds line limit")
				}
				return agent.Snapshot{}, api.NewModelError(fmt.Sprintf("reading agent stream: %v", err))
			}
			return agent.Snapshot{}, io.EOF
		}

		payload, ok := parseLine(s.scanner.Bytes())
		if !ok {
			continue
		}
		if bytes.Equal(payload, []byte("[DONE]")) {
			s.done = true
			return agent.Snapshot{}, io.EOF
		}

		var line streamLine
		if err := json.Unmarshal(payload, &line); err != nil {
			s.logger.Warn("malformed agent snapshot",
				zap.Error(err),
				zap.String("data", debug.Truncate(string(payload), 200)),
			)
			return agent.Snapshot{}, api.NewModelError(fmt.Sprintf("decoding agent snapshot: %v", err))
		}
		if line.Error != nil {
			s.done = true
			return agent.Snapshot{}, api.NewModelError("agent runtime: " + line.Error.Message)
		}

		debug.Log("agent", "snapshot received", zap.Int("history", len(line.ChatHistory)))
		return line.Snapshot, nil
	}
}

// Close closes the response body. Closing aborts a pending read.
func (s *lineSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// parseLine extracts the JSON payload of a line. It returns false for lines
// that carry no payload.
func parseLine(raw []byte) ([]byte, bool) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	for _, field := range []string{"event:", "id:", "retry:"} {
		if bytes.HasPrefix(line, []byte(field)) {
			return nil, false
		}
	}
	if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
		rest = bytes.TrimSpace(rest)
		if len(rest) == 0 {
			return nil, false
		}
		return rest, true
	}
	return line, true
}
