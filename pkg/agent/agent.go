package agent

import (
	"context"
	"errors"
)

var (
	// ErrNoSnapshot is returned when a source ends before producing its
	// first snapshot.
	ErrNoSnapshot = errors.New("agent produced no snapshot")

	// ErrEmptyHistory is returned for a snapshot without chat history.
	ErrEmptyHistory = errors.New("agent snapshot has empty chat_history")
)

// Message is the normalized form of one inbound chat message. Images holds
// decoded image bytes and is nil when the message carried none; it
// serializes as a list of base64 strings.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  [][]byte `json:"images,omitempty"`
}

// HistoryEntry is one message of an agent's chat history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Snapshot is one item of an agent response stream. Done marks the last
// snapshot of a run; the bundled runtimes end by closing the stream instead.
type Snapshot struct {
	ChatHistory []HistoryEntry `json:"chat_history"`
	Done        bool           `json:"done,omitempty"`
}

// Latest returns the newest chat history entry.
func (s Snapshot) Latest() (HistoryEntry, error) {
	if len(s.ChatHistory) == 0 {
		return HistoryEntry{}, ErrEmptyHistory
	}
	return s.ChatHistory[len(s.ChatHistory)-1], nil
}

// RunRequest is the input of a single agent run.
type RunRequest struct {
	Model    string
	Messages []Message
}

// Runtime starts agent runs.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "http", "openai").
	Name() string

	// Run starts the agent on the given conversation. Errors returned here
	// happen before any snapshot exists.
	Run(ctx context.Context, req *RunRequest) (Source, error)

	// Close releases runtime resources.
	Close() error
}

// Source is a pull-based, single-pass stream of snapshots. Next returns
// io.EOF once the agent has finished. Close releases the underlying
// resources and must be safe to call more than once.
type Source interface {
	Next(ctx context.Context) (Snapshot, error)
	Close() error
}
