package agent

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("agent source closed")

// SliceSource replays a fixed list of snapshots. After the last snapshot it
// returns the configured error, or io.EOF when none is set.
type SliceSource struct {
	mu        sync.Mutex
	snapshots []Snapshot
	err       error
	pos       int
	closes    int
}

var _ Source = (*SliceSource)(nil)

// NewSliceSource creates a source over snapshots that fails with err once
// they are exhausted. A nil err ends the source with io.EOF.
func NewSliceSource(snapshots []Snapshot, err error) *SliceSource {
	return &SliceSource{snapshots: snapshots, err: err}
}

// Next returns the next snapshot.
func (s *SliceSource) Next(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closes > 0 {
		return Snapshot{}, ErrSourceClosed
	}
	if s.pos < len(s.snapshots) {
		snap := s.snapshots[s.pos]
		s.pos++
		return snap, nil
	}
	if s.err != nil {
		return Snapshot{}, s.err
	}
	return Snapshot{}, io.EOF
}

// Close marks the source as released.
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

// Consumed returns the number of snapshots handed out so far.
func (s *SliceSource) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// RuntimeFunc is an adapter that allows using an ordinary function as a
// Runtime.
type RuntimeFunc func(ctx context.Context, req *RunRequest) (Source, error)

var _ Runtime = RuntimeFunc(nil)

// Name returns "func".
func (f RuntimeFunc) Name() string { return "func" }

// Run calls f(ctx, req).
func (f RuntimeFunc) Run(ctx context.Context, req *RunRequest) (Source, error) {
	return f(ctx, req)
}

// Close is a no-op.
func (f RuntimeFunc) Close() error { return nil }
