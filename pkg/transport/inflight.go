package transport

import (
	"context"
	"sync"
)

// InFlightRegistry maps the IDs of running streams to the cancel function
// of their request context. Cancelling a stream unwinds its bridge, which
// closes the agent source. Safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[string]context.CancelFunc)}
}

// Register records a running stream. An ID that is already registered is
// left untouched and Register reports false.
func (r *InFlightRegistry) Register(id string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[id]; dup {
		return false
	}
	r.entries[id] = cancel
	return true
}

// Cancel stops the stream with the given ID and forgets it. It reports
// false for streams that already finished or never existed.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll stops every running stream and returns how many there were.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]context.CancelFunc)
	r.mu.Unlock()

	for _, cancel := range entries {
		cancel()
	}
	return len(entries)
}

// Remove forgets a finished stream without cancelling it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
