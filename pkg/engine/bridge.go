package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
)

// ErrPrimerTimeout is returned by Prime when the first snapshot did not
// arrive within BridgeOptions.PrimerTimeout.
var ErrPrimerTimeout = errors.New("agent did not produce a first snapshot in time")

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// StreamID is placed on every chunk. A new UUID is generated when empty.
	StreamID string

	// Translator converts snapshots to chunks. Defaults to a translator
	// for FallbackModel.
	Translator *Translator

	// PrimerTimeout bounds the priming read. Zero waits indefinitely.
	PrimerTimeout time.Duration

	Logger *zap.Logger
}

// Bridge relays an agent Source as SSE lines. It is created by Prime, which
// consumes the first snapshot, and emits through a single-pass sequence
// returned by Events or Lines.
//
// The source is released exactly once: when the sequence ends for any
// reason, when the consumer stops pulling, when priming fails, or on Close.
type Bridge struct {
	src        agent.Source
	streamID   string
	translator *Translator
	logger     *zap.Logger

	mu     sync.Mutex
	phase  api.StreamPhase
	primed Event

	releaseOnce sync.Once
}

// Prime reads exactly one snapshot from src and encodes it. Any failure
// closes src and is returned before a single line could be produced. A
// source that ends without a snapshot yields agent.ErrNoSnapshot.
func Prime(ctx context.Context, src agent.Source, opts BridgeOptions) (*Bridge, error) {
	b := &Bridge{
		src:        src,
		streamID:   opts.StreamID,
		translator: opts.Translator,
		logger:     opts.Logger,
	}
	if b.streamID == "" {
		b.streamID = api.NewStreamID()
	}
	if b.translator == nil {
		b.translator = NewTranslator(FallbackModel)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	if err := b.transition(api.PhasePriming); err != nil {
		return nil, err
	}

	snap, err := b.first(ctx, opts.PrimerTimeout)
	if err == nil {
		b.primed, err = b.encode(snap)
	}
	if err != nil {
		debug.Log("bridge", "priming failed", zap.String("stream_id", b.streamID), zap.Error(err))
		b.release()
		return nil, err
	}

	debug.Log("bridge", "primed", zap.String("stream_id", b.streamID))
	if debug.TraceIsEnabled("bridge") {
		debug.Trace("bridge", "primed line", zap.String("line", debug.Truncate(b.primed.Text, 512)))
	}
	return b, nil
}

// first reads the priming snapshot, bounded by timeout when positive.
func (b *Bridge) first(ctx context.Context, timeout time.Duration) (agent.Snapshot, error) {
	if timeout <= 0 {
		return b.nextPrimed(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		snap agent.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := b.nextPrimed(tctx)
		done <- result{snap, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return agent.Snapshot{}, fmt.Errorf("%w after %s", ErrPrimerTimeout, timeout)
		}
		return r.snap, r.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return agent.Snapshot{}, ctx.Err()
		}
		// The pending Next is unblocked by the release that follows.
		return agent.Snapshot{}, fmt.Errorf("%w after %s", ErrPrimerTimeout, timeout)
	}
}

func (b *Bridge) nextPrimed(ctx context.Context) (agent.Snapshot, error) {
	snap, err := b.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		return agent.Snapshot{}, agent.ErrNoSnapshot
	}
	return snap, err
}

func (b *Bridge) encode(snap agent.Snapshot) (Event, error) {
	chunk, err := b.translator.Translate(snap, b.streamID)
	if err != nil {
		return Event{}, err
	}
	ev, err := Encode(chunk)
	ev.Done = err == nil && snap.Done
	return ev, err
}

// StreamID returns the ID shared by every chunk of this stream.
func (b *Bridge) StreamID() string { return b.streamID }

// Phase returns the current stream phase.
func (b *Bridge) Phase() api.StreamPhase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Events returns the stream as a single-pass sequence. The primed line comes
// first, followed by one line per further snapshot. Exhaustion of the
// source ends the sequence without a terminator. A failure is yielded once
// as ("", err) and ends the sequence. Ranging over the sequence a second
// time yields nothing.
func (b *Bridge) Events(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := b.transition(api.PhaseStreaming); err != nil {
			debug.Log("bridge", "stream not restartable", zap.String("stream_id", b.streamID), zap.String("phase", string(b.Phase())))
			return
		}
		defer b.release()

		b.mu.Lock()
		primed := b.primed
		b.primed = Event{}
		b.mu.Unlock()

		if !yield(primed.Text, nil) {
			return
		}
		if primed.Done {
			yield(api.DoneLine, nil)
			return
		}

		for {
			snap, err := b.src.Next(ctx)
			if errors.Is(err, io.EOF) {
				debug.Log("bridge", "source exhausted", zap.String("stream_id", b.streamID))
				return
			}
			if err != nil {
				yield("", err)
				return
			}

			ev, err := b.encode(snap)
			if err != nil {
				yield("", err)
				return
			}
			if !yield(ev.Text, nil) {
				return
			}
			if ev.Done {
				yield(api.DoneLine, nil)
				return
			}
		}
	}
}

// Lines is Events for consumers that only relay text: a failure becomes the
// "error: <message>" line, and a stream cut short by ctx just ends.
func (b *Bridge) Lines(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line, err := range b.Events(ctx) {
			if err != nil {
				var ok bool
				if line, ok = failureLine(ctx, err); !ok {
					return
				}
				b.logger.Error("agent stream failed", zap.String("stream_id", b.streamID), zap.Error(err))
			}
			if !yield(line) {
				return
			}
		}
	}
}

// failureLine renders a stream failure as its terminating line. It reports
// false when ctx ended, since nobody is left to read the line.
func failureLine(ctx context.Context, err error) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	return api.ErrorLine(err), true
}

// Close releases the source without streaming. It is safe to call at any
// time and more than once.
func (b *Bridge) Close() error {
	b.release()
	return nil
}

func (b *Bridge) release() {
	b.releaseOnce.Do(func() {
		if err := b.src.Close(); err != nil {
			b.logger.Warn("closing agent source", zap.String("stream_id", b.streamID), zap.Error(err))
		}
		if err := b.transition(api.PhaseDrained); err != nil {
			b.logger.Warn("stream phase", zap.String("stream_id", b.streamID), zap.Error(err))
		}
	})
}

func (b *Bridge) transition(to api.StreamPhase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if apiErr := api.ValidatePhaseTransition(b.phase, to); apiErr != nil {
		return apiErr
	}
	b.phase = to
	return nil
}
