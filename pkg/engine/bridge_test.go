package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/engine"
)

func snapshot(entries ...agent.HistoryEntry) agent.Snapshot {
	return agent.Snapshot{ChatHistory: entries}
}

func assistant(content string) agent.Snapshot {
	return snapshot(
		agent.HistoryEntry{Role: "user", Content: "question"},
		agent.HistoryEntry{Role: "assistant", Content: content},
	)
}

func decodeLine(line string) api.ChatCompletionChunk {
	ExpectWithOffset(1, line).To(HavePrefix(api.DataPrefix))
	ExpectWithOffset(1, line).To(HaveSuffix("\n\n"))
	var chunk api.ChatCompletionChunk
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(line, api.DataPrefix), "\n\n")), &chunk)).To(Succeed())
	return chunk
}

func collectLines(b *engine.Bridge) []string {
	var lines []string
	for line := range b.Lines(context.Background()) {
		lines = append(lines, line)
	}
	return lines
}

// blockingSource never yields until its context ends or it is closed.
type blockingSource struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{closed: make(chan struct{})}
}

func (s *blockingSource) Next(ctx context.Context) (agent.Snapshot, error) {
	select {
	case <-ctx.Done():
		return agent.Snapshot{}, ctx.Err()
	case <-s.closed:
		return agent.Snapshot{}, agent.ErrSourceClosed
	}
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *blockingSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

var _ = Describe("Bridge", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Prime", func() {
		It("reads exactly one snapshot", func() {
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a"), assistant("b")}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(src.Consumed()).To(Equal(1))
			Expect(b.Phase()).To(Equal(api.PhasePriming))
			Expect(src.Closed()).To(BeFalse())
		})

		It("generates a stream ID when none is given", func() {
			b, err := engine.Prime(ctx, agent.NewSliceSource([]agent.Snapshot{assistant("a")}, nil), engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(api.ValidateStreamID(b.StreamID())).To(BeTrue())
		})

		Context("when the source ends before the first snapshot", func() {
			It("fails with ErrNoSnapshot and closes the source", func() {
				src := agent.NewSliceSource(nil, nil)

				_, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).To(MatchError(agent.ErrNoSnapshot))
				Expect(src.Closed()).To(BeTrue())
			})
		})

		Context("when the first snapshot has no history", func() {
			It("fails with ErrEmptyHistory and closes the source", func() {
				src := agent.NewSliceSource([]agent.Snapshot{{}}, nil)

				_, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).To(MatchError(agent.ErrEmptyHistory))
				Expect(src.Closed()).To(BeTrue())
			})
		})

		Context("when the first read fails", func() {
			It("propagates the error and closes the source", func() {
				boom := errors.New("decode failed")
				src := agent.NewSliceSource(nil, boom)

				_, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).To(MatchError(boom))
				Expect(src.Closed()).To(BeTrue())
			})
		})

		Context("with a primer timeout", func() {
			It("gives up on a silent agent and releases it", func() {
				src := newBlockingSource()

				start := time.Now()
				_, err := engine.Prime(ctx, src, engine.BridgeOptions{PrimerTimeout: 50 * time.Millisecond})
				Expect(err).To(MatchError(engine.ErrPrimerTimeout))
				Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
				Expect(src.isClosed()).To(BeTrue())
			})

			It("does not interfere with a prompt agent", func() {
				src := agent.NewSliceSource([]agent.Snapshot{assistant("fast")}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{PrimerTimeout: time.Second})
				Expect(err).NotTo(HaveOccurred())
				Expect(collectLines(b)).To(HaveLen(1))
			})
		})

		Context("when the caller cancels during priming", func() {
			It("returns the context error rather than a timeout", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()

				_, err := engine.Prime(cctx, newBlockingSource(), engine.BridgeOptions{PrimerTimeout: time.Minute})
				Expect(err).To(MatchError(context.Canceled))
				Expect(errors.Is(err, engine.ErrPrimerTimeout)).To(BeFalse())
			})
		})
	})

	Describe("Lines", func() {
		It("starts with the primed snapshot's content and role", func() {
			src := agent.NewSliceSource([]agent.Snapshot{
				snapshot(agent.HistoryEntry{Role: "assistant", Content: "hi"}),
			}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())

			lines := collectLines(b)
			Expect(lines).To(HaveLen(1))

			chunk := decodeLine(lines[0])
			Expect(chunk.Object).To(Equal(api.ObjectChatCompletionChunk))
			Expect(chunk.Choices).To(HaveLen(1))
			Expect(chunk.Choices[0].Delta.Content).To(Equal("hi"))
			Expect(chunk.Choices[0].Role).To(Equal("assistant"))
			Expect(chunk.Choices[0].FinishReason).To(BeNil())
			Expect(chunk.SystemFingerprint).To(BeNil())
		})

		It("emits one line per snapshot with a shared ID", func() {
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a"), assistant("b"), assistant("c")}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{StreamID: "0b8e3f6a-4c1d-4f2e-9a7b-3c5d6e7f8091"})
			Expect(err).NotTo(HaveOccurred())

			lines := collectLines(b)
			Expect(lines).To(HaveLen(3))

			for i, want := range []string{"a", "b", "c"} {
				chunk := decodeLine(lines[i])
				Expect(chunk.ID).To(Equal("0b8e3f6a-4c1d-4f2e-9a7b-3c5d6e7f8091"))
				Expect(chunk.Choices[0].Delta.Content).To(Equal(want))
			}
		})

		It("reports the translator's model", func() {
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a")}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{Translator: engine.NewTranslator("gpt-4o")})
			Expect(err).NotTo(HaveOccurred())

			Expect(decodeLine(collectLines(b)[0]).Model).To(Equal("gpt-4o"))
		})

		Context("when the source is exhausted right after priming", func() {
			It("yields exactly the primed line and no terminator", func() {
				src := agent.NewSliceSource([]agent.Snapshot{assistant("only")}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				lines := collectLines(b)
				Expect(lines).To(HaveLen(1))
				Expect(lines).NotTo(ContainElement(api.DoneLine))
				Expect(src.Closed()).To(BeTrue())
				Expect(b.Phase()).To(Equal(api.PhaseDrained))
			})
		})

		Context("when the source fails after one further snapshot", func() {
			It("yields primed, translated, then the error line and ends", func() {
				src := agent.NewSliceSource([]agent.Snapshot{assistant("first"), assistant("second")}, errors.New("agent crashed"))

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				lines := collectLines(b)
				Expect(lines).To(HaveLen(3))
				Expect(decodeLine(lines[0]).Choices[0].Delta.Content).To(Equal("first"))
				Expect(decodeLine(lines[1]).Choices[0].Delta.Content).To(Equal("second"))
				Expect(lines[2]).To(Equal("error: agent crashed"))
				Expect(lines).NotTo(ContainElement(api.DoneLine))
				Expect(src.Closed()).To(BeTrue())
			})
		})

		Context("when a later snapshot has no history", func() {
			It("ends with an error line", func() {
				src := agent.NewSliceSource([]agent.Snapshot{assistant("first"), {}}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				lines := collectLines(b)
				Expect(lines).To(HaveLen(2))
				Expect(lines[1]).To(Equal(api.ErrorLine(agent.ErrEmptyHistory)))
			})
		})

		Context("when the consumer stops early", func() {
			It("releases the source", func() {
				src := agent.NewSliceSource([]agent.Snapshot{assistant("a"), assistant("b"), assistant("c")}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				for range b.Lines(ctx) {
					break
				}
				Expect(src.Closed()).To(BeTrue())
				Expect(src.Consumed()).To(Equal(1))
				Expect(b.Phase()).To(Equal(api.PhaseDrained))
			})
		})

		Context("when the primed snapshot is marked done", func() {
			It("yields the primed line and the terminator, then ends", func() {
				done := assistant("final")
				done.Done = true
				src := agent.NewSliceSource([]agent.Snapshot{done, assistant("never")}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				lines := collectLines(b)
				Expect(lines).To(HaveLen(2))
				Expect(decodeLine(lines[0]).Choices[0].Delta.Content).To(Equal("final"))
				Expect(lines[1]).To(Equal(api.DoneLine))
				Expect(src.Consumed()).To(Equal(1))
				Expect(src.Closed()).To(BeTrue())
			})
		})

		Context("when a later snapshot is marked done", func() {
			It("yields its line and the terminator, then releases the source", func() {
				done := assistant("second")
				done.Done = true
				src := agent.NewSliceSource([]agent.Snapshot{assistant("first"), done, assistant("never")}, nil)

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				lines := collectLines(b)
				Expect(lines).To(HaveLen(3))
				Expect(decodeLine(lines[1]).Choices[0].Delta.Content).To(Equal("second"))
				Expect(lines[2]).To(Equal(api.DoneLine))
				Expect(src.Consumed()).To(Equal(2))
				Expect(src.Closed()).To(BeTrue())
				Expect(b.Phase()).To(Equal(api.PhaseDrained))
			})
		})

		Context("when the context ends mid-stream", func() {
			It("ends without an error line", func() {
				src := &primedBlockingSource{blockingSource: newBlockingSource()}

				b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
				Expect(err).NotTo(HaveOccurred())

				cctx, cancel := context.WithCancel(ctx)
				defer cancel()
				var lines []string
				for line := range b.Lines(cctx) {
					lines = append(lines, line)
					cancel()
				}
				Expect(lines).To(HaveLen(1))
				Expect(lines[0]).To(HavePrefix(api.DataPrefix))
				Expect(src.isClosed()).To(BeTrue())
			})
		})

		It("is not restartable", func() {
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a"), assistant("b")}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(collectLines(b)).To(HaveLen(2))
			Expect(collectLines(b)).To(BeEmpty())
		})
	})

	Describe("Events", func() {
		It("reports mid-stream failures as errors instead of lines", func() {
			boom := errors.New("agent crashed")
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a")}, boom)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())

			var lines []string
			var errs []error
			for line, err := range b.Events(ctx) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				lines = append(lines, line)
			}
			Expect(lines).To(HaveLen(1))
			Expect(errs).To(ConsistOf(MatchError(boom)))
		})

		It("stops when the context is cancelled", func() {
			src := &primedBlockingSource{blockingSource: newBlockingSource()}

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())

			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			var errs []error
			for _, err := range b.Events(cctx) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				cancel()
			}
			Expect(errs).To(ConsistOf(MatchError(context.Canceled)))
			Expect(src.isClosed()).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("releases an unread bridge and empties its sequence", func() {
			src := agent.NewSliceSource([]agent.Snapshot{assistant("a")}, nil)

			b, err := engine.Prime(ctx, src, engine.BridgeOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Close()).To(Succeed())
			Expect(b.Close()).To(Succeed())
			Expect(src.Closed()).To(BeTrue())
			Expect(collectLines(b)).To(BeEmpty())
		})
	})
})

// primedBlockingSource yields one snapshot, then blocks.
type primedBlockingSource struct {
	*blockingSource
	served bool
}

func (s *primedBlockingSource) Next(ctx context.Context) (agent.Snapshot, error) {
	if !s.served {
		s.served = true
		return assistant("primed"), nil
	}
	return s.blockingSource.Next(ctx)
}
