// Command mock-agent runs a deterministic agent runtime speaking the
// httpagent wire protocol, for local development and conformance runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent/mockagent"
	"github.com/rhuss/agentbridge/pkg/logger"
)

type mockCommander struct {
	addr       string
	format     string
	agentName  string
	chunkDelay time.Duration
	debug      bool
}

func main() {
	if err := newMockCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newMockCmd() *cobra.Command {
	cmder := &mockCommander{}

	cmd := &cobra.Command{
		Use:          "mock-agent",
		Short:        "Serve a deterministic agent runtime",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.addr, "addr", ":9090", "Listen address")
	cmd.Flags().StringVar(&cmder.format, "format", mockagent.FormatNDJSON, "Response framing: ndjson or sse")
	cmd.Flags().StringVar(&cmder.agentName, "agent-name", "assistant", "Name on assistant history entries")
	cmd.Flags().DurationVar(&cmder.chunkDelay, "chunk-delay", 50*time.Millisecond, "Pause between snapshots")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Log at DEBUG level")

	return cmd
}

func (c *mockCommander) run(ctx context.Context) error {
	if c.format != mockagent.FormatNDJSON && c.format != mockagent.FormatSSE {
		return fmt.Errorf("unknown format %q", c.format)
	}

	log := logger.NewLogger(c.debug)
	defer func() { _ = log.Sync() }()

	srv := &http.Server{
		Addr: c.addr,
		Handler: mockagent.Handler(mockagent.Config{
			Format:     c.format,
			AgentName:  c.agentName,
			ChunkDelay: c.chunkDelay,
			Logger:     log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock agent starting", zap.String("addr", c.addr), zap.String("format", c.format))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("mock agent shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
