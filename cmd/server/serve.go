package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/agent/httpagent"
	"github.com/rhuss/agentbridge/pkg/agent/openaiagent"
	"github.com/rhuss/agentbridge/pkg/config"
	"github.com/rhuss/agentbridge/pkg/debug"
	"github.com/rhuss/agentbridge/pkg/engine"
	"github.com/rhuss/agentbridge/pkg/logger"
	"github.com/rhuss/agentbridge/pkg/ratelimit"
	transporthttp "github.com/rhuss/agentbridge/pkg/transport/http"
)

const serveLongDesc string = `Start the chat completions endpoint.

Every POST /v1/chat/completions starts one agent run and relays its
snapshots as chat.completion.chunk events.

Examples:
  agentbridge serve --config /etc/agentbridge/config.yaml
  AGENTBRIDGE_BACKEND_URL=http://localhost:9090 agentbridge serve --port 8081`

type serveCommander struct {
	configPath string
	port       int
	debug      bool
}

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to the config file")
	cmd.Flags().IntVarP(&cmder.port, "port", "p", 0, "Listen port, overrides the config")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Log at DEBUG level")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.port > 0 {
		cfg.Server.Port = c.port
	}
	if c.debug {
		cfg.Logging.Level = "DEBUG"
	}

	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer func() { _ = log.Sync() }()
	debug.Init(log, cfg.Logging.Debug)

	rt, err := newRuntime(cfg, log)
	if err != nil {
		return fmt.Errorf("creating agent runtime: %w", err)
	}
	defer rt.Close()

	eng, err := engine.New(rt, engine.Config{
		DefaultModel:  cfg.Engine.DefaultModel,
		PrimerTimeout: cfg.Engine.PrimerTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(log),
	}
	if mw := newRateLimitMiddleware(cfg, log); mw != nil {
		opts = append(opts, transporthttp.WithHTTPMiddleware(mw))
	}
	metrics := cfg.Observability.Metrics
	if metrics.Enabled && metrics.Addr == "" {
		opts = append(opts, transporthttp.WithMetricsPath(metrics.Path))
	}
	srv := transporthttp.NewServer(eng, opts...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("agentbridge starting",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("runtime", rt.Name()),
		zap.String("default_model", cfg.Engine.DefaultModel),
		zap.Duration("primer_timeout", cfg.Engine.PrimerTimeout),
		zap.Int("rate_limit_rpm", cfg.Server.RateLimit.RequestsPerMinute))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if metrics.Enabled && metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metrics.Addr, metrics.Path, log)
		})
	}

	err = g.Wait()
	log.Info("agentbridge stopped")
	return err
}

// newRuntime builds the agent runtime selected by engine.runtime.
func newRuntime(cfg *config.Config, log *zap.Logger) (agent.Runtime, error) {
	switch cfg.Engine.Runtime {
	case config.RuntimeOpenAI:
		return openaiagent.New(openaiagent.Config{
			BaseURL:      cfg.Engine.BackendURL,
			APIKey:       cfg.Engine.APIKey,
			SystemPrompt: cfg.Engine.SystemPrompt,
			AgentName:    cfg.Engine.AgentName,
		}, log)
	case config.RuntimeHTTP:
		return httpagent.New(httpagent.Config{
			BaseURL: cfg.Engine.BackendURL,
			APIKey:  cfg.Engine.APIKey,
			Timeout: cfg.Engine.Timeout,
		}, log)
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Engine.Runtime)
	}
}

// newRateLimitMiddleware returns nil when server.rate_limit is disabled.
func newRateLimitMiddleware(cfg *config.Config, log *zap.Logger) func(http.Handler) http.Handler {
	rl := cfg.Server.RateLimit
	limiter := ratelimit.New(ratelimit.Limit{RequestsPerMinute: rl.RequestsPerMinute, Burst: rl.Burst})
	if limiter == nil {
		return nil
	}
	return ratelimit.Middleware(limiter, log.Named("ratelimit"), transporthttp.ChatCompletionsPath)
}

// serveMetrics exposes Prometheus metrics on a dedicated listener until ctx
// is done.
func serveMetrics(ctx context.Context, addr, path string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	ms := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listener starting", zap.String("addr", addr), zap.String("path", path))
		errCh <- ms.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ms.Shutdown(shutdownCtx)
	}
}
