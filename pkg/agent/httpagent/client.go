package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/debug"
)

// Client runs agents on a remote runtime. It implements agent.Runtime.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxLine    int
	logger     *zap.Logger
}

var _ agent.Runtime = (*Client)(nil)

// runRequest is the wire body of a run.
type runRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages []agent.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// New creates a Client for the runtime at cfg.BaseURL.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpagent: base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// A run lasts as long as the agent keeps talking, so only connection
	// setup and response headers are time-bounded.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.timeout()}).DialContext
	transport.ResponseHeaderTimeout = cfg.timeout()

	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxLine:    cfg.maxLineSize(),
		logger:     logger.Named("httpagent"),
	}, nil
}

// Name returns "http".
func (c *Client) Name() string { return "http" }

// Run posts the conversation and returns a Source over the response body.
// The body stays open until the Source is closed.
func (c *Client) Run(ctx context.Context, req *agent.RunRequest) (agent.Source, error) {
	body, err := json.Marshal(runRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal run request: %s", err.Error()))
	}

	url := c.baseURL + RunPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson, text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Log("agent", "starting run",
		zap.String("url", url),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		apiErr := MapHTTPError(httpResp)
		c.logger.Warn("agent runtime rejected run",
			zap.Int("status", httpResp.StatusCode),
			zap.String("error", apiErr.Message),
		)
		return nil, apiErr
	}

	return newLineSource(httpResp.Body, c.maxLine, c.logger), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
