// Package analysis is the HTTP client of the external drone analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/pkg/logger"
)

// Default call bounds.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultBatchTimeout = 60 * time.Second
)

const maxErrorBody = 4 << 10

// Client calls GET /health, POST /analyze and POST /batch-analyze.
type Client struct {
	baseURL      string
	http         *http.Client
	timeout      time.Duration
	batchTimeout time.Duration
	log          logger.Logger
}

var _ dispatch.Analyzer = (*Client)(nil)

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{},
		timeout:      DefaultTimeout,
		batchTimeout: DefaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("analysis")
	}
	return c
}

// Analyze sends one team's round telemetry.
func (c *Client) Analyze(ctx context.Context, req dispatch.TeamPayload) (dispatch.TeamResult, error) {
	var out dispatch.TeamResult
	err := c.do(ctx, http.MethodPost, "/analyze", c.timeout, req, &out)
	return out, err
}

// BatchAnalyze sends both teams in one call.
func (c *Client) BatchAnalyze(ctx context.Context, req dispatch.BatchPayload) (dispatch.BatchResult, error) {
	var out dispatch.BatchResult
	err := c.do(ctx, http.MethodPost, "/batch-analyze", c.batchTimeout, req, &out)
	return out, err
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) (dispatch.Health, error) {
	var out dispatch.Health
	err := c.do(ctx, http.MethodGet, "/health", c.timeout, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, body, out any) error {
	fail := func(status int, err error) error {
		c.log.Debug(ctx, "analysis call failed",
			logger.String("method", method), logger.String("path", path),
			logger.Int("status", status), logger.Error(err))
		return &CallError{Method: method, Path: path, Status: status, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(0, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fail(0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, unwrapURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError keeps the service's own message: FastAPI's {"detail": ...}
// when present, otherwise the start of the body.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail any `json:"detail"`
		Error  any `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Detail != nil:
			msg = fmt.Sprint(payload.Detail)
		case payload.Error != nil:
			msg = fmt.Sprint(payload.Error)
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}

// unwrapURL drops the *url.Error envelope, which repeats method and URL.
func unwrapURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
