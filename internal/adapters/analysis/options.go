package analysis

import (
	"net/http"
	"time"

	"github.com/okian/dronesoccer/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds /analyze and /health calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBatchTimeout bounds /batch-analyze calls.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
