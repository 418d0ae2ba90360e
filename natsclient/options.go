package natsclient

import (
	"log/slog"
	"time"

	"github.com/c360/dataprocessor/pkg/retry"
)

// ClientOption configures a Client in NewClient.
type ClientOption func(*Client) error

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithName is reported to the server as the connection name.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithTimeout bounds each dial attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

// WithReconnect sets how a lost connection is re-established. max < 0
// retries forever.
func WithReconnect(max int, wait time.Duration) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		if wait > 0 {
			c.reconnectWait = wait
		}
		return nil
	}
}

// WithDrainTimeout bounds Close.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.drainTimeout = d
		}
		return nil
	}
}

// WithRetry sets how Connect retries the initial dial.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.retry = cfg
		return nil
	}
}

// WithCircuitBreaker opens the circuit after threshold consecutive failures
// and caps its backoff at maxBackoff. Out-of-range values fall back to 5
// failures and one minute.
func WithCircuitBreaker(threshold int32, maxBackoff time.Duration) ClientOption {
	return func(c *Client) error {
		if threshold < 1 {
			threshold = 5
		}
		if maxBackoff < time.Second {
			maxBackoff = time.Minute
		}
		c.circuitThreshold = threshold
		c.maxBackoff = maxBackoff
		return nil
	}
}

// WithAuth authenticates with user and password, a token, or both. Empty
// values are skipped.
func WithAuth(user, password, token string) ClientOption {
	return func(c *Client) error {
		c.username = user
		c.password = password
		c.token = token
		return nil
	}
}

// OnHealthChange registers fn to run when the connection goes up or down.
func OnHealthChange(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}
