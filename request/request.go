package request

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status codes shared by every source. HTTP sources report the response code
// itself, so http.StatusOK is the protocol success code for them.
const (
	StatusFileSuccess  = 0
	StatusError        = -1
	StatusNoConnection = 1001
)

// Request is a built, single-use source of bytes.
type Request interface {
	// InputStream opens the body. It may block on network or disk I/O.
	InputStream(ctx context.Context) (io.ReadCloser, error)
	StatusCode() int
	StatusMessage() string
	// CacheFile is the path the body is saved to before processing, or "".
	CacheFile() string
	// RewriteCacheFile reports whether an existing cache file is overwritten.
	RewriteCacheFile() bool
	StartTime() time.Time
	Close() error
}

// IsSuccess reports whether code is a success status for any source.
func IsSuccess(code int) bool {
	return code == StatusFileSuccess || (code >= http.StatusOK && code < http.StatusMultipleChoices)
}

// Option configures the state every source shares.
type Option func(*Base)

// WithCacheFile saves the body to name; an existing non-empty file is reused.
func WithCacheFile(name string) Option {
	return func(b *Base) {
		b.cacheFile = name
		b.rewrite = false
	}
}

// WithRewriteCacheFile saves the body to name, replacing any existing file.
func WithRewriteCacheFile(name string) Option {
	return func(b *Base) {
		b.cacheFile = name
		b.rewrite = true
	}
}

// WithTag labels the request in log lines.
func WithTag(tag string) Option {
	return func(b *Base) { b.tag = tag }
}

// WithLogger sets the logger used for request log lines.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Base carries the state shared by the concrete sources. Embed it and call
// init from the constructor.
type Base struct {
	cacheFile string
	rewrite   bool
	tag       string
	logger    *slog.Logger

	mu      sync.RWMutex
	start   time.Time
	status  int
	message string

	closeOnce sync.Once
	closeErr  error
}

func (b *Base) init(opts []Option) {
	b.status = StatusError
	b.message = "request not executed"
	b.logger = slog.Default()
	for _, opt := range opts {
		opt(b)
	}
}

// CacheFile implements Request.
func (b *Base) CacheFile() string { return b.cacheFile }

// RewriteCacheFile implements Request.
func (b *Base) RewriteCacheFile() bool { return b.rewrite }

// Tag returns the log label, or "".
func (b *Base) Tag() string { return b.tag }

// StartTime implements Request.
func (b *Base) StartTime() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.start
}

// StatusCode implements Request.
func (b *Base) StatusCode() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// StatusMessage implements Request.
func (b *Base) StatusMessage() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.message
}

func (b *Base) markStarted() {
	b.mu.Lock()
	b.start = time.Now()
	b.mu.Unlock()
}

func (b *Base) setStatus(code int, message string) {
	b.mu.Lock()
	b.status = code
	b.message = message
	b.mu.Unlock()
}

// closeWith runs fn once; later calls return the first result.
func (b *Base) closeWith(fn func() error) error {
	b.closeOnce.Do(func() {
		if fn != nil {
			b.closeErr = fn()
		}
	})
	return b.closeErr
}

func (b *Base) logCall(kind, target string) {
	if b.tag != "" {
		b.logger.Debug("calling source", "kind", kind, "tag", b.tag, "target", target)
		return
	}
	b.logger.Debug("calling source", "kind", kind, "target", target)
}
