package config

import (
	"strings"
	"time"

	"github.com/c360/dataprocessor/errors"
)

// Builder assembles a Config fluently. Build fills in defaults and validates.
//
//	cfg, err := config.NewBuilder().
//	    Host("https://api.example.com/").
//	    Timeout(3 * time.Second).
//	    CacheSize(32).
//	    Build()
type Builder struct {
	cfg Config
	// fields the caller set explicitly, so Build does not overwrite them
	testURLSet   bool
	userAgentSet bool
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: *DefaultConfig()}
}

// Host sets the server host. A leading "http://", "https://" or "file://"
// also sets the scheme; a trailing slash is dropped.
func (b *Builder) Host(host string) *Builder {
	host = strings.TrimSuffix(host, "/")
	for _, scheme := range []string{"https", "http", "file"} {
		if rest, ok := cutPrefixFold(host, scheme+"://"); ok {
			b.cfg.Scheme = scheme
			host = rest
			break
		}
	}
	b.cfg.Host = host
	return b
}

// Port sets the server port; 0 means the scheme default.
func (b *Builder) Port(port int) *Builder {
	b.cfg.Port = port
	return b
}

// Scheme sets the URL scheme.
func (b *Builder) Scheme(scheme string) *Builder {
	b.cfg.Scheme = strings.ToLower(scheme)
	return b
}

// Timeout sets the transport connect/read timeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.cfg.Timeout = Duration(d)
	return b
}

// Encoding sets the charset used by string processors.
func (b *Builder) Encoding(encoding string) *Builder {
	b.cfg.Encoding = encoding
	return b
}

// UserAgent sets the User-Agent header for HTTP requests.
func (b *Builder) UserAgent(ua string) *Builder {
	b.cfg.UserAgent = ua
	b.userAgentSet = true
	return b
}

// LogEnabled turns pipeline logging on or off.
func (b *Builder) LogEnabled(enabled bool) *Builder {
	b.cfg.Log.Enabled = enabled
	return b
}

// ShowProcessingTime logs request-to-delivery times when logging is on.
func (b *Builder) ShowProcessingTime(enabled bool) *Builder {
	b.cfg.Log.ShowProcessingTime = enabled
	return b
}

// CheckRequestString logs each request URL in escaped form.
func (b *Builder) CheckRequestString(enabled bool) *Builder {
	b.cfg.CheckRequestString = enabled
	return b
}

// CacheEnabled turns the keyed result cache on or off.
func (b *Builder) CacheEnabled(enabled bool) *Builder {
	b.cfg.Cache.Enabled = enabled
	return b
}

// CacheSize sets the result cache capacity.
func (b *Builder) CacheSize(size int) *Builder {
	b.cfg.Cache.MaxSize = size
	return b
}

// ThreadPoolEnabled switches asynchronous execution between the worker pool
// and one goroutine per call.
func (b *Builder) ThreadPoolEnabled(enabled bool) *Builder {
	b.cfg.ThreadPool.Enabled = enabled
	return b
}

// Workers sets the worker pool size.
func (b *Builder) Workers(n int) *Builder {
	b.cfg.ThreadPool.Workers = n
	return b
}

// TestServerURL sets the URL probed by reachability checks.
func (b *Builder) TestServerURL(u string) *Builder {
	b.cfg.TestServerURL = u
	b.testURLSet = true
	return b
}

// NATS sets the object store server and bucket.
func (b *Builder) NATS(url, bucket string) *Builder {
	b.cfg.NATS.URL = url
	b.cfg.NATS.Bucket = bucket
	return b
}

// Build requires a host, fills remaining defaults and validates.
func (b *Builder) Build() (*Config, error) {
	if b.cfg.Host == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Builder", "Build",
			"server host is empty, set it with Host")
	}
	return b.finish()
}

// BuildLocal builds a configuration for file and object-store sources only;
// the host may be empty.
func (b *Builder) BuildLocal() (*Config, error) {
	return b.finish()
}

func (b *Builder) finish() (*Config, error) {
	cfg := b.cfg
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	if cfg.Encoding == "" {
		cfg.Encoding = DefaultEncoding
	}
	if cfg.UserAgent == "" && !b.userAgentSet {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Duration(DefaultTimeout)
	}
	if !b.testURLSet && cfg.TestServerURL == "" {
		cfg.TestServerURL = cfg.BaseURL()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
