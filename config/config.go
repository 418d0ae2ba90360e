package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/pkg/cache"
	"github.com/c360/dataprocessor/pkg/tlsutil"
)

// Defaults applied by DefaultConfig and the Builder.
const (
	DefaultTimeout   = 5 * time.Second
	DefaultCacheSize = 10
	DefaultScheme    = "http"
	DefaultEncoding  = "utf-8"
	DefaultUserAgent = "dataprocessor/1.0 (+https://github.com/c360/dataprocessor)"
)

// Config is the process-wide data processor configuration. It is built once
// and only read afterwards.
type Config struct {
	Host      string   `json:"host" yaml:"host"`
	Port      int      `json:"port,omitempty" yaml:"port,omitempty"`
	Scheme    string   `json:"scheme" yaml:"scheme"`
	Timeout   Duration `json:"timeout" yaml:"timeout"`
	Encoding  string   `json:"encoding" yaml:"encoding"`
	UserAgent string   `json:"user_agent" yaml:"user_agent"`

	// CheckRequestString logs each request URL in escaped form.
	CheckRequestString bool `json:"check_request_string" yaml:"check_request_string"`

	// TestServerURL is probed by reachability checks.
	TestServerURL string `json:"test_server_url,omitempty" yaml:"test_server_url,omitempty"`

	// TLS applies to outbound HTTPS, WSS and probe connections.
	TLS tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	Cache      cache.Config  `json:"cache" yaml:"cache"`
	Log        LogConfig     `json:"log" yaml:"log"`
	ThreadPool PoolConfig    `json:"thread_pool" yaml:"thread_pool"`
	NATS       NATSConfig    `json:"nats" yaml:"nats"`
	S3         S3Config      `json:"s3" yaml:"s3"`
	Redis      RedisConfig   `json:"redis" yaml:"redis"`
	Metrics    MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LogConfig controls pipeline logging.
type LogConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	ShowProcessingTime bool   `json:"show_processing_time" yaml:"show_processing_time"`
	Level              string `json:"level" yaml:"level"`
	Format             string `json:"format" yaml:"format"`
}

// PoolConfig controls the worker pool used for asynchronous execution.
type PoolConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Workers <= 0 means two per CPU.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
	// RateLimit caps dequeues per second; 0 disables.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// NATSConfig points object-store requests at a NATS server.
type NATSConfig struct {
	URL            string   `json:"url,omitempty" yaml:"url,omitempty"`
	Bucket         string   `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	ConnectTimeout Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	User           string   `json:"user,omitempty" yaml:"user,omitempty"`
	Password       string   `json:"password,omitempty" yaml:"password,omitempty"`
	Token          string   `json:"token,omitempty" yaml:"token,omitempty"`
}

// S3Config points S3 requests at a bucket.
type S3Config struct {
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// RedisConfig points Redis requests at a server.
type RedisConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	DB   int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and no host.
func DefaultConfig() *Config {
	return &Config{
		Scheme:    DefaultScheme,
		Timeout:   Duration(DefaultTimeout),
		Encoding:  DefaultEncoding,
		UserAgent: DefaultUserAgent,
		Cache: cache.Config{
			Enabled: true,
			MaxSize: DefaultCacheSize,
		},
		Log: LogConfig{
			Enabled:            true,
			ShowProcessingTime: true,
			Level:              "info",
			Format:             "text",
		},
		ThreadPool: PoolConfig{Enabled: true},
		NATS: NATSConfig{
			ConnectTimeout: Duration(5 * time.Second),
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Validate checks field ranges. An empty host is allowed for configurations
// that only read local sources.
func (c *Config) Validate() error {
	if c == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nil configuration")
	}

	var problems []string
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Timeout.Std() <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	switch strings.ToLower(c.Scheme) {
	case "http", "https", "file", "":
	default:
		problems = append(problems, fmt.Sprintf("unsupported scheme %q", c.Scheme))
	}
	if c.Cache.MaxSize < 0 {
		problems = append(problems, fmt.Sprintf("cache.max_size %d cannot be negative", c.Cache.MaxSize))
	}
	if c.ThreadPool.RateLimit < 0 {
		problems = append(problems, "thread_pool.rate_limit cannot be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unsupported log format %q", c.Log.Format))
	}
	if c.TestServerURL != "" {
		if _, err := url.ParseRequestURI(c.TestServerURL); err != nil {
			problems = append(problems, fmt.Sprintf("test_server_url: %v", err))
		}
	}
	if err := c.TLS.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "validate configuration")
	}
	return nil
}

// BaseURL returns scheme://host[:port], or "" when no host is configured.
func (c *Config) BaseURL() string {
	if c.Host == "" {
		return ""
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	host := c.Host
	if c.Port > 0 {
		host += ":" + strconv.Itoa(c.Port)
	}
	return scheme + "://" + host
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TLS.CAFiles = append([]string(nil), c.TLS.CAFiles...)
	return &clone
}

// String renders the configuration as indented JSON with NATS secrets masked.
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "***"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "***"
	}
	data, err := json.MarshalIndent(&redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{host=%s}", c.Host)
	}
	return string(data)
}
