package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/dataprocessor/errors"
)

// DefaultEnvPrefix is prepended to every environment override.
const DefaultEnvPrefix = "DATAPROCESSOR"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader with validation on and the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a JSON or YAML file. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) *Loader {
	l.layers = append(l.layers, path)
	return l
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) *Loader {
	l.validation = enable
	return l
}

// WithEnvPrefix changes the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
	return l
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load starts from DefaultConfig, merges each layer, applies environment
// overrides and validates.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads a layer into a generic map keyed by JSON field names.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch configFormat(path) {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON structure: %v", errors.ErrInvalidConfig, err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
		}
	}
	return raw, nil
}

// mergeFromMap overlays only the fields present in override.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if len(override) == 0 {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

func envString(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		set(cfg, v)
		return nil
	}
}

func envInt(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(cfg, n)
		return nil
	}
}

func envBool(set func(*Config, bool)) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}
}

func envDuration(set func(*Config, Duration)) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			set(cfg, Duration(time.Duration(ms)*time.Millisecond))
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		set(cfg, Duration(d))
		return nil
	}
}

var envBindings = []envBinding{
	{"HOST", envString(func(c *Config, v string) {
		b := &Builder{cfg: *c}
		b.Host(v)
		c.Host, c.Scheme = b.cfg.Host, b.cfg.Scheme
	})},
	{"PORT", envInt(func(c *Config, v int) { c.Port = v })},
	{"SCHEME", envString(func(c *Config, v string) { c.Scheme = strings.ToLower(v) })},
	{"TIMEOUT", envDuration(func(c *Config, v Duration) { c.Timeout = v })},
	{"ENCODING", envString(func(c *Config, v string) { c.Encoding = v })},
	{"USER_AGENT", envString(func(c *Config, v string) { c.UserAgent = v })},
	{"TEST_SERVER_URL", envString(func(c *Config, v string) { c.TestServerURL = v })},
	{"CACHE_ENABLED", envBool(func(c *Config, v bool) { c.Cache.Enabled = v })},
	{"CACHE_SIZE", envInt(func(c *Config, v int) { c.Cache.MaxSize = v })},
	{"LOG_ENABLED", envBool(func(c *Config, v bool) { c.Log.Enabled = v })},
	{"LOG_LEVEL", envString(func(c *Config, v string) { c.Log.Level = v })},
	{"LOG_FORMAT", envString(func(c *Config, v string) { c.Log.Format = v })},
	{"THREAD_POOL_ENABLED", envBool(func(c *Config, v bool) { c.ThreadPool.Enabled = v })},
	{"WORKERS", envInt(func(c *Config, v int) { c.ThreadPool.Workers = v })},
	{"NATS_URL", envString(func(c *Config, v string) { c.NATS.URL = v })},
	{"NATS_BUCKET", envString(func(c *Config, v string) { c.NATS.Bucket = v })},
	{"NATS_USER", envString(func(c *Config, v string) { c.NATS.User = v })},
	{"NATS_PASSWORD", envString(func(c *Config, v string) { c.NATS.Password = v })},
	{"NATS_TOKEN", envString(func(c *Config, v string) { c.NATS.Token = v })},
	{"S3_REGION", envString(func(c *Config, v string) { c.S3.Region = v })},
	{"S3_BUCKET", envString(func(c *Config, v string) { c.S3.Bucket = v })},
	{"S3_ENDPOINT", envString(func(c *Config, v string) { c.S3.Endpoint = v })},
	{"REDIS_ADDR", envString(func(c *Config, v string) { c.Redis.Addr = v })},
	{"REDIS_DB", envInt(func(c *Config, v int) { c.Redis.DB = v })},
	{"METRICS_ENABLED", envBool(func(c *Config, v bool) { c.Metrics.Enabled = v })},
	{"METRICS_ADDR", envString(func(c *Config, v string) { c.Metrics.Addr = v })},
}

// applyEnvOverrides applies PREFIX_NAME environment variables over cfg.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, binding := range envBindings {
		key := l.envPrefix + "_" + binding.name
		val, ok := lookup(key)
		if !ok || val == "" {
			continue
		}
		if err := checkEnvValue(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "validate "+key)
		}
		if err := binding.apply(cfg, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, err),
				"Loader", "applyEnvOverrides", "parse "+key)
		}
	}
	return nil
}

// SaveToFile writes the configuration as JSON or YAML depending on the
// file extension.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch configFormat(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode configuration")
	}
	if err := writeConfigFile(path, data); err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "write configuration")
	}
	return nil
}
