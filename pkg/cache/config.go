package cache

import (
	"fmt"

	"github.com/c360/dataprocessor/errors"
)

// Config contains configuration for cache creation.
type Config struct {
	// Enabled determines if caching is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxSize is the maximum number of entries.
	MaxSize int `json:"max_size" yaml:"max_size"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		MaxSize: 10,
	}
}

// Validate checks if the configuration is valid. A disabled cache is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size must be positive, got %d", c.MaxSize))
	}
	return nil
}

// NewFromConfig creates an LRU cache, or a no-op cache when config.Enabled is false.
func NewFromConfig[K comparable, V any](config Config, options ...Option[K, V]) (Cache[K, V], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation")
	}
	if !config.Enabled {
		return NewNoop[K, V](), nil
	}
	return NewLRU[K, V](config.MaxSize, options...)
}

// NewLRU creates an LRU cache holding at most maxSize entries.
func NewLRU[K comparable, V any](maxSize int, options ...Option[K, V]) (Cache[K, V], error) {
	return newLRUCache[K, V](maxSize, applyOptions(options...))
}

// NewNoop creates a cache that stores nothing and always misses.
func NewNoop[K comparable, V any]() Cache[K, V] {
	return &noopCache[K, V]{}
}

type noopCache[K comparable, V any] struct{}

func (c *noopCache[K, V]) Get(_ K) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[K, V]) Peek(key K) (V, bool) { return c.Get(key) }

func (c *noopCache[K, V]) Set(_ K, _ V) (bool, error) { return false, nil }

func (c *noopCache[K, V]) Delete(_ K) (bool, error) { return false, nil }

func (c *noopCache[K, V]) Clear() error { return nil }

func (c *noopCache[K, V]) Size() int { return 0 }

func (c *noopCache[K, V]) Capacity() int { return 0 }

func (c *noopCache[K, V]) Keys() []K { return nil }

func (c *noopCache[K, V]) Stats() *Statistics { return nil }

func (c *noopCache[K, V]) Close() error { return nil }
