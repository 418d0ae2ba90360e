package cache

import (
	"github.com/c360/dataprocessor/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[K comparable, V any] func(*cacheOptions[K, V])

// cacheOptions holds internal configuration for cache instances.
// Statistics are always collected; Prometheus metrics are optional.
type cacheOptions[K comparable, V any] struct {
	metricsReg    metric.MetricsRegistrar
	metricsPrefix string
	evictCallback EvictCallback[K, V]
	validateKey   KeyValidator[K]
}

// WithMetrics exports cache statistics as Prometheus metrics labelled with prefix.
// A nil registry or empty prefix leaves metrics off.
func WithMetrics[K comparable, V any](registry metric.MetricsRegistrar, prefix string) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback run for every removed entry.
func WithEvictionCallback[K comparable, V any](callback EvictCallback[K, V]) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		opts.evictCallback = callback
	}
}

// WithKeyValidator rejects keys on Set and Delete.
func WithKeyValidator[K comparable, V any](validate KeyValidator[K]) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		opts.validateKey = validate
	}
}

func applyOptions[K comparable, V any](options ...Option[K, V]) *cacheOptions[K, V] {
	opts := &cacheOptions[K, V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
