package resultcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/execution"
	"github.com/c360/dataprocessor/metric"
	"github.com/c360/dataprocessor/pkg/cache"
	"github.com/c360/dataprocessor/processor"
	"github.com/c360/dataprocessor/request"
)

// Resolution says how Submit handled a key.
type Resolution string

const (
	// ResolutionNew started a unit for an unknown key.
	ResolutionNew Resolution = "new"
	// ResolutionForced replaced an existing unit with a fresh one.
	ResolutionForced Resolution = "forced"
	// ResolutionRedelivered handed a finished unit's result to the new callback.
	ResolutionRedelivered Resolution = "redelivered"
	// ResolutionRunning left a unit still in flight alone; its current
	// callback receives the result.
	ResolutionRunning Resolution = "running"
)

// entry is the part of an execution.Unit the cache needs without knowing T.
type entry interface {
	ID() string
	IsFinished() bool
	DetachCallback()
}

// Cache maps caller-chosen integer keys to execution units, keeping the most
// recently used ones. Evicting a unit never stops it; it only stops being
// found.
type Cache struct {
	mu    sync.Mutex
	units cache.Cache[int, entry]

	exec     execution.Executor
	delivery execution.Context
	logger   *slog.Logger
	metrics  *metric.Metrics
	registry metric.MetricsRegistrar
	showTime bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger handed to every unit.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDelivery sets the context callbacks and redeliveries are posted to.
func WithDelivery(d execution.Context) Option {
	return func(c *Cache) { c.delivery = d }
}

// WithMetrics records submissions by resolution and passes m to every unit.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithMetricsRegistry exports LRU hit, miss and eviction counters.
func WithMetricsRegistry(registry metric.MetricsRegistrar) Option {
	return func(c *Cache) { c.registry = registry }
}

// WithProcessingTime turns on per-unit timing logs.
func WithProcessingTime(enabled bool) Option {
	return func(c *Cache) { c.showTime = enabled }
}

// New creates a cache holding at most cfg.MaxSize units. A disabled cache or
// a non-positive size is a configuration error. A nil exec runs units on
// their own goroutines.
func New(cfg cache.Config, exec execution.Executor, opts ...Option) (*Cache, error) {
	if !cfg.Enabled || cfg.MaxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ResultCache", "New",
			fmt.Sprintf("cache requires enabled=true and max_size > 0, got enabled=%t max_size=%d", cfg.Enabled, cfg.MaxSize))
	}
	if exec == nil {
		exec = execution.GoExecutor{}
	}

	c := &Cache{
		exec:     exec,
		delivery: execution.Inline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cacheOpts := []cache.Option[int, entry]{
		cache.WithEvictionCallback(func(key int, e entry) {
			c.logger.Debug("unit dropped from result cache", "key", key, "unit_id", e.ID(), "finished", e.IsFinished())
		}),
	}
	if c.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[int, entry](c.registry, "result_cache"))
	}

	units, err := cache.NewLRU(cfg.MaxSize, cacheOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ResultCache", "New", "create lru")
	}
	c.units = units
	return c, nil
}

// Submit runs req under key, coalescing with whatever the key already holds:
//
//   - unknown key, or force: a new unit is stored and started; with force the
//     previous unit keeps running but its callback is detached.
//   - finished unit: cb receives the stored result; nothing is fetched.
//   - running unit: nothing changes. cb is not attached; the unit delivers
//     to the callback it already has.
//
// A key holding a unit of another result type is rejected.
func Submit[T any](ctx context.Context, c *Cache, key int, req request.Request, desc processor.Descriptor[T], cb execution.Callback[T], force bool) (*execution.Unit[T], Resolution, error) {
	c.mu.Lock()
	existing, found := c.units.Get(key)

	if found && !force {
		c.mu.Unlock()

		unit, ok := existing.(*execution.Unit[T])
		if !ok {
			return nil, "", errors.WrapInvalid(errors.ErrInvalidArgument, "ResultCache", "Submit",
				fmt.Sprintf("key %d holds a unit with a different result type", key))
		}

		resolution := ResolutionRunning
		if unit.RedeliverTo(cb) {
			resolution = ResolutionRedelivered
			c.logger.Debug("cached unit reused", "key", key, "unit_id", unit.ID(), "resolution", resolution)
		} else {
			c.logger.Info("unit for key still running, submission ignored", "key", key, "unit_id", unit.ID())
		}
		c.metrics.RecordCacheResolution(string(resolution))
		return unit, resolution, nil
	}

	unit, err := execution.New(req, desc,
		execution.WithCallback(cb),
		execution.WithDelivery[T](c.delivery),
		execution.WithLogger[T](c.logger),
		execution.WithMetrics[T](c.metrics),
		execution.WithProcessingTime[T](c.showTime),
	)
	if err != nil {
		c.mu.Unlock()
		return nil, "", err
	}

	resolution := ResolutionNew
	if found {
		resolution = ResolutionForced
		existing.DetachCallback()
		c.logger.Info("forced refresh, previous unit detached", "key", key, "previous_unit_id", existing.ID())
	}
	if _, err := c.units.Set(key, unit); err != nil {
		c.mu.Unlock()
		return nil, "", errors.Wrap(err, "ResultCache", "Submit", "store unit")
	}
	c.mu.Unlock()

	if err := unit.ExecuteAsync(ctx, c.exec); err != nil {
		c.forget(key, unit)
		return nil, "", err
	}
	c.metrics.RecordCacheResolution(string(resolution))
	return unit, resolution, nil
}

// forget removes key if it still maps to e.
func (c *Cache) forget(key int, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.units.Peek(key); ok && current == e {
		_, _ = c.units.Delete(key)
	}
}

// Lookup returns the unit stored under key without touching recency.
func Lookup[T any](c *Cache, key int) (*execution.Unit[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.units.Peek(key)
	if !ok {
		return nil, false
	}
	unit, ok := e.(*execution.Unit[T])
	return unit, ok
}

// Remove forgets key. A running unit finishes and delivers as usual.
func (c *Cache) Remove(key int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed, _ := c.units.Delete(key)
	return removed
}

// Len returns the number of stored units.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units.Size()
}

// Keys returns the stored keys, most recently used first.
func (c *Cache) Keys() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units.Keys()
}

// Capacity returns the configured maximum.
func (c *Cache) Capacity() int { return c.units.Capacity() }

// Stats returns the LRU counters.
func (c *Cache) Stats() *cache.Statistics { return c.units.Stats() }

// Clear forgets every key.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units.Clear()
}
