package cache

import (
	"container/list"
	"sync"

	"github.com/c360/dataprocessor/errors"
)

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// lruCache evicts the least recently used entry once maxSize is exceeded.
// Recency is a doubly-linked list, front = most recent.
type lruCache[K comparable, V any] struct {
	mu       sync.Mutex
	maxSize  int
	items    map[K]*list.Element
	order    *list.List
	stats    *Statistics
	metrics  *cacheMetrics
	evictFn  EvictCallback[K, V]
	validate KeyValidator[K]
}

func newLRUCache[K comparable, V any](maxSize int, opts *cacheOptions[K, V]) (*lruCache[K, V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "newLRUCache",
			"max size must be positive")
	}

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newLRUCache", "metrics registration")
		}
	}

	return &lruCache[K, V]{
		maxSize:  maxSize,
		items:    make(map[K]*list.Element),
		order:    list.New(),
		stats:    NewStatistics(),
		metrics:  metrics,
		evictFn:  opts.evictCallback,
		validate: opts.validateKey,
	}, nil
}

// Get retrieves a value by key and marks it as recently used.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return element.Value.(*lruEntry[K, V]).value, true
}

// Peek retrieves a value without changing its recency or the hit counters.
func (c *lruCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		return element.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Set stores a value and marks it as recently used, evicting the least
// recently used entry when the cache grows past its capacity.
func (c *lruCache[K, V]) Set(key K, value V) (bool, error) {
	if c.validate != nil {
		if err := c.validate(key); err != nil {
			return false, err
		}
	}

	c.mu.Lock()

	if element, exists := c.items[key]; exists {
		element.Value.(*lruEntry[K, V]).value = value
		c.order.MoveToFront(element)
		c.stats.Set()
		if c.metrics != nil {
			c.metrics.recordSet()
		}
		c.mu.Unlock()
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
	evicted := c.evictIfNeededLocked()

	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(len(c.items))
	}
	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return true, nil
}

// Delete removes an entry by key.
func (c *lruCache[K, V]) Delete(key K) (bool, error) {
	if c.validate != nil {
		if err := c.validate(key); err != nil {
			return false, err
		}
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}

	entry := c.removeElementLocked(element)
	c.stats.Delete()
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.recordDelete()
		c.metrics.updateSize(len(c.items))
	}
	c.mu.Unlock()

	c.notifyEvicted([]*lruEntry[K, V]{entry})
	return true, nil
}

// Clear removes all entries, notifying the eviction callback oldest first.
func (c *lruCache[K, V]) Clear() error {
	c.mu.Lock()
	var removed []*lruEntry[K, V]
	if c.evictFn != nil {
		removed = make([]*lruEntry[K, V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			removed = append(removed, element.Value.(*lruEntry[K, V]))
		}
	}

	c.items = make(map[K]*list.Element)
	c.order.Init()
	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	c.mu.Unlock()

	c.notifyEvicted(removed)
	return nil
}

// Size returns the current number of entries.
func (c *lruCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured maximum size.
func (c *lruCache[K, V]) Capacity() int {
	return c.maxSize
}

// Keys returns the keys in LRU order, most recently used first.
func (c *lruCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[K, V]).key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *lruCache[K, V]) Stats() *Statistics {
	return c.stats
}

// Close is a no-op; the LRU cache has no background goroutines.
func (c *lruCache[K, V]) Close() error {
	return nil
}

// evictIfNeededLocked drops entries from the back until the cache fits.
// Must be called with mu held.
func (c *lruCache[K, V]) evictIfNeededLocked() []*lruEntry[K, V] {
	var evicted []*lruEntry[K, V]
	for len(c.items) > c.maxSize {
		element := c.order.Back()
		if element == nil {
			break
		}
		evicted = append(evicted, c.removeElementLocked(element))
		c.stats.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
	}
	return evicted
}

// removeElementLocked unlinks element from the list and map. Must be called with mu held.
func (c *lruCache[K, V]) removeElementLocked(element *list.Element) *lruEntry[K, V] {
	entry := element.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	return entry
}

func (c *lruCache[K, V]) notifyEvicted(entries []*lruEntry[K, V]) {
	if c.evictFn == nil {
		return
	}
	for _, entry := range entries {
		c.evictFn(entry.key, entry.value)
	}
}
