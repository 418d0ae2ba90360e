// Package cache provides a generic, thread-safe LRU cache and a no-op cache.
//
// A Cache[K, V] maps comparable keys to values. The LRU implementation keeps
// recency in a doubly-linked list and evicts from the back as soon as an
// insert grows the cache past its capacity, so Size never exceeds Capacity
// after Set returns.
//
//	lru, err := cache.NewLRU[int, string](10,
//	    cache.WithEvictionCallback(func(k int, v string) {
//	        logger.Debug("evicted", "key", k)
//	    }),
//	)
//
// Get promotes the entry to most recently used; Peek reads without promoting.
// Eviction, Delete and Clear hand removed entries to the eviction callback
// after the cache lock is released, so callbacks may call back into the cache.
//
// Statistics are always collected. WithMetrics additionally exports them as
// Prometheus collectors under the dataprocessor_cache_* names, labelled with
// the given component prefix.
//
// Config{Enabled, MaxSize} drives NewFromConfig: a disabled config yields the
// no-op cache, a non-positive MaxSize is an invalid-configuration error.
package cache
