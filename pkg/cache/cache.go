// Package cache provides generic, thread-safe bounded caches.
package cache

import (
	"github.com/c360/dataprocessor/errors"
)

// Cache is a generic key/value cache. K is the key type, V the value type.
type Cache[K comparable, V any] interface {
	// Get retrieves a value by key and marks it as recently used.
	Get(key K) (V, bool)

	// Peek retrieves a value without touching recency.
	Peek(key K) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key K, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key K) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Capacity returns the maximum number of entries, or 0 when unbounded.
	Capacity() int

	// Keys returns the keys, most recently used first.
	Keys() []K

	// Stats returns cache statistics, nil for the no-op cache.
	Stats() *Statistics

	// Close releases resources held by the cache.
	Close() error
}

// EvictCallback is called with the key and value of every entry removed by
// eviction, Delete or Clear. It always runs outside the cache lock.
type EvictCallback[K comparable, V any] func(key K, value V)

// KeyValidator rejects keys before they are stored.
type KeyValidator[K comparable] func(key K) error

// NonEmptyString is a KeyValidator for string keys.
func NonEmptyString(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
