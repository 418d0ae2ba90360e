// Package resultcache coalesces requests by key so repeated submissions reuse
// one execution unit.
//
// Submit resolves a key four ways: new, forced, redelivered or running. The
// map is an LRU from pkg/cache; lookup, insert and eviction happen under one
// mutex per call, while callback attachment and unit submission happen
// after it is released so an inline callback may call Submit again.
package resultcache
