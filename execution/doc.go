// Package execution runs one request through a processor and delivers the
// typed result to a callback.
//
// A Unit moves Created → AcquiringStream → Processing → Delivered, or from
// AcquiringStream to Failed when no byte source could be obtained. The
// outcome (result, status code, status message) is published once as an
// immutable snapshot; Redeliver and RedeliverTo post that snapshot again
// without touching the request. A unit a PoolExecutor discards at shutdown
// fails with errors.ErrShuttingDown instead of running.
//
// Callbacks are posted to a delivery Context. Inline runs them on the
// goroutine that finished the unit; Loop runs them one at a time on its own
// goroutine, which is how a caller that owns an event loop gets results back
// in order.
//
// Units run synchronously with Execute or through an Executor with
// ExecuteAsync. PoolExecutor bounds concurrency with pkg/worker; GoExecutor
// starts a goroutine per unit.
package execution
