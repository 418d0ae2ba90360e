// Package worker provides a generic worker pool with an unbounded FIFO queue.
//
// # Overview
//
// A Pool[T] runs a fixed number of goroutines (two per CPU unless configured)
// that take work items of type T from a queue in submission order. The queue
// grows as needed, so Submit never blocks and never rejects while the pool is
// running; memory is the only bound.
//
//	pool := worker.NewPool(0, func(ctx context.Context, task func()) error {
//	    task()
//	    return nil
//	})
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//	_ = pool.Submit(func() { fmt.Println("ran") })
//
// # Failure containment
//
// A processor that panics is recovered inside the worker. The panic value,
// worker name and stack are logged at error level, the item counts as failed,
// and the worker goes on to the next item.
//
// # Shutdown
//
// Stop refuses new work and lets the workers drain what is queued. ShutdownNow
// discards queued items and reports how many were dropped. Cancelling the
// context passed to Start stops the workers without draining.
//
// # Observability
//
// Stats is always available from atomic counters. WithMetricsRegistry adds
// Prometheus gauges, counters and a processing-time histogram.
// WithRateLimit throttles dequeueing with a token bucket.
//
// Goroutines have no scheduling priority, so pool workers run at the same
// priority as every other goroutine in the process.
package worker
