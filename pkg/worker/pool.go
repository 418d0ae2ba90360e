package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/c360/dataprocessor/metric"
)

// DefaultWorkers is the worker count used when none is configured: two per CPU.
func DefaultWorkers() int {
	return 2 * runtime.NumCPU()
}

// Pool is a fixed set of workers draining an unbounded FIFO queue of work items
// of type T. Submit never blocks and never rejects while the pool is running.
type Pool[T any] struct {
	workers   int
	processor func(context.Context, T) error
	onDrop    func(T)
	logger    *slog.Logger
	limiter   *rate.Limiter

	// queue state, guarded by mu
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []T
	started  bool
	draining bool
	stopped  bool

	wg           sync.WaitGroup
	stopOnCancel func() bool
	metrics      *Metrics

	submitted int64
	processed int64
	failed    int64
	panics    int64
	dropped   int64
	active    int64

	metricsRegistry metric.MetricsRegistrar
	metricsPrefix   string
}

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	queueDepth     prometheus.Gauge
	busyWorkers    prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	panics         prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers pool metrics named <prefix>_* with the registry.
func WithMetricsRegistry[T any](registry metric.MetricsRegistrar, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// WithLogger sets the logger used for panic reports.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pool[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRateLimit caps how fast workers take items off the queue.
func WithRateLimit[T any](perSecond float64, burst int) Option[T] {
	return func(p *Pool[T]) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithDropHandler is called once for every item the pool discards without
// processing: the queue at ShutdownNow or on context cancellation, and an item
// a worker had taken when its rate-limit wait was cancelled.
func WithDropHandler[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) { p.onDrop = fn }
}

// NewPool creates a pool; workers <= 0 selects DefaultWorkers.
func NewPool[T any](workers int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		processor: processor,
		logger:    slog.Default(),
	}
	pool.cond = sync.NewCond(&pool.mu)

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}

	return pool
}

func (p *Pool[T]) initializeMetrics() {
	prefix := p.metricsPrefix

	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Work items waiting for a worker",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_busy_workers",
			Help: "Workers currently processing an item",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_failed_total",
			Help: "Total work items that returned an error or panicked",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_panics_total",
			Help: "Total work items that panicked",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"status"}),
	}

	const component = "worker_pool"
	registrations := []error{
		p.metricsRegistry.RegisterGauge(component, prefix+"_queue_depth", m.queueDepth),
		p.metricsRegistry.RegisterGauge(component, prefix+"_busy_workers", m.busyWorkers),
		p.metricsRegistry.RegisterCounter(component, prefix+"_submitted_total", m.submitted),
		p.metricsRegistry.RegisterCounter(component, prefix+"_processed_total", m.processed),
		p.metricsRegistry.RegisterCounter(component, prefix+"_failed_total", m.failed),
		p.metricsRegistry.RegisterCounter(component, prefix+"_panics_total", m.panics),
		p.metricsRegistry.RegisterHistogramVec(component, prefix+"_processing_duration_seconds", m.processingTime),
	}
	for _, err := range registrations {
		if err != nil {
			p.logger.Warn("worker pool metric registration failed", "prefix", prefix, "error", err)
		}
	}

	p.metrics = m
}

// Submit appends work to the queue.
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.draining || p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.queue = append(p.queue, work)
	if p.metrics != nil {
		p.metrics.submitted.Inc()
		p.metrics.queueDepth.Set(float64(len(p.queue)))
	}
	atomic.AddInt64(&p.submitted, 1)
	p.cond.Signal()
	p.mu.Unlock()
	return nil
}

// Start launches the workers. Cancelling ctx stops them without draining.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.stopOnCancel = context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.stopped = true
		queued := p.takeQueue()
		p.cond.Broadcast()
		p.mu.Unlock()
		p.discard(queued)
	})

	p.started = true
	return nil
}

// Stop refuses new work, lets the workers drain the queue and waits up to
// timeout for them to exit.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.draining {
		p.mu.Unlock()
		return nil
	}
	p.draining = true
	p.cond.Broadcast()
	p.mu.Unlock()

	return p.wait(timeout)
}

// ShutdownNow discards queued work, waits up to timeout for running items and
// returns how many queued items were dropped. Dropped items go to the drop
// handler before the wait starts.
func (p *Pool[T]) ShutdownNow(timeout time.Duration) (int, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return 0, nil
	}
	queued := p.takeQueue()
	p.draining = true
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.discard(queued)
	return len(queued), p.wait(timeout)
}

// takeQueue empties the queue. Callers hold mu.
func (p *Pool[T]) takeQueue() []T {
	queued := p.queue
	p.queue = nil
	if p.metrics != nil {
		p.metrics.queueDepth.Set(0)
	}
	return queued
}

// discard counts items as dropped and hands each to the drop handler.
func (p *Pool[T]) discard(items []T) {
	if len(items) == 0 {
		return
	}
	atomic.AddInt64(&p.dropped, int64(len(items)))
	if p.onDrop == nil {
		return
	}
	for _, item := range items {
		p.dropOne(item)
	}
}

func (p *Pool[T]) dropOne(item T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("drop handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	p.onDrop(item)
}

func (p *Pool[T]) wait(timeout time.Duration) error {
	if p.stopOnCancel != nil {
		p.stopOnCancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	depth := len(p.queue)
	p.mu.Unlock()

	return PoolStats{
		Workers:    p.workers,
		QueueDepth: depth,
		Active:     atomic.LoadInt64(&p.active),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Panics:     atomic.LoadInt64(&p.panics),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	Active     int64 `json:"active"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Panics     int64 `json:"panics"`
	Dropped    int64 `json:"dropped"`
}

// next blocks until an item is available. ok is false when the worker should exit.
func (p *Pool[T]) next() (work T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.draining && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped || len(p.queue) == 0 {
		return work, false
	}

	work = p.queue[0]
	var zero T
	p.queue[0] = zero
	p.queue = p.queue[1:]
	if p.metrics != nil {
		p.metrics.queueDepth.Set(float64(len(p.queue)))
	}
	return work, true
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		work, ok := p.next()
		if !ok {
			return
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.logger.Warn("rate limit wait cancelled, item dropped",
					"worker", fmt.Sprintf("worker-%d", id), "error", err)
				p.discard([]T{work})
				return
			}
		}
		p.run(ctx, id, work)
	}
}

// run processes one item; a panic is reported and counted and the worker
// carries on with the next item.
func (p *Pool[T]) run(ctx context.Context, id int, work T) {
	atomic.AddInt64(&p.active, 1)
	if p.metrics != nil {
		p.metrics.busyWorkers.Inc()
	}

	start := time.Now()
	status := "success"

	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			atomic.AddInt64(&p.panics, 1)
			atomic.AddInt64(&p.failed, 1)
			p.logger.Error("worker recovered from panic",
				"worker", fmt.Sprintf("worker-%d", id),
				"panic", r,
				"stack", string(debug.Stack()))
			if p.metrics != nil {
				p.metrics.panics.Inc()
				p.metrics.failed.Inc()
			}
		}

		atomic.AddInt64(&p.active, -1)
		atomic.AddInt64(&p.processed, 1)
		if p.metrics != nil {
			p.metrics.busyWorkers.Dec()
			p.metrics.processed.Inc()
			p.metrics.processingTime.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}
	}()

	if err := p.processor(ctx, work); err != nil {
		status = "error"
		atomic.AddInt64(&p.failed, 1)
		if p.metrics != nil {
			p.metrics.failed.Inc()
		}
	}
}
