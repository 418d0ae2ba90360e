package dataprocessor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/dataprocessor/config"
	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/execution"
	"github.com/c360/dataprocessor/health"
	"github.com/c360/dataprocessor/metric"
	"github.com/c360/dataprocessor/pkg/tlsutil"
	"github.com/c360/dataprocessor/pkg/worker"
	"github.com/c360/dataprocessor/processor"
	"github.com/c360/dataprocessor/request"
	"github.com/c360/dataprocessor/resultcache"
)

// Option configures a DataProcessor.
type Option func(*DataProcessor)

// WithMetricsRegistry publishes pipeline, pool and cache metrics to registry.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(d *DataProcessor) { d.registry = registry }
}

// WithDelivery sets the default context callbacks are posted to. Without it
// callbacks run on the goroutine that finished the unit.
func WithDelivery(c execution.Context) Option {
	return func(d *DataProcessor) {
		if c != nil {
			d.delivery = c
		}
	}
}

// DataProcessor is the entry point of the pipeline. It holds the
// configuration set by Init together with the worker pool and result cache
// derived from it.
type DataProcessor struct {
	mu sync.RWMutex

	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	delivery execution.Context

	exec    execution.Executor
	pool    *execution.PoolExecutor
	results *resultcache.Cache
	prober  *health.Prober
	monitor *health.Monitor
	stop    context.CancelFunc
}

// New creates an uninitialized DataProcessor. Every execution call fails with
// errors.ErrNotInitialized until Init succeeds.
func New(logger *slog.Logger, opts ...Option) *DataProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DataProcessor{
		logger:   logger.With("component", "dataprocessor"),
		delivery: execution.Inline,
		exec:     execution.GoExecutor{},
		monitor:  health.NewMonitor(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init installs cfg. Only the first successful call takes effect; later
// calls log a warning and return nil. The worker pool is started here when
// cfg enables it.
func (d *DataProcessor) Init(cfg *config.Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "DataProcessor", "Init", "nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg != nil {
		d.logger.Warn("data processor already initialized, new configuration ignored")
		return nil
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
	if err != nil {
		return err
	}

	cfg = cfg.Clone()
	logger := d.logger
	if !cfg.Log.Enabled {
		logger = slog.New(slog.DiscardHandler)
	}
	showTime := cfg.Log.Enabled && cfg.Log.ShowProcessingTime

	var metrics *metric.Metrics
	if d.registry != nil {
		metrics = d.registry.CoreMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	exec := execution.Executor(execution.GoExecutor{})
	var pool *execution.PoolExecutor
	if cfg.ThreadPool.Enabled {
		opts := []worker.Option[execution.Task]{
			worker.WithLogger[execution.Task](logger),
			worker.WithRateLimit[execution.Task](cfg.ThreadPool.RateLimit, 1),
		}
		if d.registry != nil {
			opts = append(opts, worker.WithMetricsRegistry[execution.Task](d.registry, "dataprocessor_pool"))
		}
		pool = execution.NewPoolExecutor(cfg.ThreadPool.Workers, opts...)
		if err := pool.Start(ctx); err != nil {
			cancel()
			return errors.WrapFatal(err, "DataProcessor", "Init", "start worker pool")
		}
		exec = pool
	}

	var results *resultcache.Cache
	if cfg.Cache.Enabled {
		opts := []resultcache.Option{
			resultcache.WithLogger(logger),
			resultcache.WithDelivery(d.delivery),
			resultcache.WithMetrics(metrics),
			resultcache.WithProcessingTime(showTime),
		}
		if d.registry != nil {
			opts = append(opts, resultcache.WithMetricsRegistry(d.registry))
		}
		if results, err = resultcache.New(cfg.Cache, exec, opts...); err != nil {
			if pool != nil {
				_ = pool.Stop(time.Second)
			}
			cancel()
			return err
		}
	}

	d.cfg = cfg
	d.logger = logger
	d.exec = exec
	d.pool = pool
	d.results = results
	d.stop = cancel
	d.prober = health.NewProber(cfg.Timeout.Std(), cfg.UserAgent).WithTLS(tlsConfig)
	d.registerChecks()

	logger.Debug("data processor initialized",
		"pool", cfg.ThreadPool.Enabled,
		"cache", cfg.Cache.Enabled,
		"cache_size", cfg.Cache.MaxSize)
	return nil
}

func (d *DataProcessor) registerChecks() {
	if pool := d.pool; pool != nil {
		d.monitor.Register("worker_pool", func(context.Context) health.Status {
			return health.FromPool("worker_pool", pool.Stats())
		})
	}
	if results := d.results; results != nil {
		d.monitor.Register("result_cache", func(context.Context) health.Status {
			return health.FromCache("result_cache", results.Stats(), results.Len(), results.Capacity())
		})
	}
	if url := d.cfg.TestServerURL; url != "" {
		prober := d.prober
		d.monitor.Register("test_server", func(ctx context.Context) health.Status {
			return prober.Probe(ctx, "test_server", url)
		})
	}
}

// Config returns the active configuration, or nil before Init. The returned
// value must not be modified.
func (d *DataProcessor) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Cache returns the result cache, or nil when caching is disabled.
func (d *DataProcessor) Cache() *resultcache.Cache {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.results
}

// state is what an execution call needs, read under one lock.
type state struct {
	cfg      *config.Config
	logger   *slog.Logger
	exec     execution.Executor
	results  *resultcache.Cache
	delivery execution.Context
	metrics  *metric.Metrics
}

func (d *DataProcessor) checkConfiguration(method string) (state, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.cfg == nil || d.cfg.UserAgent == "" {
		return state{}, errors.WrapInvalid(errors.ErrNotInitialized, "DataProcessor", method, "check configuration")
	}
	s := state{
		cfg:      d.cfg,
		logger:   d.logger,
		exec:     d.exec,
		results:  d.results,
		delivery: d.delivery,
	}
	if d.registry != nil {
		s.metrics = d.registry.CoreMetrics()
	}
	return s, nil
}

// CallOption adjusts a single execution call.
type CallOption func(*call)

type call struct {
	delivery execution.Context
}

// On posts the call's callback to c instead of the default delivery context.
func On(c execution.Context) CallOption {
	return func(o *call) { o.delivery = c }
}

func unitOptions[T any](s state, cb execution.Callback[T], callOpts []CallOption) []execution.Option[T] {
	o := call{delivery: s.delivery}
	for _, opt := range callOpts {
		opt(&o)
	}
	return []execution.Option[T]{
		execution.WithCallback(cb),
		execution.WithDelivery[T](o.delivery),
		execution.WithLogger[T](s.logger),
		execution.WithMetrics[T](s.metrics),
		execution.WithProcessingTime[T](s.cfg.Log.Enabled && s.cfg.Log.ShowProcessingTime),
	}
}

// Execute runs req on the calling goroutine and returns the parsed result.
// Transport and parse failures do not surface as errors: the result is the
// zero or partial value and req carries the status. Only an uninitialized
// processor or invalid arguments return an error.
func Execute[T any](ctx context.Context, d *DataProcessor, req request.Request, desc processor.Descriptor[T], opts ...CallOption) (T, error) {
	var zero T
	s, err := d.checkConfiguration("Execute")
	if err != nil {
		return zero, err
	}
	unit, err := execution.New(req, desc, unitOptions[T](s, nil, opts)...)
	if err != nil {
		return zero, err
	}
	return unit.Execute(ctx), nil
}

// ExecuteAsync runs req on the worker pool, or on its own goroutine when the
// pool is disabled, and posts the outcome to cb. cb may be nil.
func ExecuteAsync[T any](ctx context.Context, d *DataProcessor, req request.Request, desc processor.Descriptor[T], cb execution.Callback[T], opts ...CallOption) (*execution.Unit[T], error) {
	s, err := d.checkConfiguration("ExecuteAsync")
	if err != nil {
		return nil, err
	}
	unit, err := execution.New(req, desc, unitOptions(s, cb, opts)...)
	if err != nil {
		return nil, err
	}
	if err := unit.ExecuteAsync(ctx, s.exec); err != nil {
		return nil, err
	}
	return unit, nil
}

// ExecuteCachedAsync runs req through the result cache under key. A finished
// unit under key redelivers its result to cb without I/O unless force is
// set. Fails with errors.ErrInvalidConfig when caching is disabled.
func ExecuteCachedAsync[T any](ctx context.Context, d *DataProcessor, key int, req request.Request, desc processor.Descriptor[T], cb execution.Callback[T], force bool) (*execution.Unit[T], resultcache.Resolution, error) {
	s, err := d.checkConfiguration("ExecuteCachedAsync")
	if err != nil {
		return nil, "", err
	}
	if s.results == nil {
		return nil, "", errors.WrapInvalid(errors.ErrInvalidConfig, "DataProcessor", "ExecuteCachedAsync", "result cache disabled")
	}
	return resultcache.Submit(ctx, s.results, key, req, desc, cb, force)
}

// IsSiteAccessible reports whether the configured test server answers within
// the configured timeout.
func (d *DataProcessor) IsSiteAccessible(ctx context.Context) (bool, error) {
	s, err := d.checkConfiguration("IsSiteAccessible")
	if err != nil {
		return false, err
	}
	if s.cfg.TestServerURL == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidConfig, "DataProcessor", "IsSiteAccessible", "no test server url")
	}

	d.mu.RLock()
	prober := d.prober
	d.mu.RUnlock()

	if err := prober.Check(ctx, s.cfg.TestServerURL); err != nil {
		s.logger.Debug("test server not accessible", "error", err)
		return false, nil
	}
	return true, nil
}

// Health refreshes and aggregates the pool, cache and test server statuses.
func (d *DataProcessor) Health(ctx context.Context) health.Status {
	return d.monitor.Refresh(ctx, "dataprocessor")
}

// Shutdown stops accepting asynchronous work and waits up to timeout for
// queued and running units to finish. Without a pool it returns at once.
func (d *DataProcessor) Shutdown(timeout time.Duration) error {
	pool, stop := d.detachPool()
	if pool == nil {
		return nil
	}
	defer stop()
	if err := pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "DataProcessor", "Shutdown", "stop worker pool")
	}
	return nil
}

// ShutdownNow drops every queued unit, waits up to timeout for running ones
// and returns how many were dropped.
func (d *DataProcessor) ShutdownNow(timeout time.Duration) (int, error) {
	pool, stop := d.detachPool()
	if pool == nil {
		return 0, nil
	}
	defer stop()
	dropped, err := pool.ShutdownNow(timeout)
	if err != nil {
		return dropped, errors.Wrap(err, "DataProcessor", "ShutdownNow", "stop worker pool")
	}
	if dropped > 0 {
		d.logger.Warn("queued units dropped at shutdown", "dropped", dropped)
	}
	return dropped, nil
}

// detachPool hands the pool to the caller once; later calls see nil.
func (d *DataProcessor) detachPool() (*execution.PoolExecutor, context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool, stop := d.pool, d.stop
	d.pool, d.stop = nil, nil
	if pool == nil && stop != nil {
		stop()
	}
	return pool, stop
}
