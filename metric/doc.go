// Package metric wraps a private Prometheus registry for the data processor.
//
// NewMetricsRegistry registers the pipeline metrics (execution outcomes,
// request-to-delivery duration, redeliveries, in-flight units, result cache
// resolutions) plus the Go runtime collectors. Components that own further
// collectors, such as the worker pool and the LRU cache, register them
// through the MetricsRegistrar interface keyed by component and metric name;
// registering the same pair twice is an invalid-class error.
//
// Server serves the registry in OpenMetrics format:
//
//	registry := metric.NewMetricsRegistry()
//	srv := metric.NewServer(":9090", "/metrics", registry)
//	go srv.Start(ctx)
//
// All Record* helpers on Metrics are nil-safe so callers can hold a nil
// *Metrics when metrics are disabled.
package metric
