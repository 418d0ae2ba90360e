// Package health reports the state of the pipeline's moving parts.
//
// A Status is healthy, degraded or unhealthy and may carry sub-statuses.
// FromPool, FromCache and FromNATS translate component statistics into a
// Status; Prober checks that a site answers HTTP. A Monitor holds the latest
// status per component, either pushed with Update or pulled from checkers on
// Refresh:
//
//	monitor := health.NewMonitor()
//	monitor.Register("pool", func(context.Context) health.Status {
//	    return health.FromPool("pool", pool.Stats())
//	})
//	overall := monitor.Refresh(ctx, "dataprocessor")
//
// Error text is sanitized before it becomes a status message so URLs, paths
// and credentials do not leak into health endpoints.
package health
