package health

import (
	"fmt"
	"time"

	"github.com/c360/dataprocessor/natsclient"
	"github.com/c360/dataprocessor/pkg/cache"
	"github.com/c360/dataprocessor/pkg/worker"
)

// backlogFactor is the queue depth per worker above which a pool is degraded.
const backlogFactor = 100

// FromPool reports a worker pool. A pool with no workers is unhealthy; a
// backlog above backlogFactor tasks per worker or any recovered panic makes
// it degraded.
func FromPool(name string, stats worker.PoolStats) Status {
	metrics := &Metrics{
		ErrorCount:        int(stats.Failed),
		RequestsProcessed: stats.Processed,
	}

	var status Status
	switch {
	case stats.Workers <= 0:
		status = NewUnhealthy(name, "No workers running")
	case stats.QueueDepth > stats.Workers*backlogFactor:
		status = NewDegraded(name, fmt.Sprintf("Queue backlog of %d tasks", stats.QueueDepth))
	case stats.Panics > 0:
		status = NewDegraded(name, fmt.Sprintf("%d tasks panicked", stats.Panics))
	default:
		status = NewHealthy(name, fmt.Sprintf("%d workers, %d active", stats.Workers, stats.Active))
	}
	return status.WithMetrics(metrics)
}

// FromCache reports a result cache. A cache is always healthy while it
// exists; the message carries occupancy and hit ratio.
func FromCache(name string, stats *cache.Statistics, size, capacity int) Status {
	status := NewHealthy(name, fmt.Sprintf("%d/%d entries", size, capacity))
	if stats == nil {
		return status
	}
	status.Message = fmt.Sprintf("%d/%d entries, hit ratio %.2f", size, capacity, stats.HitRatio())
	return status.WithMetrics(&Metrics{
		Uptime:            stats.Uptime(),
		RequestsProcessed: stats.Hits() + stats.Misses(),
	})
}

// FromNATS reports a NATS client.
func FromNATS(name string, s *natsclient.Status) Status {
	if s == nil {
		return NewUnhealthy(name, "No client")
	}

	var status Status
	switch s.Status {
	case natsclient.StatusConnected:
		status = NewHealthy(name, fmt.Sprintf("Connected, rtt %v", s.RTT.Round(time.Microsecond)))
	case natsclient.StatusReconnecting, natsclient.StatusConnecting:
		status = NewDegraded(name, s.Status.String())
	default:
		status = NewUnhealthy(name, s.Status.String())
	}
	return status.WithMetrics(&Metrics{
		ErrorCount:   int(s.FailureCount),
		LastActivity: s.LastFailure,
	})
}
