package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the data processor exports.
const Namespace = "dataprocessor"

// Outcome labels for RequestsTotal.
const (
	OutcomeDelivered     = "delivered"
	OutcomeParseError    = "parse_error"
	OutcomeTimeout       = "timeout"
	OutcomeNotFound      = "not_found"
	OutcomeIOError       = "io_error"
	OutcomeCacheFileSkip = "cache_file_reused"
	OutcomeDropped       = "dropped"
)

// Metrics contains the pipeline-level metrics shared by all execution units.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	Redeliveries       prometheus.Counter
	UnitsInFlight      prometheus.Gauge
	CacheLookups       *prometheus.CounterVec
}

// NewMetrics creates the pipeline metrics without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "execution",
				Name:      "requests_total",
				Help:      "Execution units that reached a terminal state, by outcome",
			},
			[]string{"outcome"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "execution",
				Name:      "duration_seconds",
				Help:      "Time from request creation to result delivery",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"processor"},
		),

		Redeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "execution",
			Name:      "redeliveries_total",
			Help:      "Stored results re-posted to a newly attached callback",
		}),

		UnitsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "execution",
			Name:      "units_in_flight",
			Help:      "Execution units started but not yet delivered",
		}),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "result_cache",
				Name:      "submissions_total",
				Help:      "Cached submissions by resolution (new, forced, redelivered, running)",
			},
			[]string{"resolution"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RequestsTotal,
		m.ProcessingDuration,
		m.Redeliveries,
		m.UnitsInFlight,
		m.CacheLookups,
	}
}

// RecordOutcome counts a terminal execution outcome.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordDuration observes the request-to-delivery time for a processor kind.
func (m *Metrics) RecordDuration(processor string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProcessingDuration.WithLabelValues(processor).Observe(d.Seconds())
}

// RecordRedelivery counts one redelivery.
func (m *Metrics) RecordRedelivery() {
	if m == nil {
		return
	}
	m.Redeliveries.Inc()
}

// UnitStarted and UnitFinished track the in-flight gauge.
func (m *Metrics) UnitStarted() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Inc()
}

// UnitFinished decrements the in-flight gauge.
func (m *Metrics) UnitFinished() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Dec()
}

// RecordCacheResolution counts how a cached submission was resolved.
func (m *Metrics) RecordCacheResolution(resolution string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(resolution).Inc()
}
