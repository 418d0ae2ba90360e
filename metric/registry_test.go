package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/dataprocessor/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})
	require.NoError(t, registry.RegisterCounter("pool", "test_counter", counter))
	counter.Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "counter should be gathered")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	require.NoError(t, registry.RegisterGauge("cache", "size", gauge))

	err := registry.RegisterGauge("cache", "size", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")
}

func TestMetricsRegistry_PrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "same_name", Help: "a"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "same_name", Help: "a"})

	require.NoError(t, registry.RegisterCounter("a", "same_name", first))
	err := registry.RegisterCounter("b", "same_name", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Vectors(t *testing.T) {
	registry := NewMetricsRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cv_total", Help: "cv"}, []string{"k"})
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "gv", Help: "gv"}, []string{"k"})
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "hv", Help: "hv"}, []string{"k"})
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h", Help: "h"})

	require.NoError(t, registry.RegisterCounterVec("x", "cv", cv))
	require.NoError(t, registry.RegisterGaugeVec("x", "gv", gv))
	require.NoError(t, registry.RegisterHistogramVec("x", "hv", hv))
	require.NoError(t, registry.RegisterHistogram("x", "h", h))

	cv.WithLabelValues("a").Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(cv.WithLabelValues("a")))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gone_total", Help: "gone"})
	require.NoError(t, registry.RegisterCounter("svc", "gone", counter))

	assert.True(t, registry.Unregister("svc", "gone"))
	assert.False(t, registry.Unregister("svc", "gone"))

	// the slot is free again
	require.NoError(t, registry.RegisterCounter("svc", "gone", counter))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "racy_gauge", Help: "r"})
			errs <- registry.RegisterGauge("svc", "racy", g)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestMetrics_RecordHelpers(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordOutcome(OutcomeDelivered)
	m.RecordOutcome(OutcomeDelivered)
	m.RecordOutcome(OutcomeTimeout)
	m.RecordRedelivery()
	m.UnitStarted()
	m.UnitStarted()
	m.UnitFinished()
	m.RecordCacheResolution("new")
	m.RecordDuration("json", 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redeliveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("new")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProcessingDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome(OutcomeDelivered)
		m.RecordDuration("raw", time.Second)
		m.RecordRedelivery()
		m.UnitStarted()
		m.UnitFinished()
		m.RecordCacheResolution("new")
	})
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordOutcome(OutcomeDelivered)

	srv := httptest.NewServer(NewServer("", "", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dataprocessor_execution_requests_total")

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	registry := NewMetricsRegistry()
	srv := NewServer("127.0.0.1:0", "/metrics", registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Address(), ":0/metrics")
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.Address())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
