package resultcache

import (
	"context"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/execution"
	"github.com/c360/dataprocessor/metric"
	"github.com/c360/dataprocessor/pkg/cache"
	"github.com/c360/dataprocessor/processor"
	"github.com/c360/dataprocessor/request"
	"github.com/c360/dataprocessor/testutil"
)

func textDescriptor() processor.Descriptor[*processor.Text] {
	return processor.String(func() *processor.Text { return &processor.Text{} })
}

func newCache(t *testing.T, size int, opts ...Option) *Cache {
	t.Helper()
	c, err := New(cache.Config{Enabled: true, MaxSize: size}, nil, opts...)
	require.NoError(t, err)
	return c
}

func waitDone(t *testing.T, unit *execution.Unit[*processor.Text]) {
	t.Helper()
	select {
	case <-unit.Done():
	case <-time.After(time.Second):
		t.Fatal("unit did not finish")
	}
}

func TestNew_Config(t *testing.T) {
	tests := []struct {
		name string
		cfg  cache.Config
	}{
		{"disabled", cache.Config{Enabled: false, MaxSize: 10}},
		{"zero size", cache.Config{Enabled: true, MaxSize: 0}},
		{"negative size", cache.Config{Enabled: true, MaxSize: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}

	c := newCache(t, 4)
	assert.Equal(t, 4, c.Capacity())
	assert.Equal(t, 0, c.Len())
}

func TestSubmit_NewThenRedeliver(t *testing.T) {
	c := newCache(t, 4)
	ctx := context.Background()

	req := testutil.NewMockRequest("payload")
	first := testutil.NewRecorder[*processor.Text]()
	unit, res, err := Submit(ctx, c, 1, req, textDescriptor(), first.Callback, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNew, res)
	waitDone(t, unit)
	testutil.WaitForDeliveries(t, first, 1, time.Second)

	second := testutil.NewRecorder[*processor.Text]()
	again, res, err := Submit(ctx, c, 1, testutil.NewMockRequest("other"), textDescriptor(), second.Callback, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRedelivered, res)
	assert.Same(t, unit, again)

	deliveries := testutil.WaitForDeliveries(t, second, 1, time.Second)
	assert.Equal(t, "payload", deliveries[0].Result.Value)
	assert.Same(t, first.Deliveries()[0].Result, deliveries[0].Result)
	assert.Equal(t, 1, req.Opened(), "redelivery does no I/O")
	assert.Equal(t, 1, first.Count())
}

func TestSubmit_RunningKeepsOriginalCallback(t *testing.T) {
	c := newCache(t, 4)
	ctx := context.Background()

	req := testutil.NewMockRequest("slow")
	req.Gate = make(chan struct{})
	first := testutil.NewRecorder[*processor.Text]()
	unit, _, err := Submit(ctx, c, 7, req, textDescriptor(), first.Callback, false)
	require.NoError(t, err)

	second := testutil.NewRecorder[*processor.Text]()
	dup := testutil.NewMockRequest("duplicate")
	again, res, err := Submit(ctx, c, 7, dup, textDescriptor(), second.Callback, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRunning, res)
	assert.Same(t, unit, again)

	close(req.Gate)
	waitDone(t, unit)

	deliveries := testutil.WaitForDeliveries(t, first, 1, time.Second)
	assert.Equal(t, "slow", deliveries[0].Result.Value)
	assert.Equal(t, 0, second.Count())
	assert.Equal(t, 1, req.Opened())
	assert.Equal(t, 0, dup.Opened(), "one fetch for both submissions")

	// once finished, the same key redelivers
	third := testutil.NewRecorder[*processor.Text]()
	_, res, err = Submit(ctx, c, 7, testutil.NewMockRequest("x"), textDescriptor(), third.Callback, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRedelivered, res)
	assert.Equal(t, 1, third.Count())
	assert.Equal(t, 1, first.Count())
}

func TestSubmit_QueuedUnitAbortedByShutdownNow(t *testing.T) {
	exec := execution.NewPoolExecutor(1)
	require.NoError(t, exec.Start(context.Background()))
	c, err := New(cache.Config{Enabled: true, MaxSize: 4}, exec)
	require.NoError(t, err)
	ctx := context.Background()

	blocked := testutil.NewMockRequest("running")
	blocked.Gate = make(chan struct{})
	_, _, err = Submit(ctx, c, 1, blocked, textDescriptor(), nil, false)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return blocked.Opened() == 1 }, time.Second, 5*time.Millisecond)

	queuedReq := testutil.NewMockRequest("queued")
	queuedRec := testutil.NewRecorder[*processor.Text]()
	queued, _, err := Submit(ctx, c, 2, queuedReq, textDescriptor(), queuedRec.Callback, false)
	require.NoError(t, err)

	time.AfterFunc(20*time.Millisecond, func() { close(blocked.Gate) })
	dropped, err := exec.ShutdownNow(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	waitDone(t, queued)
	assert.Zero(t, queuedReq.Opened())
	assert.Equal(t, 1, queuedReq.Closed())
	deliveries := queuedRec.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, request.StatusError, deliveries[0].StatusCode)

	// the key holds a finished failure, so a later caller hears about it
	later := testutil.NewRecorder[*processor.Text]()
	_, res, err := Submit(ctx, c, 2, testutil.NewMockRequest("x"), textDescriptor(), later.Callback, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRedelivered, res)
	require.Equal(t, 1, later.Count())
	assert.Equal(t, request.StatusError, later.Deliveries()[0].StatusCode)
}

func TestSubmit_ForceDetachesPrevious(t *testing.T) {
	c := newCache(t, 4)
	ctx := context.Background()

	old := testutil.NewMockRequest("old")
	old.Gate = make(chan struct{})
	oldRec := testutil.NewRecorder[*processor.Text]()
	oldUnit, _, err := Submit(ctx, c, 3, old, textDescriptor(), oldRec.Callback, false)
	require.NoError(t, err)

	fresh := testutil.NewMockRequest("fresh")
	freshRec := testutil.NewRecorder[*processor.Text]()
	freshUnit, res, err := Submit(ctx, c, 3, fresh, textDescriptor(), freshRec.Callback, true)
	require.NoError(t, err)
	assert.Equal(t, ResolutionForced, res)
	assert.NotSame(t, oldUnit, freshUnit)

	deliveries := testutil.WaitForDeliveries(t, freshRec, 1, time.Second)
	assert.Equal(t, "fresh", deliveries[0].Result.Value)

	// the old unit is not cancelled, it just has nobody to tell
	close(old.Gate)
	waitDone(t, oldUnit)
	assert.Equal(t, "old", oldUnit.Result().Value)
	assert.Equal(t, 0, oldRec.Count())

	stored, ok := Lookup[*processor.Text](c, 3)
	require.True(t, ok)
	assert.Same(t, freshUnit, stored)
}

func TestSubmit_ForceOnFinishedUnitRefetches(t *testing.T) {
	c := newCache(t, 2)
	ctx := context.Background()

	first := testutil.NewMockRequest("v1")
	unit, _, err := Submit(ctx, c, 1, first, textDescriptor(), nil, false)
	require.NoError(t, err)
	waitDone(t, unit)

	second := testutil.NewMockRequest("v2")
	rec := testutil.NewRecorder[*processor.Text]()
	_, res, err := Submit(ctx, c, 1, second, textDescriptor(), rec.Callback, true)
	require.NoError(t, err)
	assert.Equal(t, ResolutionForced, res)

	deliveries := testutil.WaitForDeliveries(t, rec, 1, time.Second)
	assert.Equal(t, "v2", deliveries[0].Result.Value)
	assert.Equal(t, 1, second.Opened())
}

func TestSubmit_EvictionKeepsRunning(t *testing.T) {
	c := newCache(t, 2)
	ctx := context.Background()

	slow := testutil.NewMockRequest("evicted")
	slow.Gate = make(chan struct{})
	rec := testutil.NewRecorder[*processor.Text]()
	slowUnit, _, err := Submit(ctx, c, 1, slow, textDescriptor(), rec.Callback, false)
	require.NoError(t, err)

	for key := 2; key <= 3; key++ {
		unit, _, err := Submit(ctx, c, key, testutil.NewMockRequest("filler"), textDescriptor(), nil, false)
		require.NoError(t, err)
		waitDone(t, unit)
	}

	assert.Equal(t, 2, c.Len())
	assert.ElementsMatch(t, []int{2, 3}, c.Keys())
	_, ok := Lookup[*processor.Text](c, 1)
	assert.False(t, ok)

	close(slow.Gate)
	waitDone(t, slowUnit)
	deliveries := testutil.WaitForDeliveries(t, rec, 1, time.Second)
	assert.Equal(t, "evicted", deliveries[0].Result.Value)

	// key 1 is unknown again, so a new request is executed
	again := testutil.NewMockRequest("refetched")
	_, res, err := Submit(ctx, c, 1, again, textDescriptor(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNew, res)
}

func TestSubmit_RecencyOnReuse(t *testing.T) {
	c := newCache(t, 2)
	ctx := context.Background()

	for key := 1; key <= 2; key++ {
		unit, _, err := Submit(ctx, c, key, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
		require.NoError(t, err)
		waitDone(t, unit)
	}

	// touching key 1 makes key 2 the eviction candidate
	_, res, err := Submit(ctx, c, 1, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, ResolutionRedelivered, res)

	unit, _, err := Submit(ctx, c, 3, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
	require.NoError(t, err)
	waitDone(t, unit)

	assert.Equal(t, []int{3, 1}, c.Keys())
}

func TestSubmit_TypeMismatch(t *testing.T) {
	c := newCache(t, 2)
	ctx := context.Background()

	unit, _, err := Submit(ctx, c, 5, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
	require.NoError(t, err)
	waitDone(t, unit)

	_, _, err = Submit(ctx, c, 5, testutil.NewMockRequest("x"), processor.Raw(), nil, false)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	raw, res, err := Submit(ctx, c, 5, testutil.NewMockRequest("bytes"), processor.Raw(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, ResolutionForced, res)
	<-raw.Done()
	assert.Equal(t, []byte("bytes"), raw.Result())
}

func TestSubmit_InvalidArguments(t *testing.T) {
	c := newCache(t, 2)

	_, _, err := Submit[*processor.Text](context.Background(), c, 1, nil, textDescriptor(), nil, false)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	assert.Equal(t, 0, c.Len(), "nothing stored for a rejected submission")
}

func TestSubmit_ExecutorStopped(t *testing.T) {
	exec := execution.NewPoolExecutor(1)
	require.NoError(t, exec.Start(context.Background()))
	require.NoError(t, exec.Stop(time.Second))

	c, err := New(cache.Config{Enabled: true, MaxSize: 2}, exec)
	require.NoError(t, err)

	_, _, err = Submit(context.Background(), c, 1, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestSubmit_InlineCallbackMayResubmit(t *testing.T) {
	c := newCache(t, 4)
	ctx := context.Background()

	unit, _, err := Submit(ctx, c, 1, testutil.NewMockRequest("base"), textDescriptor(), nil, false)
	require.NoError(t, err)
	waitDone(t, unit)

	nested := testutil.NewRecorder[*processor.Text]()
	done := make(chan struct{})
	_, _, err = Submit(ctx, c, 1, testutil.NewMockRequest("x"), textDescriptor(),
		func(*processor.Text, int, string) {
			_, _, err := Submit(ctx, c, 1, testutil.NewMockRequest("x"), textDescriptor(), nested.Callback, false)
			assert.NoError(t, err)
			close(done)
		}, false)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested submit blocked")
	}
	assert.Equal(t, 1, nested.Count())
}

func TestMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	m := registry.CoreMetrics()
	c := newCache(t, 2, WithMetrics(m), WithMetricsRegistry(registry))
	ctx := context.Background()

	unit, _, err := Submit(ctx, c, 1, testutil.NewMockRequest("x"), textDescriptor(), nil, false)
	require.NoError(t, err)
	waitDone(t, unit)
	_, _, err = Submit(ctx, c, 1, testutil.NewMockRequest("x"), textDescriptor(), func(*processor.Text, int, string) {}, false)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues(string(ResolutionNew))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues(string(ResolutionRedelivered))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Redeliveries))
	assert.Equal(t, int64(1), c.Stats().Hits())

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "dataprocessor_cache_hits_total" {
			found = true
			break
		}
	}
	assert.True(t, found, "lru counters should be gathered")
}
