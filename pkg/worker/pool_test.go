package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/dataprocessor/metric"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
	boom  bool
}

func testProcessor(counter *int64) func(context.Context, testWork) error {
	return func(_ context.Context, w testWork) error {
		if w.delay > 0 {
			time.Sleep(w.delay)
		}
		atomic.AddInt64(counter, 1)
		if w.boom {
			panic("processor exploded")
		}
		if w.fail {
			return errors.New("work failed")
		}
		return nil
	}
}

func TestNewPool(t *testing.T) {
	var n int64
	pool := NewPool(5, testProcessor(&n))
	assert.Equal(t, 5, pool.workers)

	pool = NewPool(0, testProcessor(&n))
	assert.Equal(t, DefaultWorkers(), pool.workers)
	assert.Greater(t, DefaultWorkers(), 1)
}

func TestNewPool_NilProcessor(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[testWork](2, nil)
	})
}

func TestPool_Lifecycle(t *testing.T) {
	var n int64
	pool := NewPool(2, testProcessor(&n))

	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	assert.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.NoError(t, pool.Stop(time.Second))

	assert.ErrorIs(t, pool.Submit(testWork{id: 2}), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second), "second stop is a no-op")
	assert.Equal(t, int64(1), atomic.LoadInt64(&n))
}

func TestPool_UnboundedQueueNeverRejects(t *testing.T) {
	var n int64
	pool := NewPool(1, testProcessor(&n))
	require.NoError(t, pool.Start(context.Background()))

	const items = 5000
	for i := 0; i < items; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(items), atomic.LoadInt64(&n))

	stats := pool.Stats()
	assert.Equal(t, int64(items), stats.Submitted)
	assert.Equal(t, int64(items), stats.Processed)
	assert.Zero(t, stats.Dropped)
}

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	var mu sync.Mutex
	var order []int
	pool := NewPool(1, func(_ context.Context, w testWork) error {
		mu.Lock()
		order = append(order, w.id)
		mu.Unlock()
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.NoError(t, pool.Stop(time.Second))

	require.Len(t, order, 50)
	for i, id := range order {
		assert.Equal(t, i, id)
	}
}

func TestPool_ProcessingErrors(t *testing.T) {
	var n int64
	pool := NewPool(2, testProcessor(&n))
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, fail: i%2 == 0}))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(5), stats.Failed)
}

func TestPool_PanicIsContained(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var n int64
	pool := NewPool(1, testProcessor(&n), WithLogger[testWork](logger))
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1, boom: true}))
	require.NoError(t, pool.Submit(testWork{id: 2}))
	require.NoError(t, pool.Stop(time.Second))

	assert.Equal(t, int64(2), atomic.LoadInt64(&n), "worker keeps serving after a panic")
	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Panics)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Contains(t, buf.String(), "worker-0")
	assert.Contains(t, buf.String(), "processor exploded")
}

func TestPool_ContextCancellation(t *testing.T) {
	var n int64
	pool := NewPool(2, testProcessor(&n))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return errors.Is(pool.Submit(testWork{}), ErrPoolStopped)
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_ShutdownNowDropsQueue(t *testing.T) {
	release := make(chan struct{})
	var n int64
	pool := NewPool(1, func(_ context.Context, _ testWork) error {
		<-release
		atomic.AddInt64(&n, 1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	dropped, err := pool.ShutdownNow(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, int64(1), atomic.LoadInt64(&n))
	assert.Equal(t, int64(3), pool.Stats().Dropped)
}

func TestPool_DropHandler(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []int
	pool := NewPool(1, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	}, WithDropHandler(func(w testWork) {
		mu.Lock()
		got = append(got, w.id)
		mu.Unlock()
	}))
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, 5*time.Millisecond)

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	dropped, err := pool.ShutdownNow(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, got)
}

func TestPool_DropHandlerPanicIsContained(t *testing.T) {
	var logs bytes.Buffer
	release := make(chan struct{})
	pool := NewPool(1, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	},
		WithLogger[testWork](slog.New(slog.NewTextHandler(&logs, nil))),
		WithDropHandler(func(testWork) { panic("handler exploded") }))
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pool.Submit(testWork{id: 2}))
	require.NoError(t, pool.Submit(testWork{id: 3}))

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	dropped, err := pool.ShutdownNow(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Contains(t, logs.String(), "drop handler panicked")
}

func TestPool_CancelDropsQueue(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var drops int64
	pool := NewPool(1, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	}, WithDropHandler(func(testWork) { atomic.AddInt64(&drops, 1) }))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return atomic.LoadInt64(&drops) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), pool.Stats().Dropped)
	assert.Equal(t, 0, pool.Stats().QueueDepth)
}

func TestPool_RateLimitWaitCancelledDropsItem(t *testing.T) {
	var processed int64
	dropped := make(chan testWork, 1)
	pool := NewPool(1, testProcessor(&processed),
		WithRateLimit[testWork](0.5, 1),
		WithDropHandler(func(w testWork) { dropped <- w }))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	// the first item takes the only token, the second waits about two seconds
	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.NoError(t, pool.Submit(testWork{id: 2}))
	require.Eventually(t, func() bool {
		s := pool.Stats()
		return atomic.LoadInt64(&processed) == 1 && s.QueueDepth == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case w := <-dropped:
		assert.Equal(t, 2, w.id)
	case <-time.After(time.Second):
		t.Fatal("item taken by the waiting worker was not reported")
	}
	assert.Equal(t, int64(1), pool.Stats().Dropped)
	assert.Equal(t, int64(1), atomic.LoadInt64(&processed))
}

func TestPool_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	pool := NewPool(1, func(_ context.Context, _ testWork) error {
		<-release
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, pool.Stop(20*time.Millisecond), ErrStopTimeout)
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var n int64
	pool := NewPool(4, testProcessor(&n))
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, pool.Submit(testWork{id: g*100 + i}))
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(800), atomic.LoadInt64(&n))
}

func TestPool_RateLimit(t *testing.T) {
	var n int64
	pool := NewPool(2, testProcessor(&n), WithRateLimit[testWork](100, 1))
	require.NoError(t, pool.Start(context.Background()))

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, int64(6), atomic.LoadInt64(&n))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var n int64
	pool := NewPool(2, testProcessor(&n), WithMetricsRegistry[testWork](registry, "test_pool"))
	require.NotNil(t, pool.metrics)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, fail: i == 0}))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Equal(t, 3.0, testutil.ToFloat64(pool.metrics.submitted))
	assert.Equal(t, 3.0, testutil.ToFloat64(pool.metrics.processed))
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.failed))
	assert.Equal(t, 0.0, testutil.ToFloat64(pool.metrics.queueDepth))
	assert.Equal(t, 0.0, testutil.ToFloat64(pool.metrics.busyWorkers))
}
