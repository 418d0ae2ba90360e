package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Delivery is one callback invocation.
type Delivery[T any] struct {
	Result        T
	StatusCode    int
	StatusMessage string
}

// Recorder collects callback invocations. Callback has the shape of
// execution.Callback and can be passed where one is expected.
type Recorder[T any] struct {
	mu         sync.Mutex
	deliveries []Delivery[T]
}

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Callback records every call.
func (r *Recorder[T]) Callback(result T, statusCode int, statusMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery[T]{
		Result:        result,
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
	})
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder[T]) Deliveries() []Delivery[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery[T], len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Count returns the number of recorded calls.
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// WaitForDeliveries polls until r holds at least count deliveries and returns
// them. The test fails on timeout.
func WaitForDeliveries[T any](t *testing.T, r *Recorder[T], count int, timeout time.Duration) []Delivery[T] {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.Count() >= count {
			return r.Deliveries()
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for %d deliveries (got %d)", count, r.Count())
			return nil
		case <-ticker.C:
		}
	}
}

// AssertNoDeliveries fails if anything was recorded within wait.
func AssertNoDeliveries[T any](t *testing.T, r *Recorder[T], wait time.Duration) {
	t.Helper()

	time.Sleep(wait)
	if n := r.Count(); n > 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}
