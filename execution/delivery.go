package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/dataprocessor/pkg/worker"
)

// Context is where a unit posts its callback. Posting never blocks on the
// callback itself.
type Context interface {
	Post(fn func())
}

type inlineContext struct{}

func (inlineContext) Post(fn func()) { fn() }

// Inline runs callbacks on whichever goroutine delivers the result.
var Inline Context = inlineContext{}

// Loop is a serial delivery context: callbacks run one at a time, in the
// order they were posted, on a single goroutine.
type Loop struct {
	pool   *worker.Pool[func()]
	logger *slog.Logger
}

// NewLoop starts a loop. Cancelling ctx stops it without running queued
// callbacks.
func NewLoop(ctx context.Context, logger *slog.Logger) (*Loop, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		pool:   worker.NewPool(1, runTask, worker.WithLogger[func()](logger)),
		logger: logger,
	}
	if err := l.pool.Start(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Post queues fn. Callbacks posted after Stop are dropped with a warning.
func (l *Loop) Post(fn func()) {
	if err := l.pool.Submit(fn); err != nil {
		l.logger.Warn("delivery loop stopped, callback dropped", "error", err)
	}
}

// Stop runs what is already queued and waits up to timeout for it.
func (l *Loop) Stop(timeout time.Duration) error {
	return l.pool.Stop(timeout)
}

func runTask(_ context.Context, fn func()) error {
	fn()
	return nil
}
