package execution

import (
	"context"
	"time"

	"github.com/c360/dataprocessor/pkg/worker"
)

// Task is one piece of executor work. Abort, when set, runs instead of Run if
// the executor discards the task before starting it.
type Task struct {
	Run   func()
	Abort func()
}

// Executor runs units off the caller's goroutine.
type Executor interface {
	Submit(task Task) error
}

// GoExecutor starts one goroutine per task. It is used when no worker pool
// is configured.
type GoExecutor struct{}

// Submit runs task on a new goroutine.
func (GoExecutor) Submit(task Task) error {
	go task.Run()
	return nil
}

// PoolExecutor runs tasks on a fixed-size worker pool.
type PoolExecutor struct {
	pool *worker.Pool[Task]
}

// NewPoolExecutor builds a pool of workers; workers <= 0 selects
// worker.DefaultWorkers. The pool does not run until Start. Tasks the pool
// discards have their Abort run.
func NewPoolExecutor(workers int, opts ...worker.Option[Task]) *PoolExecutor {
	opts = append(opts, worker.WithDropHandler(abortTask))
	return &PoolExecutor{pool: worker.NewPool(workers, runPooled, opts...)}
}

func runPooled(_ context.Context, task Task) error {
	task.Run()
	return nil
}

func abortTask(task Task) {
	if task.Abort != nil {
		task.Abort()
	}
}

// Start launches the workers.
func (p *PoolExecutor) Start(ctx context.Context) error { return p.pool.Start(ctx) }

// Submit queues task. It fails once the pool is stopped.
func (p *PoolExecutor) Submit(task Task) error { return p.pool.Submit(task) }

// Stop refuses new tasks and drains the queue.
func (p *PoolExecutor) Stop(timeout time.Duration) error { return p.pool.Stop(timeout) }

// ShutdownNow aborts queued tasks, waits for running ones and returns how
// many were aborted.
func (p *PoolExecutor) ShutdownNow(timeout time.Duration) (int, error) {
	return p.pool.ShutdownNow(timeout)
}

// Stats reports pool counters.
func (p *PoolExecutor) Stats() worker.PoolStats { return p.pool.Stats() }
