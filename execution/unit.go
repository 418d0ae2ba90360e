package execution

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/metric"
	"github.com/c360/dataprocessor/processor"
	"github.com/c360/dataprocessor/request"
)

// Callback receives a finished unit's result on the unit's delivery context.
type Callback[T any] func(result T, statusCode int, statusMessage string)

// Outcome is the snapshot a unit publishes when it reaches a terminal state.
// It is never modified after publication.
type Outcome[T any] struct {
	Result        T
	StatusCode    int
	StatusMessage string
	// Err is the acquisition or parse error, nil for a clean run.
	Err error
}

// Option configures a Unit.
type Option[T any] func(*Unit[T])

// WithCallback sets the initial callback.
func WithCallback[T any](cb Callback[T]) Option[T] {
	return func(u *Unit[T]) { u.callback = cb }
}

// WithDelivery sets the context callbacks are posted to. The default is Inline.
func WithDelivery[T any](c Context) Option[T] {
	return func(u *Unit[T]) {
		if c != nil {
			u.delivery = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(u *Unit[T]) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithMetrics records outcomes and timings. A nil Metrics disables recording.
func WithMetrics[T any](m *metric.Metrics) Option[T] {
	return func(u *Unit[T]) { u.metrics = m }
}

// WithProcessingTime logs the request-to-delivery time of every run.
func WithProcessingTime[T any](enabled bool) Option[T] {
	return func(u *Unit[T]) { u.showTime = enabled }
}

// Unit drives one request through acquisition, processing and delivery.
// A unit runs at most once; afterwards its outcome can be redelivered to any
// number of callbacks without repeating I/O.
type Unit[T any] struct {
	id       string
	req      request.Request
	desc     processor.Descriptor[T]
	delivery Context
	logger   *slog.Logger
	metrics  *metric.Metrics
	showTime bool

	state   atomic.Int32
	started atomic.Bool
	outcome atomic.Pointer[Outcome[T]]
	done    chan struct{}

	// mu orders callback changes against publication of the outcome
	mu       sync.Mutex
	callback Callback[T]
}

// New validates its arguments and returns a unit in StateCreated. No I/O
// happens until Execute.
func New[T any](req request.Request, desc processor.Descriptor[T], opts ...Option[T]) (*Unit[T], error) {
	if req == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Unit", "New", "request is nil")
	}
	if !desc.Valid() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Unit", "New", "processor descriptor is empty")
	}

	u := &Unit[T]{
		id:       uuid.NewString(),
		req:      req,
		desc:     desc,
		delivery: Inline,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With("unit_id", u.id, "request", describe(req), "processor", desc.Name())
	return u, nil
}

func describe(req request.Request) string {
	if s, ok := req.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", req)
}

// ID is the correlation id used in log lines.
func (u *Unit[T]) ID() string { return u.id }

// State returns the current lifecycle state.
func (u *Unit[T]) State() State { return State(u.state.Load()) }

// Request returns the request the unit executes.
func (u *Unit[T]) Request() request.Request { return u.req }

// IsFinished reports whether an outcome has been published.
func (u *Unit[T]) IsFinished() bool { return u.outcome.Load() != nil }

// Done is closed after the callback is posted and the request is closed.
func (u *Unit[T]) Done() <-chan struct{} { return u.done }

// Outcome returns the published snapshot, or false while the unit is running.
func (u *Unit[T]) Outcome() (Outcome[T], bool) {
	o := u.outcome.Load()
	if o == nil {
		return Outcome[T]{}, false
	}
	return *o, true
}

// Result returns the published result, or the zero value before finishing.
func (u *Unit[T]) Result() T {
	o, _ := u.Outcome()
	return o.Result
}

// StatusCode returns the published status, or request.StatusError before
// finishing.
func (u *Unit[T]) StatusCode() int {
	if o, ok := u.Outcome(); ok {
		return o.StatusCode
	}
	return request.StatusError
}

// StatusMessage returns the published status message.
func (u *Unit[T]) StatusMessage() string {
	o, _ := u.Outcome()
	return o.StatusMessage
}

// SetCallback replaces the callback. A nil cb detaches.
func (u *Unit[T]) SetCallback(cb Callback[T]) {
	u.mu.Lock()
	u.callback = cb
	u.mu.Unlock()
}

// DetachCallback drops the callback; a pending delivery becomes a no-op.
func (u *Unit[T]) DetachCallback() { u.SetCallback(nil) }

// RedeliverTo hands a finished unit's outcome to cb, which becomes the
// callback for later Redeliver calls, and reports true. A running unit is
// left untouched and keeps its current callback; RedeliverTo reports false.
// A nil cb only reports whether the unit has finished.
func (u *Unit[T]) RedeliverTo(cb Callback[T]) bool {
	u.mu.Lock()
	o := u.outcome.Load()
	if o != nil && cb != nil {
		u.callback = cb
	}
	u.mu.Unlock()

	if o == nil {
		return false
	}
	if cb != nil {
		u.post(cb, o)
		u.metrics.RecordRedelivery()
	}
	return true
}

// Redeliver posts the stored outcome to the current callback. It does nothing
// before the unit finishes or when no callback is attached.
func (u *Unit[T]) Redeliver() bool {
	u.mu.Lock()
	cb := u.callback
	o := u.outcome.Load()
	u.mu.Unlock()

	if o == nil || cb == nil {
		return false
	}
	u.post(cb, o)
	u.metrics.RecordRedelivery()
	return true
}

// Execute runs the unit on the calling goroutine and returns its result. The
// callback is posted to the delivery context before Execute returns. Calling
// Execute on a unit that already ran returns the stored result.
func (u *Unit[T]) Execute(ctx context.Context) T {
	if !u.started.CompareAndSwap(false, true) {
		u.logger.Warn("unit already executed, returning stored result")
		return u.Result()
	}
	u.run(ctx)
	return u.Result()
}

// ExecuteAsync hands the unit to exec. A nil exec runs it on a new goroutine.
func (u *Unit[T]) ExecuteAsync(ctx context.Context, exec Executor) error {
	if exec == nil {
		exec = GoExecutor{}
	}
	task := Task{
		Run:   func() { u.Execute(ctx) },
		Abort: u.abort,
	}
	if err := exec.Submit(task); err != nil {
		return errors.Wrap(err, "Unit", "ExecuteAsync", "submit to executor")
	}
	return nil
}

func (u *Unit[T]) run(ctx context.Context) {
	defer close(u.done)
	u.metrics.UnitStarted()
	defer u.metrics.UnitFinished()

	var (
		stream io.ReadCloser
		reused bool
		err    error
	)
	// runs before done is closed, even when a callback panics
	defer func() { u.cleanup(stream) }()

	u.setState(StateAcquiringStream)
	stream, reused, err = u.acquire(ctx)
	if err != nil {
		u.fail(err)
		return
	}

	u.setState(StateProcessing)
	result, perr := u.process(stream)

	code, message := u.req.StatusCode(), u.req.StatusMessage()
	if reused {
		code, message = request.StatusFileSuccess, "OK"
	}
	if perr != nil {
		u.logger.Warn("processing failed, delivering partial result", "status", code, "error", perr)
		u.metrics.RecordOutcome(metric.OutcomeParseError)
	} else {
		u.metrics.RecordOutcome(metric.OutcomeDelivered)
	}

	u.finish(StateDelivered, &Outcome[T]{
		Result:        result,
		StatusCode:    code,
		StatusMessage: message,
		Err:           perr,
	})
}

// abort finishes a unit its executor discarded before running it. The
// callback receives a StatusError outcome and the request is closed.
func (u *Unit[T]) abort() {
	if !u.started.CompareAndSwap(false, true) {
		return
	}
	defer close(u.done)
	defer u.cleanup(nil)

	err := errors.WrapTransient(errors.ErrShuttingDown, "Unit", "abort", "discard queued unit")
	u.logger.Warn("unit discarded before running", "error", err)
	u.metrics.RecordOutcome(metric.OutcomeDropped)
	u.finish(StateFailed, &Outcome[T]{
		StatusCode:    request.StatusError,
		StatusMessage: err.Error(),
		Err:           err,
	})
}

func (u *Unit[T]) fail(err error) {
	code, message := u.req.StatusCode(), u.req.StatusMessage()
	if request.IsSuccess(code) {
		// the source answered; the failure happened on our side
		code, message = request.StatusError, err.Error()
	}

	switch errors.IOKindOf(err) {
	case errors.IOKindTimeout:
		u.logger.Warn("connection timed out", "status", code, "error", err)
		u.metrics.RecordOutcome(metric.OutcomeTimeout)
	case errors.IOKindNotFound:
		u.logger.Warn("resource not found", "status", code, "error", err)
		u.metrics.RecordOutcome(metric.OutcomeNotFound)
	default:
		u.logger.Error("stream acquisition failed", "status", code, "error", err)
		u.metrics.RecordOutcome(metric.OutcomeIOError)
	}

	u.finish(StateFailed, &Outcome[T]{
		StatusCode:    code,
		StatusMessage: message,
		Err:           err,
	})
}

// process parses stream with a fresh processor. On failure err wraps
// errors.ErrParsingFailed and result is whatever the processor had built.
func (u *Unit[T]) process(stream io.Reader) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = errors.Wrap(fmt.Errorf("%w: panic: %v", errors.ErrParsingFailed, r), "Unit", "process", "parse body")
		}
	}()

	p, err := u.desc.New(u.logger)
	if err != nil {
		return result, err
	}

	if err := p.Parse(stream); err != nil {
		if !stderrors.Is(err, errors.ErrParsingFailed) {
			err = fmt.Errorf("%w: %w", errors.ErrParsingFailed, err)
		}
		return p.Result(), errors.Wrap(err, "Unit", "process", "parse body")
	}
	return p.Result(), nil
}

func (u *Unit[T]) finish(state State, o *Outcome[T]) {
	u.mu.Lock()
	u.outcome.Store(o)
	cb := u.callback
	u.mu.Unlock()

	u.setState(state)
	u.observe(o)

	if cb != nil {
		u.post(cb, o)
	} else {
		u.logger.Debug("no callback attached, result stored")
	}
}

func (u *Unit[T]) post(cb Callback[T], o *Outcome[T]) {
	u.delivery.Post(func() { cb(o.Result, o.StatusCode, o.StatusMessage) })
}

func (u *Unit[T]) observe(o *Outcome[T]) {
	start := u.req.StartTime()
	if start.IsZero() {
		return
	}
	elapsed := time.Since(start)
	u.metrics.RecordDuration(u.desc.Kind().String(), elapsed)
	if u.showTime {
		u.logger.Info("request processed", "status", o.StatusCode, "elapsed", elapsed)
	}
}

// cleanup closes the stream, then the request. Errors are logged only.
func (u *Unit[T]) cleanup(stream io.Closer) {
	if stream != nil {
		if err := stream.Close(); err != nil {
			u.logger.Warn("close stream", "error", err)
		}
	}
	if err := u.req.Close(); err != nil {
		u.logger.Warn("close request", "error", err)
	}
}

func (u *Unit[T]) setState(s State) { u.state.Store(int32(s)) }
