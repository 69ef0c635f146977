package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	coreerrors "github.com/sufield/certkeeper/internal/core/errors"
)

// MinimumDelay is the shortest wait between two invocations. A zero wait
// would spin without ever giving cancellation a chance to be observed.
const MinimumDelay = time.Millisecond

// WorkUnit is one cycle of scheduled work. It returns how long to wait before
// the next cycle. Any error it returns is fatal to the runner; expected,
// recoverable failures must be handled inside the unit.
type WorkUnit interface {
	Invoke(ctx context.Context) (time.Duration, error)
}

// WorkFunc adapts a function to WorkUnit.
type WorkFunc func(ctx context.Context) (time.Duration, error)

// Invoke implements WorkUnit.
func (f WorkFunc) Invoke(ctx context.Context) (time.Duration, error) {
	return f(ctx)
}

// RunnerState is the lifecycle state of a ScheduledRunner.
type RunnerState int32

const (
	StateIdle RunnerState = iota
	StateInvoking
	StateWaiting
	StateStopped
	StateFailed
)

// String returns string representation of the runner state
func (s RunnerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInvoking:
		return "invoking"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FatalError is returned by Run when the work unit fails. It is the signal
// that the background task died, as opposed to being stopped.
type FatalError struct {
	Task string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("background task %s failed: %v", e.Task, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is matches coreerrors.ErrRefreshFatal.
func (e *FatalError) Is(target error) bool {
	return errors.Is(coreerrors.ErrRefreshFatal, target)
}

// ScheduledRunner invokes a work unit, waits for the delay the unit asks for,
// and repeats until its context is cancelled or the unit fails.
type ScheduledRunner struct {
	name   string
	work   WorkUnit
	logger *slog.Logger
	state  atomic.Int32
	wait   func(ctx context.Context, d time.Duration) error
}

// NewScheduledRunner creates a runner for work. name labels log lines.
func NewScheduledRunner(name string, work WorkUnit, logger *slog.Logger) (*ScheduledRunner, error) {
	if work == nil {
		return nil, fmt.Errorf("work unit cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ScheduledRunner{
		name:   name,
		work:   work,
		logger: logger.With("task", name),
		wait:   sleepContext,
	}, nil
}

// State returns the runner's current state.
func (r *ScheduledRunner) State() RunnerState {
	return RunnerState(r.state.Load())
}

// Run executes the loop on the calling goroutine. It returns nil when ctx is
// cancelled and a *FatalError when the work unit returns an error or panics.
func (r *ScheduledRunner) Run(ctx context.Context) error {
	r.logger.Info("Starting background task")

	for {
		if ctx.Err() != nil {
			return r.stopped()
		}

		r.setState(StateInvoking)
		delay, err := r.invoke(ctx)
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return r.stopped()
			}

			r.setState(StateFailed)
			r.logger.Error("Background task work unit failed", "error", err)
			return &FatalError{Task: r.name, Err: err}
		}

		if delay <= 0 {
			delay = MinimumDelay
		}

		r.setState(StateWaiting)
		r.logger.Debug("Waiting for next cycle", "delay", delay)
		if err := r.wait(ctx, delay); err != nil {
			return r.stopped()
		}
	}
}

// Start runs the loop on a new goroutine and returns a handle to supervise it.
func (r *ScheduledRunner) Start(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		name:   r.name,
		runner: r,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer cancel()
		task.err = r.Run(ctx)
	}()

	return task
}

func (r *ScheduledRunner) invoke(ctx context.Context) (delay time.Duration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in work unit: %v\n%s", p, debug.Stack())
		}
	}()
	return r.work.Invoke(ctx)
}

func (r *ScheduledRunner) stopped() error {
	r.setState(StateStopped)
	r.logger.Info("Background task stopped")
	return nil
}

func (r *ScheduledRunner) setState(s RunnerState) {
	r.state.Store(int32(s))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task supervises a runner started with ScheduledRunner.Start.
type Task struct {
	name   string
	runner *ScheduledRunner
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the loop has exited for any reason.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns nil while running or after a clean stop, and the *FatalError
// after a failure. It is only meaningful once Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// State returns the underlying runner state.
func (t *Task) State() RunnerState {
	return t.runner.State()
}

// Stop cancels the loop and waits for it to exit. It returns the fatal error
// if the loop had already failed.
func (t *Task) Stop() error {
	t.cancel()
	<-t.done
	return t.err
}

// Close implements shutdown.Server.
func (t *Task) Close() error {
	return t.Stop()
}
