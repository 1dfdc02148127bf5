package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/platinummonkey/ssomap/pkg/observability"
)

// DefaultTimeout bounds a task when the runner is built without one
const DefaultTimeout = 30 * time.Second

// ErrRunnerClosed is returned by Go after Close
var ErrRunnerClosed = errors.New("async runner closed")

// Runner executes fire-and-forget tasks with:
// - Detachment from the caller's cancellation
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` so that shutdown can wait for
// in-flight tasks.
//
// Example:
//
//	runner.Go(r.Context(), "invite email", func(ctx context.Context) error {
//	    return sender.Send(ctx, msg)
//	})
type Runner struct {
	timeout time.Duration
	logger  *observability.Logger
	onError func(name string, err error)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Runner
type Option func(*Runner)

// WithTimeout sets the per-task timeout
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for task failures
func WithLogger(logger *observability.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithErrorHandler registers a callback invoked for every failed or
// panicking task, after logging
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(r *Runner) {
		r.onError = fn
	}
}

// NewRunner creates a new Runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		logger:  observability.NewLogger(observability.InfoLevel, io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Go starts fn in a goroutine. The task context keeps the values of
// parentCtx (request ID, logger, trace span) but is not cancelled with it.
func (r *Runner) Go(parentCtx context.Context, name string, fn func(context.Context) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), r.timeout)
		defer cancel()

		logger := observability.FromContextOr(ctx, r.logger).WithField("task", name)

		defer observability.RecoverPanicWithCallback(logger, name, func(err error) {
			r.fail(name, err)
		})

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
			r.fail(name, err)
		}
	}()

	return nil
}

func (r *Runner) fail(name string, err error) {
	if r.onError != nil {
		r.onError(name, err)
	}
}

// Wait blocks until every started task has finished or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}

// Close stops accepting tasks and waits for in-flight ones
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.Wait(ctx)
}
