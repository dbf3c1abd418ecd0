// Package future bridges asynchronous work to blocking callers.
//
// A Future completes once with a value or an error. Callers either wait with
// Get, which gives up when its context is done, or with GetUninterruptibly,
// which keeps waiting through cancellation and leaves the context's state for
// the caller to inspect afterwards.
package future

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type Future[T any] struct {
	done      chan struct{}
	mu        sync.Mutex
	completed bool
	value     T
	err       error
	listeners []func(T, error)
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and completes the future with its result. A
// panic in fn completes the future with an error.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				value, err = zero, errors.Errorf("future panicked: %v", r)
			}
			f.Complete(value, err)
		}()
		value, err = fn()
	}()
	return f
}

// Complete sets the result and runs the listeners in registration order. Only
// the first call has an effect; it reports whether this call completed f.
func (f *Future[T]) Complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value, f.err = value, err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, listener := range listeners {
		listener(value, err)
	}
	return true
}

// AddListener registers fn to run once on completion. If f is already
// complete fn runs immediately on the calling goroutine.
func (f *Future[T]) AddListener(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	fn(value, err)
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the result or for ctx to be done, whichever comes first.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetUninterruptibly waits for the result even if ctx is cancelled while
// waiting. The cancellation is not swallowed: ctx stays done and
// Interrupted(ctx) reports it once the result is returned.
func (f *Future[T]) GetUninterruptibly(ctx context.Context) (T, error) {
	interrupt := ctx.Done()
	for {
		select {
		case <-f.done:
			return f.value, f.err
		case <-interrupt:
			interrupt = nil
		}
	}
}

// Interrupted reports whether ctx was cancelled or timed out.
func Interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}
