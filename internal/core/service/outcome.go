package service

import (
	"context"
	"sync"
)

// Outcome is a single-assignment result that may be fulfilled by more than
// one channel (the HTTP acknowledgement or an SSE event). The first
// resolution wins; later ones are ignored.
type Outcome[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	value  T
	err    error
	source string
}

// NewOutcome returns a pending outcome.
func NewOutcome[T any]() *Outcome[T] {
	return &Outcome[T]{done: make(chan struct{})}
}

// Resolve fulfils the outcome with a value. It reports whether this call won.
func (o *Outcome[T]) Resolve(v T, source string) bool {
	return o.settle(v, nil, source)
}

// Fail fulfils the outcome with an error. It reports whether this call won.
func (o *Outcome[T]) Fail(err error, source string) bool {
	var zero T
	return o.settle(zero, err, source)
}

func (o *Outcome[T]) settle(v T, err error, source string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case <-o.done:
		return false
	default:
	}
	o.value, o.err, o.source = v, err, source
	close(o.done)
	return true
}

// Done is closed once the outcome is settled.
func (o *Outcome[T]) Done() <-chan struct{} {
	return o.done
}

// Settled reports whether a result is available, and returns it.
func (o *Outcome[T]) Settled() (T, bool, error) {
	select {
	case <-o.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.value, true, o.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Source names the channel that settled the outcome ("" while pending).
func (o *Outcome[T]) Source() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

// Wait blocks until the outcome settles or ctx is done. A settled outcome
// is returned even when ctx is already done.
func (o *Outcome[T]) Wait(ctx context.Context) (T, error) {
	if v, ok, err := o.Settled(); ok {
		return v, err
	}
	select {
	case <-o.done:
		v, _, err := o.Settled()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
