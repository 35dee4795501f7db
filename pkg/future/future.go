// Package future provides the settle-once result primitive backing
// request-style channel calls. A Future is resolved or rejected exactly
// once; whichever of the competing completion sources (host event, timeout
// timer) settles first wins and later settles are no-ops.
package future

import (
	"context"
	"sync"
)

// Future is a single pending result.
type Future struct {
	once sync.Once
	done chan struct{}
	val  any
	err  error
}

// New returns an unsettled Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future successfully. No-op if already settled.
func (f *Future) Resolve(val any) {
	f.once.Do(func() {
		f.val = val
		close(f.done)
	})
}

// Reject settles the future with an error. No-op if already settled.
func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value or error. It must only be called after
// Done is closed; Await is the blocking form.
func (f *Future) Result() (any, error) {
	return f.val, f.err
}

// Await blocks until the future settles or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
