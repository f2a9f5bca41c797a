package bridge

import (
	"context"
	"sync"
)

// Future is the pending result of a bridged call. Calls are never cancelled:
// ctx passed to Await only bounds how long the caller waits.
type Future struct {
	done  chan struct{}
	value any
	err   error
	once  sync.Once
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.resolve(nil, err)
	return f
}

func (f *Future) resolve(v any, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result or for ctx to end. A ctx error leaves the call
// running; a later Await still observes its result.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
