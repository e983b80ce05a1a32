// Package worker implements the pool that runs the stateless payload checks
// away from the single writer of the chain state.
package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrShutdown is returned by futures of checks submitted after shutdown.
var ErrShutdown = errors.New("worker pool is shut down")

// DefaultSize is the number of checks running at the same time when the
// configuration does not specify one.
const DefaultSize = 8

// =============================================================================

// Future represents the result of one check running in the pool.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the check completes or the context is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the check completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// WaitAll waits for every future and returns their results in order. The
// first context error stops the wait and is returned.
func WaitAll(ctx context.Context, futures []*Future) ([]error, error) {
	errs := make([]error, len(futures))
	for i, f := range futures {
		select {
		case <-f.done:
			errs[i] = f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return errs, nil
}

// =============================================================================

// Pool runs checks on a bounded number of goroutines.
type Pool struct {
	size      int
	wg        sync.WaitGroup
	mu        sync.Mutex
	shut      bool
	evHandler func(v string, args ...any)
}

// New constructs a pool running at most size checks at the same time.
func New(size int, evHandler func(v string, args ...any)) *Pool {
	if size <= 0 {
		size = DefaultSize
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Pool{
		size:      size,
		evHandler: ev,
	}
}

// Size returns the maximum number of checks running at the same time.
func (p *Pool) Size() int {
	return p.size
}

// Run schedules the checks and returns one future per check in the same
// order. The call does not wait for the checks to run.
func (p *Pool) Run(checks ...func() error) []*Future {
	futures := make([]*Future, len(checks))
	for i := range futures {
		futures[i] = newFuture()
	}

	p.mu.Lock()
	if p.shut {
		p.mu.Unlock()
		for _, f := range futures {
			f.resolve(ErrShutdown)
		}
		return futures
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		var g errgroup.Group
		g.SetLimit(p.size)

		for i, check := range checks {
			f := futures[i]
			g.Go(func() error {
				f.resolve(check())
				return nil
			})
		}

		g.Wait()
	}()

	return futures
}

// Shutdown rejects new checks and waits for the scheduled ones to finish.
func (p *Pool) Shutdown() {
	p.evHandler("worker: shutdown: started")
	defer p.evHandler("worker: shutdown: completed")

	p.mu.Lock()
	p.shut = true
	p.mu.Unlock()

	p.wg.Wait()
}
