// Package worker runs batches of independent jobs on a bounded number of
// goroutines. The CLI uses it to edit many designs at once, one editor
// session per file.
package worker

import (
	"context"
	"sync"
)

// Pool is a fixed set of goroutines draining a shared queue. Submit blocks
// once workers*4 jobs are pending.
type Pool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup
}

// NewPool creates a Pool with n goroutines; n <= 0 means 1.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{workers: n, queue: make(chan func(), n*4)}
}

// Start launches the goroutines. Call it once, before Submit.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.queue {
				job()
			}
		}()
	}
}

// Submit enqueues job. It must not be called after Stop.
func (p *Pool) Submit(job func()) { p.queue <- job }

// Stop waits for every queued job to finish and the goroutines to exit.
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
}

// Run calls fn for every item on up to workers goroutines and returns the
// per-item errors in input order. Items not yet started when ctx is
// cancelled get ctx.Err() without fn being called.
func Run[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, i int, item T) error) []error {
	errs := make([]error, len(items))
	p := NewPool(min(workers, max(len(items), 1)))
	p.Start()
	for i, item := range items {
		p.Submit(func() {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = fn(ctx, i, item)
		})
	}
	p.Stop()
	return errs
}
