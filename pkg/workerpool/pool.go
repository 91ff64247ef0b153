// Package workerpool runs fire-and-forget jobs on a fixed set of goroutines
// behind a bounded queue. The notification dispatcher uses it so a slow
// webhook never holds up the request that caused it.
//
//	pool := workerpool.New("webhook", 4, 64)
//	defer pool.Shutdown(ctx)
//
//	if err := pool.Submit(func(ctx context.Context) { deliver(ctx) }); err != nil {
//	    // ErrPoolFull or ErrPoolClosed: the job was not accepted
//	}
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
)

var (
	// ErrPoolFull is returned by Submit when the queue is at capacity.
	ErrPoolFull = errors.New("workerpool: pool is full")
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

// Job receives a context that is cancelled when Shutdown gives up waiting.
type Job func(ctx context.Context)

type Pool struct {
	name string
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts workers goroutines sharing a queue of depth queue. Non-positive
// values are raised to 1.
func New(name string, workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		jobs:   make(chan Job, queue),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		metrics.PoolJobs.WithLabelValues(p.name, "queued").Inc()
		return nil
	default:
		metrics.PoolJobs.WithLabelValues(p.name, "rejected").Inc()
		return ErrPoolFull
	}
}

// Shutdown stops accepting jobs and waits for the queue to drain. When ctx
// ends first, running jobs see their context cancelled and Shutdown returns
// ctx.Err() without waiting further. Safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PoolJobs.WithLabelValues(p.name, "panicked").Inc()
			logger.Component("workerpool").Error("job panicked", "pool", p.name, "panic", r)
		}
	}()
	job(p.ctx)
	metrics.PoolJobs.WithLabelValues(p.name, "done").Inc()
}
