// Package workerpool runs comparison jobs on a fixed set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to Job
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error { return f(ctx) }

// Stats counts finished jobs. A panicking job counts as failed.
type Stats struct {
	Completed int64
	Failed    int64
}

type WorkerPool struct {
	size  int
	queue chan Job

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed against concurrent Submit and Close
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

// DefaultSize leaves a quarter of the CPUs to the rest of the process
func DefaultSize() int {
	cpus := runtime.NumCPU()
	return max(1, cpus-max(1, cpus/4))
}

// New starts size workers bound to ctx. size <= 0 selects DefaultSize.
func New(ctx context.Context, size int) *WorkerPool {
	if size <= 0 {
		size = DefaultSize()
	}
	poolCtx, cancel := context.WithCancel(ctx)

	p := &WorkerPool{
		size:   size,
		queue:  make(chan Job, size*2),
		ctx:    poolCtx,
		cancel: cancel,
	}
	p.wg.Add(size)
	for id := range size {
		go p.loop(id)
	}

	log.Debug().Int("workers", size).Msg("Worker pool started")
	return p
}

func (p *WorkerPool) loop(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.execute(job); err != nil {
				p.failed.Add(1)
				log.Error().Err(err).Int("worker", id).Msg("Job failed")
				continue
			}
			p.completed.Add(1)
		}
	}
}

func (p *WorkerPool) execute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(p.ctx)
}

// Submit blocks until a worker slot frees up in the queue. It fails once the
// pool is closed or its context is done.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.queue <- job:
		return nil
	}
}

// Close drains queued jobs and waits for the workers. Safe to call twice.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *WorkerPool) Size() int {
	return p.size
}

func (p *WorkerPool) Stats() Stats {
	return Stats{Completed: p.completed.Load(), Failed: p.failed.Load()}
}
