package internal

import (
	"context"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxWorkers is the worker limit used when NewWorkerPool is given a non-positive size.
const DefaultMaxWorkers = 4

// WorkerPool runs tasks on at most a fixed number of goroutines at once. It is used for work that
// must not run on a serialization domain, such as network calls and delegate callbacks; their results
// are dispatched back onto the owning SerialQueue.
type WorkerPool struct {
	sem     *semaphore.Weighted
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	loggers ldlog.Loggers
}

// NewWorkerPool creates a WorkerPool.
func NewWorkerPool(maxWorkers int, loggers ldlog.Loggers) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		sem:     semaphore.NewWeighted(int64(maxWorkers)),
		ctx:     ctx,
		cancel:  cancel,
		loggers: loggers,
	}
}

// Go runs the task as soon as a worker is free. The task receives a context that is cancelled when
// the pool is closed. If the pool is already closed, the task does not run and Go returns false.
func (p *WorkerPool) Go(task func(ctx context.Context)) bool {
	if p.ctx.Err() != nil {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if err := recover(); err != nil {
				p.loggers.Errorf("Unexpected panic in worker: %+v", err)
			}
		}()
		task(p.ctx)
	}()
	return true
}

// Close cancels the context given to running tasks and waits for them to return.
func (p *WorkerPool) Close() {
	p.cancel()
	p.wg.Wait()
}
