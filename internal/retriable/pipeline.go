package retriable

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Operation is a handle on one chain submitted to a Pipeline.
type Operation struct {
	chain  []Retriable
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
	err    error
}

// Cancel stops the operation. A step that is waiting on a backoff, or that has not started yet, will
// never run. A step that is currently running sees its context cancelled.
func (o *Operation) Cancel() {
	o.cancel()
}

// Done returns a channel that is closed when the operation has finished, successfully or not.
func (o *Operation) Done() <-chan struct{} {
	return o.doneCh
}

// Err returns nil if every step succeeded, or one of ErrCancelled, ErrRejected and
// ErrRetriesExhausted. It must only be called after Done is closed.
func (o *Operation) Err() error {
	return o.err
}

// Pipeline executes submitted operations one at a time, in order, on its own goroutine.
//
// Backoff waits happen on that goroutine, so a caller that owns a serialization domain is never
// blocked by them.
type Pipeline struct {
	queue    []*Operation
	current  *Operation
	lock     sync.Mutex
	signalCh chan struct{}
	closeCh  chan struct{}
	doneCh   chan struct{}
	closeOne sync.Once
	loggers  ldlog.Loggers
	newTimer func(time.Duration) (<-chan time.Time, func() bool)
}

// NewPipeline creates a Pipeline and starts its goroutine.
func NewPipeline(loggers ldlog.Loggers) *Pipeline {
	p := &Pipeline{
		signalCh: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		loggers:  loggers,
		newTimer: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
	go p.run()
	return p
}

// Execute submits a chain of Retriables as one operation. If the pipeline has been closed, the
// returned operation is already done with ErrCancelled.
func (p *Pipeline) Execute(chain ...Retriable) *Operation {
	ctx, cancel := context.WithCancel(context.Background())
	op := &Operation{chain: chain, ctx: ctx, cancel: cancel, doneCh: make(chan struct{})}
	p.lock.Lock()
	select {
	case <-p.closeCh:
		p.lock.Unlock()
		p.finish(op, ErrCancelled)
		return op
	default:
	}
	p.queue = append(p.queue, op)
	p.lock.Unlock()
	select {
	case p.signalCh <- struct{}{}:
	default:
	}
	return op
}

// CancelAll cancels the running operation and every queued one.
func (p *Pipeline) CancelAll() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.current != nil {
		p.current.Cancel()
	}
	for _, op := range p.queue {
		op.Cancel()
	}
}

// Close cancels all operations and waits for the pipeline goroutine to exit.
func (p *Pipeline) Close() {
	p.closeOne.Do(func() {
		p.lock.Lock()
		close(p.closeCh)
		p.lock.Unlock()
		p.CancelAll()
		<-p.doneCh
	})
}

func (p *Pipeline) run() {
	defer close(p.doneCh)
	for {
		p.lock.Lock()
		var op *Operation
		if len(p.queue) > 0 {
			op = p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
		}
		p.current = op
		p.lock.Unlock()

		if op != nil {
			p.finish(op, p.runOperation(op))
			p.lock.Lock()
			p.current = nil
			p.lock.Unlock()
			continue
		}

		select {
		case <-p.signalCh:
		case <-p.closeCh:
			p.lock.Lock()
			remaining := p.queue
			p.queue = nil
			p.lock.Unlock()
			for _, op := range remaining {
				p.finish(op, ErrCancelled)
			}
			return
		}
	}
}

func (p *Pipeline) finish(op *Operation, err error) {
	op.err = err
	op.cancel()
	close(op.doneCh)
}

func (p *Pipeline) runOperation(op *Operation) error {
	for restarts := 0; ; restarts++ {
		err, invalidatedBy := p.runChain(op)
		if invalidatedBy == nil {
			return err
		}
		if restarts >= MaxRestarts {
			p.loggers.Debugf("Step %q invalidated the operation %d times; giving up", invalidatedBy.Name, restarts+1)
			return ErrRetriesExhausted
		}
		delay := invalidatedBy.backoff().Delay(restarts)
		p.loggers.Debugf("Step %q invalidated the operation; restarting in %s", invalidatedBy.Name, delay)
		if !p.wait(op.ctx, delay) {
			return ErrCancelled
		}
	}
}

// runChain runs the chain once from its first step. If a step invalidated the operation, it is
// returned, and the chain must be run again from the start.
func (p *Pipeline) runChain(op *Operation) (error, *Retriable) { //nolint:revive,stylecheck
	for i := range op.chain {
		step := op.chain[i]
		retries := 0
		for {
			if op.ctx.Err() != nil {
				return ErrCancelled, nil
			}
			result := p.runStep(op.ctx, step)
			if op.ctx.Err() != nil {
				return ErrCancelled, nil
			}
			if result == Success {
				break
			}
			switch result {
			case Cancel:
				p.loggers.Debugf("Step %q was rejected", step.Name)
				return ErrRejected, nil
			case Invalidate:
				return nil, &op.chain[i]
			}
			if step.MaxRetries != UnlimitedRetries && retries >= step.MaxRetries {
				p.loggers.Debugf("Step %q exhausted %d retries", step.Name, step.MaxRetries)
				return ErrRetriesExhausted, nil
			}
			delay := step.backoff().Delay(retries)
			p.loggers.Debugf("Step %q will be retried in %s", step.Name, delay)
			if !p.wait(op.ctx, delay) {
				return ErrCancelled, nil
			}
			retries++
		}
	}
	return nil, nil
}

func (p *Pipeline) runStep(ctx context.Context, step Retriable) (result Result) {
	defer func() {
		if err := recover(); err != nil {
			p.loggers.Errorf("Unexpected panic in %q: %+v", step.Name, err)
			result = Cancel
		}
	}()
	return step.Run(ctx)
}

func (p *Pipeline) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timerCh, stop := p.newTimer(d)
	defer stop()
	select {
	case <-timerCh:
		return true
	case <-ctx.Done():
		return false
	}
}
