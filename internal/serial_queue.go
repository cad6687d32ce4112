package internal

import (
	"context"
	"errors"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ErrQueueClosed is returned by SerialQueue.DispatchSync after Close has been called.
var ErrQueueClosed = errors.New("serial queue has been closed")

// SerialQueue runs submitted tasks one at a time, in submission order, on a single goroutine.
//
// It is the serialization domain for one mutable aggregate: everything that touches the aggregate's
// state is submitted as a task, so the state itself needs no locking. The queue is unbounded; a task
// may dispatch further tasks onto its own queue without deadlocking.
type SerialQueue struct {
	name     string
	tasks    []func()
	lock     sync.Mutex
	signalCh chan struct{}
	doneCh   chan struct{}
	closed   bool
	loggers  ldlog.Loggers
	closeOne sync.Once
}

// NewSerialQueue creates a SerialQueue and starts its goroutine. The name is used only in log messages.
func NewSerialQueue(name string, loggers ldlog.Loggers) *SerialQueue {
	q := &SerialQueue{
		name:     name,
		signalCh: make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
		loggers:  loggers,
	}
	go q.run()
	return q
}

// Dispatch submits a task without waiting for it. It returns false if the queue has been closed, in
// which case the task will never run.
func (q *SerialQueue) Dispatch(task func()) bool {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.lock.Unlock()
	select {
	case q.signalCh <- struct{}{}:
	default:
	}
	return true
}

// DispatchSync submits a task and waits until it has run. If the context is cancelled first, the call
// returns the context's error; the task may still run later. It must not be called from a task running
// on the same queue.
func (q *SerialQueue) DispatchSync(ctx context.Context, task func()) error {
	doneCh := make(chan struct{})
	if !q.Dispatch(func() {
		defer close(doneCh)
		task()
	}) {
		return ErrQueueClosed
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.doneCh:
		// the queue may have drained our task just before shutting down
		select {
		case <-doneCh:
			return nil
		default:
			return ErrQueueClosed
		}
	}
}

// Close stops accepting tasks, runs any that were already submitted, and waits for the goroutine to exit.
func (q *SerialQueue) Close() {
	q.closeOne.Do(func() {
		q.lock.Lock()
		q.closed = true
		q.lock.Unlock()
		select {
		case q.signalCh <- struct{}{}:
		default:
		}
		<-q.doneCh
	})
}

func (q *SerialQueue) run() {
	defer close(q.doneCh)
	for range q.signalCh {
		for {
			q.lock.Lock()
			if len(q.tasks) == 0 {
				closed := q.closed
				q.lock.Unlock()
				if closed {
					return
				}
				break
			}
			task := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.lock.Unlock()
			q.runTask(task)
		}
	}
}

func (q *SerialQueue) runTask(task func()) {
	defer func() {
		if err := recover(); err != nil {
			q.loggers.Errorf("Unexpected panic in %s queue: %+v", q.name, err)
		}
	}()
	task()
}
