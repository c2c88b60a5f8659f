package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugwall/pkg/observability"
)

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool shut down")

// Task is one unit of work. Its context is canceled when the task's timeout
// expires or the pool shuts down.
type Task func(ctx context.Context) error

// WorkerPool runs tasks on a fixed number of goroutines. Task errors and
// panics are reported to the task's done callback, never to the caller of
// Submit.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	workCh chan job
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

type job struct {
	task Task
	done func(error)
}

// NewWorkerPool starts a pool of workers. A nil logger discards panic reports.
//
//	pool := async.NewWorkerPool(ctx, 4, "instantiate providers", 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return instantiate(ctx, provider)
//	}, nil)
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, logger *logrus.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		log:      observability.OrDiscard(logger).WithField("task", taskName),
		ctx:      ctx,
		cancel:   cancel,
		workCh:   make(chan job, workers*2),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer p.wg.Done()
			p.worker(id)
		}(i)
	}
	return p
}

// Submit queues task. done, if not nil, receives the task's result.
// Submit blocks while the queue is full.
func (p *WorkerPool) Submit(task Task, done func(error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- job{task: task, done: done}:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait stops accepting tasks and blocks until every queued task has run
func (p *WorkerPool) Wait() {
	p.close()
	p.wg.Wait()
}

// Shutdown stops accepting tasks and waits up to timeout for queued tasks.
// Tasks still running after timeout have their context canceled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.shutdownOnce.Do(func() {
		p.close()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
		p.cancel()
	})
	return err
}

func (p *WorkerPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.workCh)
	}
}

func (p *WorkerPool) worker(id int) {
	for j := range p.workCh {
		err := p.run(id, j.task)
		if j.done != nil {
			j.done(err)
		}
	}
}

func (p *WorkerPool) run(id int, task Task) (err error) {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"worker": id,
				"stack":  string(debug.Stack()),
			}).Errorf("Panic in task: %v", r)
			err = fmt.Errorf("panic in %s: %v", p.taskName, r)
		}
	}()

	return task(ctx)
}

// Batch runs fn for every item on a pool of workers and returns the error of
// each item at the item's index. The result is nil when every item succeeded.
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	logger *logrus.Logger, fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout, logger)
	defer pool.Shutdown(timeout)

	errs := make([]error, len(items))
	for i, item := range items {
		err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}, func(err error) {
			errs[i] = err
		})
		if err != nil {
			errs[i] = err
		}
	}
	pool.Wait()

	for _, err := range errs {
		if err != nil {
			return errs
		}
	}
	return nil
}
