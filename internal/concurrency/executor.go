// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor runs tasks on a resizable set of worker goroutines fed from one
// bounded queue. Submit blocks while the queue is full, which propagates
// backpressure to the producers (reactor threads).

package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-net/api"
	"go.uber.org/zap"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue      chan TaskFunc
	quit       chan struct{} // one token retires one worker
	closeCh    chan struct{}
	closed     atomic.Bool
	numWorkers atomic.Int32
	mu         sync.Mutex // protects resizing
	wg         sync.WaitGroup
	log        *zap.Logger

	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates an Executor. numWorkers <= 0 defaults to
// runtime.NumCPU(); queueSize <= 0 defaults to 64 slots per worker.
func NewExecutor(numWorkers, queueSize int, log *zap.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		queue:   make(chan TaskFunc, queueSize),
		quit:    make(chan struct{}),
		closeCh: make(chan struct{}),
		log:     log,
	}
	e.spawn(numWorkers)
	return e
}

func (e *Executor) spawn(n int) {
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		e.numWorkers.Add(1)
		go e.run()
	}
}

// Submit enqueues a task, blocking while the queue is full. It returns
// ErrExecutorClosed once the executor is closed.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("nil task: %w", api.ErrInvalidArgument)
	}
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	e.totalTasks.Add(1)
	select {
	case e.queue <- task:
		return nil
	case <-e.closeCh:
		e.totalTasks.Add(-1)
		return ErrExecutorClosed
	}
}

// Drain waits until every accepted task has completed, including tasks
// submitted while draining, or until ctx is done.
func (e *Executor) Drain(ctx context.Context) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for e.completedTasks.Load() < e.totalTasks.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// NumWorkers returns the current number of active workers.
func (e *Executor) NumWorkers() int {
	return int(e.numWorkers.Load())
}

// Resize grows or shrinks the worker set. newCount < 1 is ignored.
func (e *Executor) Resize(newCount int) {
	if newCount < 1 || e.closed.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.NumWorkers()
	switch {
	case newCount > cur:
		e.spawn(newCount - cur)
	case newCount < cur:
		for i := 0; i < cur-newCount; i++ {
			select {
			case e.quit <- struct{}{}:
			case <-e.closeCh:
				return
			}
		}
	}
}

// Close stops the workers and waits for them to exit. Queued tasks that no
// worker picked up are dropped.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
	}
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	done := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"queued_tasks":    int64(len(e.queue)),
		"num_workers":     int64(e.NumWorkers()),
		"panics":          e.panics.Load(),
	}
}

func (e *Executor) run() {
	defer e.wg.Done()
	defer e.numWorkers.Add(-1)
	for {
		select {
		case <-e.closeCh:
			return
		case <-e.quit:
			return
		case task := <-e.queue:
			e.execute(task)
		}
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (e *Executor) execute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		e.completedTasks.Add(1)
	}()
	task()
}
