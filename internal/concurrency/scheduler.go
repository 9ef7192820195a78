// File: internal/concurrency/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer scheduler driven by a clock.Clock so timing logic can run against
// a mock clock in tests.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-net/api"
)

// Scheduler runs callbacks after a delay.
type Scheduler struct {
	clk    clock.Clock
	closed atomic.Bool

	mu      sync.Mutex
	pending map[*scheduledTask]struct{}
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler on clk; nil means the wall clock.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clk: clk, pending: make(map[*scheduledTask]struct{})}
}

// Clock returns the clock driving the scheduler.
func (s *Scheduler) Clock() clock.Clock { return s.clk }

// Schedule runs fn on its own goroutine after delayNanos.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	if s.closed.Load() {
		return nil, ErrSchedulerClosed
	}
	if delayNanos < 0 {
		delayNanos = 0
	}
	t := &scheduledTask{sched: s, done: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.timer = s.clk.AfterFunc(time.Duration(delayNanos), func() {
		if !t.state.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		s.forget(t)
		defer t.finish(nil)
		fn()
	})
	s.pending[t] = struct{}{}
	return t, nil
}

// Cancel cancels a task returned by Schedule.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	if c == nil {
		return nil
	}
	return c.Cancel()
}

// Now returns the clock time in nanoseconds.
func (s *Scheduler) Now() int64 { return s.clk.Now().UnixNano() }

// Pending returns the number of tasks not yet started or canceled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending task and rejects new ones.
func (s *Scheduler) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	tasks := make([]*scheduledTask, 0, len(s.pending))
	for t := range s.pending {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		_ = t.Cancel()
	}
}

func (s *Scheduler) forget(t *scheduledTask) {
	s.mu.Lock()
	delete(s.pending, t)
	s.mu.Unlock()
}

const (
	taskPending int32 = iota
	taskRunning
	taskDone
)

type scheduledTask struct {
	sched *Scheduler
	timer *clock.Timer
	state atomic.Int32
	done  chan struct{}
	once  sync.Once
	err   atomic.Value
}

// Cancel stops the task if it has not started yet.
func (t *scheduledTask) Cancel() error {
	if !t.state.CompareAndSwap(taskPending, taskDone) {
		return nil
	}
	t.sched.mu.Lock()
	timer := t.timer
	delete(t.sched.pending, t)
	t.sched.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	t.finish(ErrTaskCanceled)
	return nil
}

func (t *scheduledTask) Done() <-chan struct{} { return t.done }

func (t *scheduledTask) Err() error {
	if v, ok := t.err.Load().(error); ok {
		return v
	}
	return nil
}

func (t *scheduledTask) finish(err error) {
	t.once.Do(func() {
		if err != nil {
			t.err.Store(err)
		}
		if t.state.Load() == taskRunning {
			t.state.Store(taskDone)
		}
		close(t.done)
	})
}
