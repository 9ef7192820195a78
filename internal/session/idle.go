// File: internal/session/idle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"sync"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/dispatch"
	"go.uber.org/zap"
)

// idleWatcher fires OnIdle once per interval without inbound bytes. The
// timer is re-armed before the event is dispatched, and idleness never
// closes the session on its own.
type idleWatcher struct {
	s        *Session
	sched    api.Scheduler
	interval time.Duration

	mu      sync.Mutex
	last    int64 // last activity or idle notification, scheduler nanos
	task    api.Cancelable
	stopped bool
}

func newIdleWatcher(s *Session, sched api.Scheduler, interval time.Duration) *idleWatcher {
	return &idleWatcher{s: s, sched: sched, interval: interval}
}

func (w *idleWatcher) enabled() bool { return w.interval > 0 }

func (w *idleWatcher) start() {
	if !w.enabled() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = w.sched.Now()
	w.arm(w.interval)
}

// touch records inbound activity.
func (w *idleWatcher) touch() {
	if !w.enabled() {
		return
	}
	now := w.sched.Now()
	w.mu.Lock()
	w.last = now
	w.mu.Unlock()
}

func (w *idleWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.task != nil {
		_ = w.task.Cancel()
		w.task = nil
	}
}

// arm must be called with mu held.
func (w *idleWatcher) arm(d time.Duration) {
	if w.stopped {
		return
	}
	task, err := w.sched.Schedule(int64(d), w.fire)
	if err != nil {
		w.s.ep.log.Debug("idle timer not armed", zap.String("id", w.s.id), zap.Error(err))
		return
	}
	w.task = task
}

func (w *idleWatcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	now := w.sched.Now()
	elapsed := time.Duration(now - w.last)
	if elapsed < w.interval {
		w.arm(w.interval - elapsed)
		w.mu.Unlock()
		return
	}
	w.last = now
	w.arm(w.interval)
	w.mu.Unlock()

	w.s.ep.metrics.IdleEvents.Inc()
	w.s.dispatch(dispatch.Idle, nil, nil)
}
