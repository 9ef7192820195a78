// File: internal/dispatch/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
	"go.uber.org/zap"
)

// ProcessFunc handles one event on a worker goroutine.
type ProcessFunc[S any] func(ev Event[S])

// Dispatcher schedules session events on an executor.
type Dispatcher[S any] struct {
	exec    api.Executor
	process ProcessFunc[S]
	log     *zap.Logger
}

// New creates a Dispatcher running process on exec.
func New[S any](exec api.Executor, process ProcessFunc[S], log *zap.Logger) *Dispatcher[S] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher[S]{exec: exec, process: process, log: log}
}

// Dispatch queues ev behind earlier events of the same session. When no
// drain is active for q one is submitted to the executor, which may block
// while the executor queue is full.
func (d *Dispatcher[S]) Dispatch(q *Serial[S], ev Event[S]) error {
	if !q.push(ev) {
		return nil
	}
	if err := d.exec.Submit(func() { d.drain(q) }); err != nil {
		q.abort()
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	return nil
}

func (d *Dispatcher[S]) drain(q *Serial[S]) {
	for {
		ev, ok := q.next()
		if !ok {
			return
		}
		d.run(ev)
	}
}

func (d *Dispatcher[S]) run(ev Event[S]) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked",
				zap.Stringer("event", ev.Kind),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	d.process(ev)
}
