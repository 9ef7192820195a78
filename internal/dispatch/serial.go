// File: internal/dispatch/serial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import (
	"sync"

	"github.com/eapache/queue"
)

// Serial is the FIFO of pending events of one session.
type Serial[S any] struct {
	mu      sync.Mutex
	q       *queue.Queue
	running bool
}

// NewSerial creates an empty serial queue.
func NewSerial[S any]() *Serial[S] {
	return &Serial[S]{q: queue.New()}
}

// push appends ev and reports whether the caller must start a drain.
func (s *Serial[S]) push(ev Event[S]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.Add(ev)
	if s.running {
		return false
	}
	s.running = true
	return true
}

// next pops the head event, or clears the running flag when empty.
func (s *Serial[S]) next() (Event[S], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q.Length() == 0 {
		s.running = false
		var zero Event[S]
		return zero, false
	}
	return s.q.Remove().(Event[S]), true
}

// abort releases a drain that could not be scheduled.
func (s *Serial[S]) abort() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Len returns the number of queued events.
func (s *Serial[S]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Length()
}
