// File: fake/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Recording api.Handler.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-net/api"
)

// Event kinds recorded by Handler.
const (
	Connect    = "connect"
	Receive    = "receive"
	Sent       = "sent"
	Idle       = "idle"
	Exception  = "exception"
	Disconnect = "disconnect"
)

// Event is one recorded callback.
type Event struct {
	Kind    string
	Session api.Session
	Msg     any
	Err     error
}

// Handler records every callback in order and flags callbacks that overlap
// on the same session.
type Handler struct {
	// ConnectReply and ReceiveReply compute replies when set.
	ConnectReply func(s api.Session) any
	ReceiveReply func(s api.Session, msg any) any
	// Delay is slept inside each callback.
	Delay time.Duration

	mu       sync.Mutex
	events   []Event
	active   map[string]bool
	overlaps int
	changed  chan struct{}
}

var _ api.Handler = (*Handler)(nil)

// NewHandler creates an empty recorder.
func NewHandler() *Handler {
	return &Handler{active: make(map[string]bool), changed: make(chan struct{}, 1)}
}

func (h *Handler) enter(s api.Session) {
	h.mu.Lock()
	if h.active[s.ID()] {
		h.overlaps++
	}
	h.active[s.ID()] = true
	h.mu.Unlock()
	if h.Delay > 0 {
		time.Sleep(h.Delay)
	}
}

func (h *Handler) leave(ev Event) {
	h.mu.Lock()
	h.active[ev.Session.ID()] = false
	h.events = append(h.events, ev)
	h.mu.Unlock()
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

func (h *Handler) OnConnect(s api.Session) any {
	h.enter(s)
	defer h.leave(Event{Kind: Connect, Session: s})
	if h.ConnectReply != nil {
		return h.ConnectReply(s)
	}
	return nil
}

func (h *Handler) OnReceive(s api.Session, msg any) any {
	h.enter(s)
	defer h.leave(Event{Kind: Receive, Session: s, Msg: msg})
	if h.ReceiveReply != nil {
		return h.ReceiveReply(s, msg)
	}
	return nil
}

func (h *Handler) OnSent(s api.Session, msg any) {
	h.enter(s)
	h.leave(Event{Kind: Sent, Session: s, Msg: msg})
}

func (h *Handler) OnIdle(s api.Session) {
	h.enter(s)
	h.leave(Event{Kind: Idle, Session: s})
}

func (h *Handler) OnException(s api.Session, err error) {
	h.enter(s)
	h.leave(Event{Kind: Exception, Session: s, Err: err})
}

func (h *Handler) OnDisconnect(s api.Session) {
	h.enter(s)
	h.leave(Event{Kind: Disconnect, Session: s})
}

// Events returns a copy of the recorded callbacks.
func (h *Handler) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Kinds returns the recorded callback kinds, optionally for one session.
func (h *Handler) Kinds(s api.Session) []string {
	var out []string
	for _, ev := range h.Events() {
		if s == nil || ev.Session.ID() == s.ID() {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// Count returns how many callbacks of kind were recorded.
func (h *Handler) Count(kind string) int {
	n := 0
	for _, ev := range h.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Received returns the messages passed to OnReceive in order.
func (h *Handler) Received() []any {
	var out []any
	for _, ev := range h.Events() {
		if ev.Kind == Receive {
			out = append(out, ev.Msg)
		}
	}
	return out
}

// Overlaps returns how many callbacks started while another one for the same
// session was still running.
func (h *Handler) Overlaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overlaps
}

// WaitFor blocks until cond holds or the timeout elapses.
func (h *Handler) WaitFor(timeout time.Duration, cond func(h *Handler) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if cond(h) {
			return true
		}
		select {
		case <-h.changed:
		case <-deadline.C:
			return cond(h)
		}
	}
}
