// File: api/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Application callback contract.

package api

// Handler receives session lifecycle events. Callbacks for a single session
// never run concurrently and are delivered in the order the events happened.
//
// OnConnect and OnReceive may return a reply; a non-nil reply is encoded by
// the filter chain and written back on the same session.
type Handler interface {
	OnConnect(s Session) any
	OnReceive(s Session, msg any) any
	OnSent(s Session, msg any)
	OnIdle(s Session)
	OnException(s Session, err error)
	OnDisconnect(s Session)
}

// HandlerFuncs adapts optional functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Connect    func(s Session) any
	Receive    func(s Session, msg any) any
	Sent       func(s Session, msg any)
	Idle       func(s Session)
	Exception  func(s Session, err error)
	Disconnect func(s Session)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnConnect(s Session) any {
	if h.Connect == nil {
		return nil
	}
	return h.Connect(s)
}

func (h HandlerFuncs) OnReceive(s Session, msg any) any {
	if h.Receive == nil {
		return nil
	}
	return h.Receive(s, msg)
}

func (h HandlerFuncs) OnSent(s Session, msg any) {
	if h.Sent != nil {
		h.Sent(s, msg)
	}
}

func (h HandlerFuncs) OnIdle(s Session) {
	if h.Idle != nil {
		h.Idle(s)
	}
}

func (h HandlerFuncs) OnException(s Session, err error) {
	if h.Exception != nil {
		h.Exception(s, err)
	}
}

func (h HandlerFuncs) OnDisconnect(s Session) {
	if h.Disconnect != nil {
		h.Disconnect(s)
	}
}
