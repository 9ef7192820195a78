// File: internal/session/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"github.com/momentics/hioload-net/internal/dispatch"
	"go.uber.org/zap"
)

// process runs on a worker with at most one event per session in flight.
func (e *Endpoint) process(ev dispatch.Event[*Session]) {
	s, h := ev.Session, e.handler
	switch ev.Kind {
	case dispatch.Connect:
		s.reply(h.OnConnect(s))
	case dispatch.Receive:
		msg, err := e.filters.Decode(s, ev.Payload)
		if err != nil {
			s.fail(err)
			return
		}
		if msg == nil {
			return
		}
		if s.inbox != nil {
			s.deliver(msg)
			return
		}
		s.reply(h.OnReceive(s, msg))
	case dispatch.Sent:
		h.OnSent(s, ev.Payload)
	case dispatch.Idle:
		h.OnIdle(s)
	case dispatch.Exception:
		h.OnException(s, ev.Err)
	case dispatch.Disconnect:
		h.OnDisconnect(s)
	}
}

// reply writes a handler result back on the session.
func (s *Session) reply(msg any) {
	if msg == nil || !s.IsOpen() {
		return
	}
	if err := s.Write(msg); err != nil {
		s.ep.log.Debug("reply not sent", zap.String("id", s.id), zap.Error(err))
	}
}
