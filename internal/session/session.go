// File: internal/session/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/core/buffer"
	"github.com/momentics/hioload-net/internal/dispatch"
	"go.uber.org/zap"
)

// Session is one connection managed by a reactor backend.
type Session struct {
	id       string
	ep       *Endpoint
	conn     Conn
	splitter api.Splitter
	cipher   api.Cipher
	attrs    *attributes
	state    atomic.Int32
	closed   chan struct{}

	// acc and loader are touched only by the reactor read path, which never
	// runs concurrently for one session.
	acc    *buffer.Accumulator
	loader *Loader

	serial  *dispatch.Serial[*Session]
	idle    *idleWatcher
	writeMu sync.Mutex
	inbox   chan any
}

var _ api.Session = (*Session)(nil)

func newSession(ep *Endpoint, c Conn) (*Session, error) {
	s := &Session{
		id:       uuid.NewString(),
		ep:       ep,
		conn:     c,
		splitter: ep.newSplitter(),
		attrs:    newAttributes(),
		closed:   make(chan struct{}),
		acc:      buffer.NewAccumulator(ep.cfg.ReadBufferSize, ep.cfg.MaxBufferSize),
		serial:   dispatch.NewSerial[*Session](),
	}
	if s.splitter == nil {
		return nil, fmt.Errorf("splitter factory returned nil: %w", api.ErrInvalidArgument)
	}
	if ep.newCipher != nil {
		c, err := ep.newCipher(ep.role)
		if err != nil {
			return nil, fmt.Errorf("cipher: %w", err)
		}
		s.cipher = c
	}
	if ep.syncReceive {
		s.inbox = make(chan any, ep.cfg.SyncQueueSize)
	}
	s.loader = &Loader{s: s}
	s.idle = newIdleWatcher(s, ep.sched, ep.cfg.ReadTimeout)
	return s, nil
}

func (s *Session) ID() string             { return s.id }
func (s *Session) LocalAddr() net.Addr    { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr   { return s.conn.RemoteAddr() }
func (s *Session) Role() api.Role         { return s.ep.role }
func (s *Session) Splitter() api.Splitter { return s.splitter }

func (s *Session) State() api.SessionState { return api.SessionState(s.state.Load()) }

func (s *Session) IsOpen() bool { return s.State() == api.SessionOpen }

// Done is closed once the session started closing.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) Attribute(key any) (any, bool) { return s.attrs.Get(key) }
func (s *Session) SetAttribute(key, value any)   { s.attrs.Set(key, value) }
func (s *Session) RemoveAttribute(key any)       { s.attrs.Delete(key) }

// Send writes p through the cipher stage and blocks until the backend has
// written every byte. A failed send leaves the stream in an unknown state,
// so the session reports the error and closes.
func (s *Session) Send(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, api.ErrSessionClosed
	}
	n, err := s.send(p)
	if err != nil {
		s.fail(fmt.Errorf("send: %w", err))
		return n, err
	}
	return n, nil
}

func (s *Session) send(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	out := p
	if s.cipher != nil {
		var err error
		if out, err = s.cipher.Wrap(p); err != nil {
			return 0, err
		}
	}
	n, err := s.conn.Write(out)
	s.ep.metrics.BytesWritten.Add(float64(n))
	if err != nil {
		if n > len(p) {
			n = len(p)
		}
		return n, err
	}
	return len(p), nil
}

// Write encodes msg through the filter chain, sends it and queues OnSent.
func (s *Session) Write(msg any) error {
	if !s.IsOpen() {
		return api.ErrSessionClosed
	}
	b, err := s.ep.filters.Encode(s, msg)
	if err != nil {
		s.exception(err)
		return err
	}
	if b == nil {
		return nil
	}
	if _, err := s.Send(b); err != nil {
		return err
	}
	s.dispatch(dispatch.Sent, msg, nil)
	return nil
}

// ReceiveBlocking waits for the next decoded message. timeout <= 0 waits
// until a message arrives or the session closes.
func (s *Session) ReceiveBlocking(timeout time.Duration) (any, error) {
	if s.inbox == nil {
		return nil, api.ErrNotSynchronous
	}
	select {
	case msg := <-s.inbox:
		return msg, nil
	default:
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := s.ep.sched.Clock().Timer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case msg := <-s.inbox:
		return msg, nil
	case <-s.closed:
		select {
		case msg := <-s.inbox:
			return msg, nil
		default:
			return nil, api.ErrSessionClosed
		}
	case <-expired:
		return nil, api.ErrTimeout
	}
}

// deliver hands a decoded message to ReceiveBlocking, blocking the worker
// while the inbox is full.
func (s *Session) deliver(msg any) {
	select {
	case s.inbox <- msg:
	case <-s.closed:
	}
}

// Close tears the session down. Only the first call returns true and only
// that call queues OnDisconnect.
func (s *Session) Close() bool {
	if !s.state.CompareAndSwap(int32(api.SessionOpen), int32(api.SessionClosing)) {
		return false
	}
	s.idle.stop()
	close(s.closed)
	err := s.conn.Close()
	s.state.Store(int32(api.SessionClosed))
	s.ep.detach(s)
	if err != nil {
		s.ep.log.Debug("close connection", zap.String("id", s.id), zap.Error(err))
	} else {
		s.ep.log.Debug("session closed", zap.String("id", s.id))
	}
	s.dispatch(dispatch.Disconnect, nil, nil)
	return true
}

// Ingest accepts bytes read from the socket. It returns false once the
// session is no longer open and the reactor must stop reading.
func (s *Session) Ingest(p []byte) bool {
	if !s.IsOpen() {
		return false
	}
	s.ep.metrics.BytesRead.Add(float64(len(p)))
	s.idle.touch()
	if s.cipher != nil {
		var err error
		if p, err = s.cipher.Unwrap(p); err != nil {
			s.fail(fmt.Errorf("unwrap: %w", err))
			return false
		}
	}
	if err := s.acc.Append(p); err != nil {
		s.fail(err)
		return false
	}
	return s.loader.Load()
}

// RemoteClosed handles an orderly shutdown by the peer.
func (s *Session) RemoteClosed() { s.Close() }

// ReadFailed reports a read error and closes the session.
func (s *Session) ReadFailed(err error) { s.fail(fmt.Errorf("read: %w", err)) }

// Buffered returns the number of unframed bytes.
func (s *Session) Buffered() int { return s.acc.Len() }

// fail reports err through OnException and closes the session, so the
// handler sees the exception before OnDisconnect.
func (s *Session) fail(err error) {
	if !s.IsOpen() {
		s.ep.log.Debug("error on closed session", zap.String("id", s.id), zap.Error(err))
		return
	}
	s.exception(err)
	s.Close()
}

func (s *Session) exception(err error) {
	s.ep.metrics.Exceptions.Inc()
	s.ep.log.Debug("session exception", zap.String("id", s.id), zap.Error(err))
	s.dispatch(dispatch.Exception, nil, err)
}

func (s *Session) dispatch(kind dispatch.Kind, payload any, err error) {
	ev := dispatch.Event[*Session]{Kind: kind, Session: s, Payload: payload, Err: err}
	if derr := s.ep.dispatcher.Dispatch(s.serial, ev); derr != nil {
		s.ep.log.Warn("event dropped", zap.String("id", s.id), zap.Stringer("event", kind), zap.Error(derr))
	}
}
