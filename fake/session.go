// File: fake/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory api.Session for splitter and filter tests.

package fake

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-net/api"
)

// Session records what is sent on it and keeps attributes in a map.
type Session struct {
	mu       sync.Mutex
	id       string
	role     api.Role
	attrs    map[any]any
	sent     [][]byte
	written  []any
	closed   bool
	splitter api.Splitter
}

var _ api.Session = (*Session)(nil)

// NewSession creates an open server-side session.
func NewSession() *Session {
	return &Session{id: uuid.NewString(), attrs: make(map[any]any)}
}

// NewClientSession creates an open client-side session.
func NewClientSession() *Session {
	s := NewSession()
	s.role = api.RoleClient
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1} }
func (s *Session) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2} }
func (s *Session) Role() api.Role       { return s.role }

func (s *Session) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, api.ErrSessionClosed
	}
	s.sent = append(s.sent, append([]byte(nil), p...))
	return len(p), nil
}

func (s *Session) Write(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrSessionClosed
	}
	s.written = append(s.written, msg)
	return nil
}

func (s *Session) ReceiveBlocking(time.Duration) (any, error) {
	return nil, api.ErrNotSynchronous
}

func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) State() api.SessionState {
	if s.IsOpen() {
		return api.SessionOpen
	}
	return api.SessionClosed
}

func (s *Session) Attribute(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

func (s *Session) SetAttribute(key, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *Session) RemoveAttribute(key any) {
	s.mu.Lock()
	delete(s.attrs, key)
	s.mu.Unlock()
}

func (s *Session) Splitter() api.Splitter { return s.splitter }

// Sent returns copies of the raw byte slices passed to Send.
func (s *Session) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// Written returns messages passed to Write.
func (s *Session) Written() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.written...)
}
