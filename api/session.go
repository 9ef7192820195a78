// File: api/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session contract shared by both reactor backends.

package api

import (
	"net"
	"time"
)

// Session is one live connection endpoint.
type Session interface {
	// ID returns a process-unique session identifier.
	ID() string
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Role() Role

	// Send writes raw bytes, blocking until every byte is flushed, the send
	// timeout elapses or the connection fails. Cipher wrapping still applies.
	Send(p []byte) (int, error)

	// Write encodes msg through the filter chain, sends it and reports it
	// through OnSent.
	Write(msg any) error

	// ReceiveBlocking returns the next decoded message of a session created
	// in synchronous receive mode.
	ReceiveBlocking(timeout time.Duration) (any, error)

	// Close tears the session down. It returns true only for the call that
	// performed the teardown.
	Close() bool
	IsOpen() bool
	State() SessionState

	Attribute(key any) (any, bool)
	SetAttribute(key, value any)
	RemoveAttribute(key any)

	// Splitter returns the framing strategy bound at construction.
	Splitter() Splitter
}
