// File: fake/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory connection used in place of a socket.

package fake

import (
	"bytes"
	"net"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// Conn collects written bytes and supports error injection.
type Conn struct {
	mu         sync.Mutex
	out        bytes.Buffer
	closed     bool
	closeCalls int
	writeErr   error
	closeErr   error
}

// NewConn creates an open fake connection.
func NewConn() *Conn { return &Conn{} }

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, api.ErrTransportClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.out.Write(p)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	c.closed = true
	return c.closeErr
}

func (c *Conn) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000} }
func (c *Conn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9001} }

// SetWriteError makes subsequent writes fail with err.
func (c *Conn) SetWriteError(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// SetCloseError makes Close return err.
func (c *Conn) SetCloseError(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

// Written returns a copy of everything written so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.out.Bytes()...)
}

// CloseCalls returns how many times Close ran.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}
