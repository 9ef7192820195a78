// File: client/socks5.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SOCKS5 CONNECT through a proxy before the session is opened.

package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-net/internal/session"
	"golang.org/x/net/proxy"
)

// Socks5Auth carries RFC 1929 username/password credentials.
type Socks5Auth = proxy.Auth

// socksProxy is the proxy a client tunnels through.
type socksProxy struct {
	addr string
	auth *proxy.Auth
}

// tcpRecorder dials the proxy and keeps the raw TCP connection, which the
// backends adopt once the SOCKS exchange is over.
type tcpRecorder struct {
	d net.Dialer

	mu   sync.Mutex
	conn net.Conn
}

func (r *tcpRecorder) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	c, err := r.d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()
	return c, nil
}

func (r *tcpRecorder) Dial(network, addr string) (net.Conn, error) {
	return r.DialContext(context.Background(), network, addr)
}

func (r *tcpRecorder) raw() net.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// dialSocks5 asks the proxy to CONNECT to addr and serves the tunnel on the
// backend. Cipher and filters apply only to bytes after the proxy reply.
func (c *Client) dialSocks5(ctx context.Context, addr string) (*session.Session, error) {
	if t := c.cfg.ConnectTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	rec := &tcpRecorder{}
	d, err := proxy.SOCKS5("tcp", c.socks.addr, c.socks.auth, rec)
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer %T cannot take a context", d)
	}
	tunnel, err := cd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", c.socks.addr, err)
	}
	nc := rec.raw()
	if nc == nil {
		_ = tunnel.Close()
		return nil, fmt.Errorf("socks5 %s: no proxy connection", c.socks.addr)
	}
	return c.sk.Backend.Adopt(nc)
}
