// File: client/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client dials one connection and serves it as a session with the same
// handler, splitter and filter machinery as the server.

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/internal/logger"
	"github.com/momentics/hioload-net/internal/session"
	"github.com/momentics/hioload-net/internal/stack"
	"go.uber.org/zap"
)

// Client is a dialed endpoint with exactly one session.
type Client struct {
	cfg      *config.Config
	settings stack.Settings
	log      *zap.Logger
	sk       *stack.Stack
	sess     *session.Session

	heartbeat    time.Duration
	heartbeatMsg func() any
	socks        *socksProxy

	mu       sync.Mutex
	beat     api.Cancelable
	closed   bool
	closeErr error
}

// Dial connects to addr and opens a session served by handler. With
// WithSocks5 the connection goes through the proxy and addr is the target
// the proxy connects to.
func Dial(ctx context.Context, addr string, handler api.Handler, opts ...Option) (*Client, error) {
	c := &Client{cfg: config.Default()}
	for _, o := range opts {
		o(c)
	}
	if handler == nil {
		handler = api.HandlerFuncs{}
	}
	c.log = logger.Or(c.settings.Log, "client")
	c.settings.Config = c.cfg
	c.settings.Role = api.RoleClient
	c.settings.Log = c.log
	sk, err := stack.Build(handler, c.settings)
	if err != nil {
		return nil, err
	}
	c.sk = sk
	var s *session.Session
	if c.socks != nil {
		s, err = c.dialSocks5(ctx, addr)
	} else {
		s, err = sk.Backend.Dial(ctx, addr)
	}
	if err != nil {
		_ = sk.Shutdown(c.cfg.ShutdownTimeout)
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	c.sess = s
	c.log.Debug("client connected",
		zap.String("id", s.ID()),
		zap.Stringer("remote", s.RemoteAddr()),
		zap.String("backend", string(sk.Backend.Kind())))
	if c.heartbeat > 0 && c.heartbeatMsg != nil {
		c.mu.Lock()
		c.armHeartbeat()
		c.mu.Unlock()
	}
	return c, nil
}

// Session returns the client session.
func (c *Client) Session() api.Session { return c.sess }

// Send writes raw bytes, bypassing the filter chain.
func (c *Client) Send(p []byte) (int, error) { return c.sess.Send(p) }

// Write encodes msg through the filter chain and sends it.
func (c *Client) Write(msg any) error { return c.sess.Write(msg) }

// ReceiveBlocking waits for the next message of a WithSyncReceive client.
func (c *Client) ReceiveBlocking(timeout time.Duration) (any, error) {
	return c.sess.ReceiveBlocking(timeout)
}

// Done is closed once the session started closing.
func (c *Client) Done() <-chan struct{} { return c.sess.Done() }

// DumpState returns the current debug state.
func (c *Client) DumpState() map[string]any { return c.sk.Debug.DumpState() }

// armHeartbeat must be called with mu held.
func (c *Client) armHeartbeat() {
	if c.closed {
		return
	}
	task, err := c.sk.Endpoint.Scheduler().Schedule(int64(c.heartbeat), c.beatOnce)
	if err != nil {
		c.log.Debug("heartbeat not armed", zap.Error(err))
		return
	}
	c.beat = task
}

func (c *Client) beatOnce() {
	if !c.sess.IsOpen() {
		return
	}
	if err := c.sess.Write(c.heartbeatMsg()); err != nil {
		c.log.Debug("heartbeat", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.armHeartbeat()
	c.mu.Unlock()
}

// Close closes the session and releases the client resources. It is
// idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.closeErr
	}
	c.closed = true
	if c.beat != nil {
		_ = c.beat.Cancel()
	}
	c.mu.Unlock()

	c.sess.Close()
	err := c.sk.Shutdown(c.cfg.ShutdownTimeout)
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	return err
}
