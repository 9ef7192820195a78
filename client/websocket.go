// File: client/websocket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/protocol"
	"github.com/momentics/hioload-net/splitter"
	"go.uber.org/multierr"
)

// ErrHandshake is returned when the server does not complete the upgrade.
var ErrHandshake = errors.New("websocket handshake failed")

// DialWebSocket connects to a ws:// URL and performs the opening handshake.
// handler sees OnConnect once the 101 response was verified; messages it
// receives afterwards are *protocol.WSFrame values. The HTTP splitter and
// the WebSocket filter are installed ahead of opts.
func DialWebSocket(ctx context.Context, rawURL string, handler api.Handler, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: %w: %v", api.ErrInvalidArgument, err)
	}
	switch u.Scheme {
	case "ws":
	case "wss":
		return nil, fmt.Errorf("client: wss: %w", api.ErrNotSupported)
	default:
		return nil, fmt.Errorf("client: scheme %q: %w", u.Scheme, api.ErrInvalidArgument)
	}
	pre := &Client{cfg: config.Default()}
	for _, o := range opts {
		o(pre)
	}
	if pre.settings.SyncReceive {
		return nil, fmt.Errorf("client: websocket with synchronous receive: %w", api.ErrInvalidArgument)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}
	req, key, err := protocol.NewUpgradeRequest(u.Host, u.RequestURI())
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = api.HandlerFuncs{}
	}
	h := &wsHandshake{Handler: handler, request: req, key: key, ready: make(chan error, 1)}
	all := append([]Option{
		WithSplitter(func() api.Splitter { return splitter.HTTP(0) }),
		WithFilters(protocol.NewFilter()),
	}, opts...)
	c, err := Dial(ctx, addr, h, all...)
	if err != nil {
		return nil, err
	}
	select {
	case err = <-h.ready:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	return c, nil
}

// wsHandshake sends the upgrade request on connect and verifies the first
// HTTP frame received before handing the session to the wrapped handler.
type wsHandshake struct {
	api.Handler
	request []byte
	key     string

	ready chan error
	once  sync.Once
}

func (h *wsHandshake) signal(err error) {
	h.once.Do(func() { h.ready <- err })
}

func (h *wsHandshake) OnConnect(api.Session) any { return h.request }

func (h *wsHandshake) OnReceive(s api.Session, msg any) any {
	if protocol.IsUpgraded(s) {
		return h.Handler.OnReceive(s, msg)
	}
	raw, ok := msg.([]byte)
	if !ok {
		return nil
	}
	if err := protocol.CompleteUpgrade(s, raw, h.key); err != nil {
		h.signal(fmt.Errorf("%w: %w", ErrHandshake, err))
		s.Close()
		return nil
	}
	h.signal(nil)
	return h.Handler.OnConnect(s)
}

func (h *wsHandshake) OnSent(s api.Session, msg any) {
	if protocol.IsUpgraded(s) {
		h.Handler.OnSent(s, msg)
	}
}

func (h *wsHandshake) OnIdle(s api.Session) {
	if protocol.IsUpgraded(s) {
		h.Handler.OnIdle(s)
	}
}

// OnException before the upgrade fails the dial instead of reaching the
// wrapped handler.
func (h *wsHandshake) OnException(s api.Session, err error) {
	if protocol.IsUpgraded(s) {
		h.Handler.OnException(s, err)
		return
	}
	h.signal(fmt.Errorf("%w: %w", ErrHandshake, err))
}

func (h *wsHandshake) OnDisconnect(s api.Session) {
	h.signal(fmt.Errorf("%w: connection closed", ErrHandshake))
	if protocol.IsUpgraded(s) {
		h.Handler.OnDisconnect(s)
	}
}
