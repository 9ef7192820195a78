// File: client/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for the client facade.

package client

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/reactor"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option customizes a client.
type Option func(*Client)

// WithConfig replaces the default configuration with a copy of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) {
		if cfg != nil {
			c.cfg = cfg.Clone()
		}
	}
}

// WithBackend selects the reactor backend.
func WithBackend(kind reactor.Kind) Option {
	return func(c *Client) { c.cfg.Backend = string(kind) }
}

// WithSplitter sets the session splitter factory.
func WithSplitter(f api.SplitterFactory) Option {
	return func(c *Client) { c.settings.Splitter = f }
}

// WithFilters appends filters to the chain, outermost first.
func WithFilters(f ...api.Filter) Option {
	return func(c *Client) { c.settings.Filters = append(c.settings.Filters, f...) }
}

// WithCipher enables the transport cipher stage.
func WithCipher(f api.CipherFactory) Option {
	return func(c *Client) { c.settings.Cipher = f }
}

// WithSyncReceive routes decoded messages to ReceiveBlocking instead of
// OnReceive.
func WithSyncReceive() Option {
	return func(c *Client) { c.settings.SyncReceive = true }
}

// WithExecutor shares an application executor. The client does not close it.
func WithExecutor(e api.Executor) Option {
	return func(c *Client) { c.settings.Executor = e }
}

// WithIOExecutor shares the executor running completion handlers.
func WithIOExecutor(e api.Executor) Option {
	return func(c *Client) { c.settings.IOExecutor = e }
}

// WithClock sets the clock behind idle detection, heartbeats and timeouts.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.settings.Clock = clk }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.settings.Log = l }
}

// WithRegisterer registers the client metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.settings.Registerer = reg }
}

// WithHeartbeat writes msg() every interval while the session is open.
func WithHeartbeat(interval time.Duration, msg func() any) Option {
	return func(c *Client) {
		c.heartbeat, c.heartbeatMsg = interval, msg
	}
}

// WithPool shares a byte pool for read buffers.
func WithPool(p api.BytePool) Option {
	return func(c *Client) { c.settings.Pool = p }
}

// WithSocks5 tunnels the connection through the SOCKS5 proxy at proxyAddr
// using CONNECT. auth may be nil when the proxy needs no credentials.
func WithSocks5(proxyAddr string, auth *Socks5Auth) Option {
	return func(c *Client) { c.socks = &socksProxy{addr: proxyAddr, auth: auth} }
}
