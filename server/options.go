// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for the Server facade.

package server

import (
	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/reactor"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithConfig replaces the default configuration with a copy of cfg. Options
// that change single fields apply on top of it when listed after.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) {
		if cfg != nil {
			s.cfg = cfg.Clone()
		}
	}
}

// WithListenAddr sets the TCP bind address.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) { s.cfg.ListenAddr = addr }
}

// WithBackend selects the reactor backend.
func WithBackend(kind reactor.Kind) ServerOption {
	return func(s *Server) { s.cfg.Backend = string(kind) }
}

// WithMaxSessions bounds concurrently open sessions. n <= 0 means unbounded.
func WithMaxSessions(n int) ServerOption {
	return func(s *Server) { s.cfg.MaxSessions = n }
}

// WithSplitter sets the per-session splitter factory.
func WithSplitter(f api.SplitterFactory) ServerOption {
	return func(s *Server) { s.settings.Splitter = f }
}

// WithFilters appends filters to the chain, outermost first.
func WithFilters(f ...api.Filter) ServerOption {
	return func(s *Server) { s.settings.Filters = append(s.settings.Filters, f...) }
}

// WithCipher enables the transport cipher stage.
func WithCipher(f api.CipherFactory) ServerOption {
	return func(s *Server) { s.settings.Cipher = f }
}

// WithExecutor shares an application executor. The server does not close it.
func WithExecutor(e api.Executor) ServerOption {
	return func(s *Server) { s.settings.Executor = e }
}

// WithIOExecutor shares the executor running completion handlers.
func WithIOExecutor(e api.Executor) ServerOption {
	return func(s *Server) { s.settings.IOExecutor = e }
}

// WithClock sets the clock behind idle detection and timeouts.
func WithClock(c clock.Clock) ServerOption {
	return func(s *Server) { s.settings.Clock = c }
}

// WithPool shares a byte pool for read buffers.
func WithPool(p api.BytePool) ServerOption {
	return func(s *Server) { s.settings.Pool = p }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.settings.Log = l }
}

// WithRegisterer registers the server metrics on reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) { s.settings.Registerer = reg }
}
