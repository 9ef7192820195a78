// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server accepts connections on one backend and turns them into sessions
// served by an api.Handler.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/internal/logger"
	"github.com/momentics/hioload-net/internal/stack"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrServerClosed   = errors.New("server closed")
)

// Server is the listening endpoint facade.
type Server struct {
	cfg      *config.Config
	settings stack.Settings
	gatherer prometheus.Gatherer
	log      *zap.Logger
	sk       *stack.Stack

	mu       sync.Mutex
	addr     net.Addr
	started  bool
	closed   bool
	done     chan struct{}
	closeErr error
}

// New builds a server for handler. Nothing is bound until Start or Serve.
func New(handler api.Handler, opts ...ServerOption) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("server: nil handler: %w", api.ErrInvalidArgument)
	}
	s := &Server{cfg: config.Default(), done: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.Or(s.settings.Log, "server")
	if s.settings.Registerer == nil {
		reg := prometheus.NewRegistry()
		s.settings.Registerer, s.gatherer = reg, reg
	} else if g, ok := s.settings.Registerer.(prometheus.Gatherer); ok {
		s.gatherer = g
	}
	s.settings.Config = s.cfg
	s.settings.Role = api.RoleServer
	s.settings.Log = s.log
	sk, err := stack.Build(handler, s.settings)
	if err != nil {
		return nil, err
	}
	s.sk = sk
	sk.Debug.Register("listen_addr", func() any {
		if a := s.Addr(); a != nil {
			return a.String()
		}
		return ""
	})
	return s, nil
}

// Start binds the configured address and begins accepting.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrServerClosed
	case s.started:
		return ErrAlreadyRunning
	}
	addr, err := s.sk.Backend.Listen(s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.addr, s.started = addr, true
	s.log.Info("server started",
		zap.Stringer("addr", addr),
		zap.String("backend", string(s.sk.Backend.Kind())))
	return nil
}

// Serve starts the server when needed and blocks until ctx is done or Close
// is called. Leaving because of ctx closes the server.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		return err
	}
	select {
	case <-ctx.Done():
		return multierr.Append(ctx.Err(), s.Close())
	case <-s.done:
		return nil
	}
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Sessions returns a snapshot of open sessions.
func (s *Server) Sessions() []api.Session {
	snap := s.sk.Endpoint.Sessions().Snapshot()
	out := make([]api.Session, len(snap))
	for i, ss := range snap {
		out[i] = ss
	}
	return out
}

// Session looks up an open session by ID.
func (s *Server) Session(id string) (api.Session, bool) {
	ss, ok := s.sk.Endpoint.Sessions().Get(id)
	if !ok {
		return nil, false
	}
	return ss, true
}

// Broadcast writes msg to every open session. Sessions that closed in the
// meantime are skipped.
func (s *Server) Broadcast(msg any) error {
	var err error
	for _, ss := range s.sk.Endpoint.Sessions().Snapshot() {
		if werr := ss.Write(msg); werr != nil && !errors.Is(werr, api.ErrSessionClosed) {
			err = multierr.Append(err, fmt.Errorf("session %s: %w", ss.ID(), werr))
		}
	}
	return err
}

// Debug exposes the debug state registry.
func (s *Server) Debug() api.Debug { return s.sk.Debug }

// DumpState returns the current debug state.
func (s *Server) DumpState() map[string]any { return s.sk.Debug.DumpState() }

// Gatherer returns the registry holding the server metrics, or nil when
// they were registered on a registerer that cannot gather.
func (s *Server) Gatherer() prometheus.Gatherer { return s.gatherer }

// Close stops accepting, closes every session and releases the executors
// the server owns. It is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.closeErr
	}
	s.closed = true
	s.mu.Unlock()

	err := s.sk.Shutdown(s.cfg.ShutdownTimeout)
	if err != nil {
		s.log.Warn("server shutdown", zap.Error(err))
	} else {
		s.log.Info("server stopped")
	}
	s.closeErr = err
	close(s.done)
	return err
}
