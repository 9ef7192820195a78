// File: internal/session/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint carries what every session of one server or client shares.

package session

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/filter"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/internal/dispatch"
	"github.com/momentics/hioload-net/internal/logger"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/splitter"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Conn is the backend side of a session: a byte sink that can be closed.
// Write must block until p is fully written or fail.
type Conn interface {
	Write(p []byte) (int, error)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// EndpointConfig wires an Endpoint.
type EndpointConfig struct {
	Config      *config.Config
	Role        api.Role
	Handler     api.Handler
	Splitter    api.SplitterFactory
	Filters     []api.Filter
	Cipher      api.CipherFactory
	SyncReceive bool

	Executor   api.Executor // application callbacks
	IOExecutor api.Executor // completion handlers
	Scheduler  *concurrency.Scheduler
	Pool       api.BytePool
	Metrics    *control.Metrics
	Log        *zap.Logger
}

// Endpoint is the shared context of the sessions of one server or client.
type Endpoint struct {
	cfg         *config.Config
	role        api.Role
	handler     api.Handler
	newSplitter api.SplitterFactory
	filters     filter.Chain
	newCipher   api.CipherFactory
	syncReceive bool

	ioExec     api.Executor
	sched      *concurrency.Scheduler
	pool       api.BytePool
	metrics    *control.Metrics
	log        *zap.Logger
	sessions   *Store
	limit      *semaphore.Weighted
	dispatcher *dispatch.Dispatcher[*Session]
}

// NewEndpoint validates c and fills defaults.
func NewEndpoint(c EndpointConfig) (*Endpoint, error) {
	if c.Executor == nil {
		return nil, fmt.Errorf("endpoint: nil executor: %w", api.ErrInvalidArgument)
	}
	if c.Scheduler == nil {
		return nil, fmt.Errorf("endpoint: nil scheduler: %w", api.ErrInvalidArgument)
	}
	cfg := c.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Endpoint{
		cfg:         cfg,
		role:        c.Role,
		handler:     c.Handler,
		newSplitter: c.Splitter,
		filters:     filter.Chain(c.Filters),
		newCipher:   c.Cipher,
		syncReceive: c.SyncReceive,
		ioExec:      c.IOExecutor,
		sched:       c.Scheduler,
		pool:        c.Pool,
		metrics:     c.Metrics,
		log:         logger.Or(c.Log, "session"),
		sessions:    NewStore(0),
	}
	if e.handler == nil {
		e.handler = api.HandlerFuncs{}
	}
	if e.newSplitter == nil {
		e.newSplitter = splitter.PassThrough
	}
	if e.ioExec == nil {
		e.ioExec = c.Executor
	}
	if e.pool == nil {
		e.pool = pool.NewBytePool()
	}
	if e.metrics == nil {
		m, err := control.NewMetrics(nil, cfg.Backend)
		if err != nil {
			return nil, err
		}
		e.metrics = m
	}
	if cfg.MaxSessions > 0 {
		e.limit = semaphore.NewWeighted(int64(cfg.MaxSessions))
	}
	e.dispatcher = dispatch.New[*Session](c.Executor, e.process, e.log.Named("dispatch"))
	return e, nil
}

func (e *Endpoint) Config() *config.Config    { return e.cfg }
func (e *Endpoint) Role() api.Role            { return e.role }
func (e *Endpoint) Log() *zap.Logger          { return e.log }
func (e *Endpoint) Pool() api.BytePool        { return e.pool }
func (e *Endpoint) IOExecutor() api.Executor  { return e.ioExec }
func (e *Endpoint) Metrics() *control.Metrics { return e.metrics }
func (e *Endpoint) Sessions() *Store          { return e.sessions }
func (e *Endpoint) Scheduler() api.Scheduler  { return e.sched }

// Admit reserves a session slot. It returns false when MaxSessions sessions
// are open; the caller must then drop the connection.
func (e *Endpoint) Admit() bool {
	if e.limit == nil || e.limit.TryAcquire(1) {
		return true
	}
	e.metrics.Rejected.Inc()
	return false
}

func (e *Endpoint) release() {
	if e.limit != nil {
		e.limit.Release(1)
	}
}

// Open builds a session over c, registers it and announces OnConnect. The
// caller must hold a slot from Admit. On error c is closed and the slot is
// released.
func (e *Endpoint) Open(c Conn) (*Session, error) {
	s, err := newSession(e, c)
	if err != nil {
		e.release()
		_ = c.Close()
		return nil, err
	}
	e.sessions.Add(s)
	e.metrics.SessionsOpened.Inc()
	e.metrics.SessionsActive.Inc()
	e.log.Debug("session opened",
		zap.String("id", s.ID()),
		zap.Stringer("remote", c.RemoteAddr()),
		zap.Stringer("role", e.role))
	s.dispatch(dispatch.Connect, nil, nil)
	s.idle.start()
	return s, nil
}

// detach undoes Open once a session closed.
func (e *Endpoint) detach(s *Session) {
	e.sessions.Remove(s.ID())
	e.release()
	e.metrics.SessionsClosed.Inc()
	e.metrics.SessionsActive.Dec()
}
