// File: reactor/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable completion-based backend built on net.Conn.

package reactor

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// acceptRetryDelay spaces accept attempts after a transient failure.
const acceptRetryDelay = 50 * time.Millisecond

// Connection states.
const (
	connIdle int32 = iota
	connReadPending
	connClosed
)

// completionConn is one connection whose reads are explicit asynchronous
// operations re-armed by their completion handler.
type completionConn struct {
	nc          net.Conn
	b           *completionBackend
	sess        *session.Session
	state       atomic.Int32
	buf         []byte
	sendTimeout time.Duration
}

var _ session.Conn = (*completionConn)(nil)

func (c *completionConn) LocalAddr() net.Addr  { return c.nc.LocalAddr() }
func (c *completionConn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// armRead starts the next read unless one is pending or the connection is
// closed.
func (c *completionConn) armRead() {
	if !c.state.CompareAndSwap(connIdle, connReadPending) {
		return
	}
	c.buf = c.b.pool.Acquire(c.b.readSize)
	c.b.group.Read(c.nc, c.buf, CompletionHandler[int]{
		Completed: c.readCompleted,
		Failed:    c.readFailed,
	})
}

func (c *completionConn) readCompleted(n int) {
	buf := c.buf
	c.buf = nil
	ok := c.sess.Ingest(buf[:n])
	c.b.pool.Release(buf)
	if !c.state.CompareAndSwap(connReadPending, connIdle) {
		return
	}
	if ok {
		c.armRead()
	}
}

func (c *completionConn) readFailed(err error) {
	c.b.pool.Release(c.buf)
	c.buf = nil
	if !c.state.CompareAndSwap(connReadPending, connIdle) {
		return
	}
	switch {
	case errors.Is(err, io.EOF):
		c.sess.RemoteClosed()
	case errors.Is(err, net.ErrClosed):
		c.sess.Close()
	default:
		c.sess.ReadFailed(err)
	}
}

// Write loops over partial writes under a write deadline.
func (c *completionConn) Write(p []byte) (int, error) {
	if c.state.Load() == connClosed {
		return 0, api.ErrTransportClosed
	}
	if c.sendTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.sendTimeout))
	}
	written := 0
	for written < len(p) {
		n, err := c.nc.Write(p[written:])
		written += n
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return written, api.ErrSendTimeout
			}
			return written, err
		}
	}
	return written, nil
}

func (c *completionConn) Close() error {
	if c.state.Swap(connClosed) == connClosed {
		return nil
	}
	return c.nc.Close()
}

// completionBackend serves listeners and dialed connections through a Group.
type completionBackend struct {
	ep       *session.Endpoint
	group    *Group
	pool     api.BytePool
	readSize int
	log      *zap.Logger

	mu        sync.Mutex
	listeners []net.Listener
	closed    atomic.Bool
}

func newCompletionBackend(ep *session.Endpoint) *completionBackend {
	log := ep.Log().Named("completion")
	return &completionBackend{
		ep:       ep,
		group:    NewGroup(ep.IOExecutor(), log),
		pool:     ep.Pool(),
		readSize: ep.Config().ReadBufferSize,
		log:      log,
	}
}

func (b *completionBackend) Kind() Kind { return Completion }

func (b *completionBackend) Listen(addr string) (net.Addr, error) {
	if b.closed.Load() {
		return nil, api.ErrTransportClosed
	}
	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
	b.log.Info("listening", zap.Stringer("addr", l.Addr()))
	b.acceptNext(l)
	return l.Addr(), nil
}

func (b *completionBackend) acceptNext(l net.Listener) {
	b.group.Accept(l, CompletionHandler[net.Conn]{
		Completed: func(nc net.Conn) {
			b.acceptNext(l)
			b.adopt(nc)
		},
		Failed: func(err error) { b.acceptFailed(l, err) },
	})
}

func (b *completionBackend) acceptFailed(l net.Listener, err error) {
	if b.closed.Load() || errors.Is(err, net.ErrClosed) {
		return
	}
	b.log.Warn("accept", zap.Stringer("listener", l.Addr()), zap.Error(err))
	if _, serr := b.ep.Scheduler().Schedule(int64(acceptRetryDelay), func() { b.acceptNext(l) }); serr != nil {
		b.log.Error("accept not re-armed", zap.Error(serr))
	}
}

func (b *completionBackend) adopt(nc net.Conn) {
	if !admit(b.ep, nc.Close) {
		b.log.Debug("session limit reached, connection dropped", zap.Stringer("remote", nc.RemoteAddr()))
		return
	}
	if _, err := b.open(nc); err != nil {
		b.log.Warn("open session", zap.Error(err))
	}
}

func (b *completionBackend) open(nc net.Conn) (*session.Session, error) {
	c := &completionConn{nc: nc, b: b, sendTimeout: b.ep.Config().SendTimeout}
	s, err := b.ep.Open(c)
	if err != nil {
		return nil, err
	}
	c.sess = s
	c.armRead()
	return s, nil
}

// Dial posts an asynchronous connect and waits for its completion.
func (b *completionBackend) Dial(ctx context.Context, addr string) (*session.Session, error) {
	if b.closed.Load() {
		return nil, api.ErrTransportClosed
	}
	if t := b.ep.Config().ConnectTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	type result struct {
		s   *session.Session
		err error
	}
	done := make(chan result, 1)
	b.group.Connect(ctx, addr, CompletionHandler[net.Conn]{
		Completed: func(nc net.Conn) {
			if !admit(b.ep, nc.Close) {
				done <- result{err: api.ErrSessionLimit}
				return
			}
			s, err := b.open(nc)
			done <- result{s: s, err: err}
		},
		Failed: func(err error) { done <- result{err: err} },
	})
	r := <-done
	return r.s, r.err
}

func (b *completionBackend) Adopt(nc net.Conn) (*session.Session, error) {
	if b.closed.Load() {
		_ = nc.Close()
		return nil, api.ErrTransportClosed
	}
	if !admit(b.ep, nc.Close) {
		return nil, api.ErrSessionLimit
	}
	return b.open(nc)
}

func (b *completionBackend) Stats() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]int{
		"listeners": len(b.listeners),
		"sessions":  b.ep.Sessions().Len(),
	}
}

// Close closes the listeners; pending accepts fail with net.ErrClosed.
// Reads of open sessions end when their sessions close.
func (b *completionBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	ls := b.listeners
	b.listeners = nil
	b.mu.Unlock()
	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	return err
}
