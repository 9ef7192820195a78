//go:build linux

// File: reactor/selector_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-based readiness selector backend.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-net/affinity"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 128

// Selector states.
const (
	selectorRegistered int32 = iota
	selectorPolling
	selectorClosed
)

// readyHandler receives readiness events on the selector thread.
type readyHandler interface {
	ready(events uint32)
}

// selector owns one epoll instance and the OS thread blocked on it.
type selector struct {
	name     string
	epfd     int
	wakefd   int
	interval time.Duration
	cpu      int // -1 leaves the thread unpinned
	log      *zap.Logger

	mu       sync.RWMutex
	handlers map[int32]readyHandler
	released bool // descriptors closed, guarded by mu
	state    atomic.Int32
	done     chan struct{}
}

func newSelector(name string, interval time.Duration, cpu int, log *zap.Logger) (*selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &selector{
		name:     name,
		epfd:     epfd,
		wakefd:   wakefd,
		interval: interval,
		cpu:      cpu,
		log:      log.With(zap.String("selector", name)),
		handlers: make(map[int32]readyHandler),
		done:     make(chan struct{}),
	}, nil
}

// start launches the polling thread.
func (sl *selector) start() {
	if sl.state.CompareAndSwap(selectorRegistered, selectorPolling) {
		go sl.run()
	}
}

func (sl *selector) run() {
	if sl.cpu >= 0 {
		// A pinned thread is never handed back to the scheduler.
		if err := affinity.Pin(sl.cpu); err != nil {
			sl.log.Warn("pin selector thread", zap.Int("cpu", sl.cpu), zap.Error(err))
		}
	} else {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer sl.release()

	events := make([]unix.EpollEvent, maxEpollEvents)
	timeout := pollMillis(sl.interval)
	for sl.state.Load() == selectorPolling {
		n, err := unix.EpollWait(sl.epfd, events, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			sl.log.Error("epoll wait", zap.Error(err))
			sl.state.Store(selectorClosed)
			return
		}
		for i := 0; i < n; i++ {
			fd := events[i].Fd
			if fd == int32(sl.wakefd) {
				sl.drainWakeup()
				continue
			}
			sl.mu.RLock()
			h := sl.handlers[fd]
			sl.mu.RUnlock()
			if h != nil {
				sl.dispatch(h, events[i].Events)
			}
		}
	}
}

// dispatch keeps the selector alive when a handler panics.
func (sl *selector) dispatch(h readyHandler, events uint32) {
	defer func() {
		if r := recover(); r != nil {
			sl.log.Error("ready handler panic", zap.Any("panic", r))
		}
	}()
	h.ready(events)
}

func (sl *selector) drainWakeup() {
	var b [8]byte
	_, _ = unix.Read(sl.wakefd, b[:])
}

// release closes the descriptors once the polling thread exits.
func (sl *selector) release() {
	sl.mu.Lock()
	sl.handlers = make(map[int32]readyHandler)
	sl.released = true
	err := multierr.Combine(unix.Close(sl.wakefd), unix.Close(sl.epfd))
	sl.mu.Unlock()
	if err != nil {
		sl.log.Debug("selector release", zap.Error(err))
	}
	close(sl.done)
}

// add registers fd for read readiness.
func (sl *selector) add(fd int, h readyHandler) error {
	if sl.state.Load() == selectorClosed {
		return api.ErrTransportClosed
	}
	sl.mu.Lock()
	sl.handlers[int32(fd)] = h
	sl.mu.Unlock()
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLRDHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(sl.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		sl.mu.Lock()
		delete(sl.handlers, int32(fd))
		sl.mu.Unlock()
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// registered returns the number of descriptors served by the selector.
func (sl *selector) registered() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.handlers)
}

// remove unregisters fd. It is a no-op once the selector closed.
func (sl *selector) remove(fd int) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	delete(sl.handlers, int32(fd))
	if sl.released || sl.state.Load() == selectorClosed {
		return nil
	}
	if err := unix.EpollCtl(sl.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Close stops the polling thread without waiting for it, so it is safe to
// call from a ready handler. A selector that never started is released here.
func (sl *selector) Close() {
	switch sl.state.Swap(selectorClosed) {
	case selectorClosed:
		return
	case selectorRegistered:
		sl.release()
		return
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.released {
		return
	}
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(sl.wakefd, one[:])
}

// wait blocks until the polling thread released its descriptors.
func (sl *selector) wait() { <-sl.done }

// selectorConn is one non-blocking TCP socket served by a selector.
type selectorConn struct {
	fd            int
	sel           *selector
	owned         bool // selector dedicated to this connection
	released      func()
	local, remote net.Addr
	sendTimeout   time.Duration
	step          time.Duration
	readSize      int
	pool          api.BytePool
	sess          *session.Session

	mu         sync.RWMutex // guards fd against close during syscalls
	closed     bool
	registered bool
}

var _ session.Conn = (*selectorConn)(nil)

func newSelectorConn(ep *session.Endpoint, fd int, sel *selector) *selectorConn {
	cfg := ep.Config()
	c := &selectorConn{
		fd:          fd,
		sel:         sel,
		sendTimeout: cfg.SendTimeout,
		step:        cfg.SelectInterval,
		readSize:    cfg.ReadBufferSize,
		pool:        ep.Pool(),
	}
	c.local, c.remote = peerAddrs(fd)
	return c
}

func (c *selectorConn) LocalAddr() net.Addr  { return c.local }
func (c *selectorConn) RemoteAddr() net.Addr { return c.remote }

// register hands the socket to its selector.
func (c *selectorConn) register() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return api.ErrTransportClosed
	}
	if err := c.sel.add(c.fd, c); err != nil {
		return err
	}
	c.registered = true
	return nil
}

// ready drains the socket into the session until EAGAIN.
func (c *selectorConn) ready(uint32) {
	buf := c.pool.Acquire(c.readSize)
	defer c.pool.Release(buf)
	for {
		n, err := c.read(buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN), errors.Is(err, api.ErrTransportClosed):
			return
		case err != nil:
			c.sess.ReadFailed(err)
			return
		case n == 0:
			c.sess.RemoteClosed()
			return
		}
		if !c.sess.Ingest(buf[:n]) {
			return
		}
	}
}

func (c *selectorConn) read(buf []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, api.ErrTransportClosed
	}
	return unix.Read(c.fd, buf)
}

// Write sends all of p, polling for POLLOUT while the socket buffer is full.
func (c *selectorConn) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, api.ErrTransportClosed
	}
	var deadline time.Time
	written := 0
	for written < len(p) {
		n, err := unix.SendmsgN(c.fd, p[written:], nil, nil, unix.MSG_NOSIGNAL)
		if n > 0 {
			written += n
		}
		switch {
		case err == nil, errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if deadline.IsZero() && c.sendTimeout > 0 {
				deadline = time.Now().Add(c.sendTimeout)
			}
			if err := c.waitWritable(deadline); err != nil {
				return written, err
			}
		default:
			return written, err
		}
	}
	return written, nil
}

func (c *selectorConn) waitWritable(deadline time.Time) error {
	ctx := context.Background()
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	err := waitFd(ctx, c.fd, unix.POLLOUT, c.step)
	if errors.Is(err, context.DeadlineExceeded) {
		return api.ErrSendTimeout
	}
	return err
}

// Close unregisters and closes the socket. An owned selector is stopped too.
func (c *selectorConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var err error
	if c.registered {
		err = c.sel.remove(c.fd)
	}
	err = multierr.Append(err, unix.Close(c.fd))
	c.mu.Unlock()
	if c.owned {
		c.sel.Close()
	}
	if c.released != nil {
		c.released()
	}
	return err
}

// acceptor drains the accept backlog of one listening socket.
type acceptor struct {
	b    *selectorBackend
	fd   int
	addr net.Addr
}

func (a *acceptor) ready(uint32) {
	for {
		fd, remote, err := acceptTCP(a.fd)
		switch {
		case errors.Is(err, unix.EAGAIN):
			return
		case err != nil:
			if a.b.closed.Load() {
				return
			}
			a.b.log.Warn("accept", zap.Stringer("listener", a.addr), zap.Error(err))
			return
		}
		a.b.adopt(fd, remote)
	}
}

// selectorBackend spreads accepted sockets over a group of I/O selectors.
type selectorBackend struct {
	ep  *session.Endpoint
	log *zap.Logger

	mu        sync.Mutex
	accept    *selector
	group     []*selector
	listeners []*acceptor
	next      atomic.Uint32
	clients   atomic.Int32 // live dialed or adopted sockets, one selector each
	closed    atomic.Bool
}

func newSelectorBackend(ep *session.Endpoint) (Backend, error) {
	return &selectorBackend{ep: ep, log: ep.Log().Named("selector")}, nil
}

func (b *selectorBackend) Kind() Kind { return Selector }

// startGroup creates the accept selector and the I/O group once.
func (b *selectorBackend) startGroup() error {
	if b.accept != nil {
		return nil
	}
	cfg := b.ep.Config()
	acc, err := newSelector("accept", cfg.SelectInterval, -1, b.log)
	if err != nil {
		return err
	}
	group := make([]*selector, 0, cfg.IOThreads)
	for i := 0; i < cfg.IOThreads; i++ {
		cpu := -1
		if cfg.PinIOThreads {
			cpu = affinity.CPUFor(i)
		}
		sl, err := newSelector(fmt.Sprintf("io-%d", i), cfg.SelectInterval, cpu, b.log)
		if err != nil {
			acc.Close()
			for _, g := range group {
				g.Close()
			}
			return err
		}
		group = append(group, sl)
	}
	acc.start()
	for _, g := range group {
		g.start()
	}
	b.accept, b.group = acc, group
	return nil
}

func (b *selectorBackend) Listen(addr string) (net.Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return nil, api.ErrTransportClosed
	}
	if err := b.startGroup(); err != nil {
		return nil, err
	}
	fd, bound, err := listenTCP(addr)
	if err != nil {
		return nil, err
	}
	a := &acceptor{b: b, fd: fd, addr: bound}
	if err := b.accept.add(fd, a); err != nil {
		unix.Close(fd)
		return nil, err
	}
	b.listeners = append(b.listeners, a)
	b.log.Info("listening", zap.Stringer("addr", bound), zap.Int("io_threads", len(b.group)))
	return bound, nil
}

// adopt turns an accepted socket into a session on the next I/O selector.
func (b *selectorBackend) adopt(fd int, remote net.Addr) {
	if !admit(b.ep, func() error { return unix.Close(fd) }) {
		b.log.Debug("session limit reached, connection dropped", zap.Stringer("remote", remote))
		return
	}
	sl := b.group[int(b.next.Add(1)-1)%len(b.group)]
	c := newSelectorConn(b.ep, fd, sl)
	b.open(c)
}

// open builds the session over c and starts reading.
func (b *selectorBackend) open(c *selectorConn) (*session.Session, error) {
	s, err := b.ep.Open(c)
	if err != nil {
		b.log.Warn("open session", zap.Error(err))
		return nil, err
	}
	c.sess = s
	if err := c.register(); err != nil {
		s.ReadFailed(err)
		return nil, err
	}
	return s, nil
}

func (b *selectorBackend) Dial(ctx context.Context, addr string) (*session.Session, error) {
	if b.closed.Load() {
		return nil, api.ErrTransportClosed
	}
	cfg := b.ep.Config()
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	fd, err := dialTCP(ctx, addr, cfg.SelectInterval)
	if err != nil {
		return nil, err
	}
	return b.openOwned(fd)
}

// Adopt moves the descriptor of nc onto a selector of its own.
func (b *selectorBackend) Adopt(nc net.Conn) (*session.Session, error) {
	if b.closed.Load() {
		_ = nc.Close()
		return nil, api.ErrTransportClosed
	}
	fd, err := detachFd(nc)
	if err != nil {
		return nil, err
	}
	return b.openOwned(fd)
}

// openOwned serves a dialed socket on a dedicated client selector.
func (b *selectorBackend) openOwned(fd int) (*session.Session, error) {
	cfg := b.ep.Config()
	if !admit(b.ep, func() error { return unix.Close(fd) }) {
		return nil, api.ErrSessionLimit
	}
	sl, err := newSelector("client", cfg.SelectInterval, -1, b.log)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	sl.start()
	b.clients.Add(1)
	c := newSelectorConn(b.ep, fd, sl)
	c.owned = true
	c.released = func() { b.clients.Add(-1) }
	s, err := b.open(c)
	if err != nil {
		sl.Close()
		return nil, err
	}
	return s, nil
}

// Stats reports the selector threads and the sessions registered on each
// I/O selector.
func (b *selectorBackend) Stats() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]int{
		"listeners": len(b.listeners),
		"clients":   int(b.clients.Load()),
		"selectors": len(b.group) + int(b.clients.Load()),
	}
	if b.accept != nil {
		out["selectors"]++
	}
	for i, sl := range b.group {
		out[fmt.Sprintf("io-%d", i)] = sl.registered()
	}
	return out
}

// Close stops accepting and waits for the backend threads.
func (b *selectorBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, a := range b.listeners {
		if b.accept != nil {
			err = multierr.Append(err, b.accept.remove(a.fd))
		}
		err = multierr.Append(err, unix.Close(a.fd))
	}
	b.listeners = nil
	var sels []*selector
	if b.accept != nil {
		sels = append(sels, b.accept)
	}
	sels = append(sels, b.group...)
	for _, sl := range sels {
		sl.Close()
	}
	for _, sl := range sels {
		sl.wait()
	}
	return err
}
