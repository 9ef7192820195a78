// File: reactor/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Discrete asynchronous socket operations with completion handlers.

package reactor

import (
	"context"
	"io"
	"net"

	"github.com/momentics/hioload-net/api"
	"go.uber.org/zap"
)

// CompletionHandler receives the outcome of one asynchronous operation.
// Exactly one of the two functions runs, on the group executor.
type CompletionHandler[T any] struct {
	Completed func(result T)
	Failed    func(err error)
}

// Group runs asynchronous accept, connect and read operations. Each pending
// operation parks one goroutine in the runtime netpoller; its completion is
// posted to the I/O executor.
type Group struct {
	exec api.Executor
	log  *zap.Logger
}

// NewGroup creates a group posting completions to exec.
func NewGroup(exec api.Executor, log *zap.Logger) *Group {
	if log == nil {
		log = zap.NewNop()
	}
	return &Group{exec: exec, log: log}
}

// Accept waits for one connection on l.
func (g *Group) Accept(l net.Listener, h CompletionHandler[net.Conn]) {
	g.start(func() {
		c, err := l.Accept()
		if err != nil {
			g.fail(h.Failed, err)
			return
		}
		g.post(func() { h.Completed(c) }, func() {
			_ = c.Close()
			h.Failed(api.ErrTransportClosed)
		})
	})
}

// Connect dials addr.
func (g *Group) Connect(ctx context.Context, addr string, h CompletionHandler[net.Conn]) {
	g.start(func() {
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			g.fail(h.Failed, err)
			return
		}
		g.post(func() { h.Completed(c) }, func() {
			_ = c.Close()
			h.Failed(api.ErrTransportClosed)
		})
	})
}

// Read performs one read into buf. A read that returns data completes with
// the byte count even when it also reported an error; the error surfaces
// on the next read.
func (g *Group) Read(c net.Conn, buf []byte, h CompletionHandler[int]) {
	g.start(func() {
		n, err := c.Read(buf)
		if n > 0 {
			g.post(func() { h.Completed(n) }, func() { h.Failed(api.ErrTransportClosed) })
			return
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		g.fail(h.Failed, err)
	})
}

func (g *Group) start(op func()) {
	go op()
}

func (g *Group) fail(failed func(error), err error) {
	g.post(func() { failed(err) }, func() { failed(err) })
}

// post runs fn on the executor, or fallback inline when the executor no
// longer accepts work.
func (g *Group) post(fn, fallback func()) {
	if err := g.exec.Submit(fn); err != nil {
		g.log.Debug("completion ran inline", zap.Error(err))
		fallback()
	}
}
