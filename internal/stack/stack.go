// File: internal/stack/stack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stack assembles the executors, scheduler, metrics, endpoint and backend
// behind a server or client facade, and tears them down in order.

package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/internal/session"
	"github.com/momentics/hioload-net/reactor"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settings collects facade options. Zero values select defaults. Executors
// created here and the scheduler are owned and closed by the stack.
type Settings struct {
	Config      *config.Config
	Role        api.Role
	Splitter    api.SplitterFactory
	Filters     []api.Filter
	Cipher      api.CipherFactory
	SyncReceive bool
	Executor    api.Executor
	IOExecutor  api.Executor
	Clock       clock.Clock
	Pool        api.BytePool
	Registerer  prometheus.Registerer
	Log         *zap.Logger
}

// Stack is a running endpoint with its backend.
type Stack struct {
	Config   *config.Config
	Endpoint *session.Endpoint
	Backend  reactor.Backend
	Metrics  *control.Metrics
	Debug    *control.DebugRegistry

	log     *zap.Logger
	drains  []*concurrency.Executor // owned, drained before closing
	closers []func()
}

// Build validates st and constructs the stack for h.
func Build(h api.Handler, st Settings) (*Stack, error) {
	cfg := st.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := reactor.ParseKind(cfg.Backend)
	if err != nil {
		return nil, err
	}
	log := st.Log
	if log == nil {
		log = zap.NewNop()
	}
	sk := &Stack{Config: cfg, Debug: control.NewDebugRegistry(), log: log}

	exec := st.Executor
	if exec == nil {
		own := concurrency.NewExecutor(cfg.Workers, cfg.QueueSize, log.Named("concurrency"))
		sk.closers = append(sk.closers, own.Close)
		sk.drains = append(sk.drains, own)
		sk.Debug.Register("executor", func() any { return own.Stats() })
		exec = own
	}
	ioExec := st.IOExecutor
	if ioExec == nil && kind == reactor.Completion {
		own := concurrency.NewExecutor(cfg.IOThreads, cfg.QueueSize, log.Named("concurrency"))
		sk.closers = append(sk.closers, own.Close)
		sk.drains = append(sk.drains, own)
		sk.Debug.Register("io_executor", func() any { return own.Stats() })
		ioExec = own
	}
	clk := st.Clock
	if clk == nil {
		clk = clock.New()
	}
	sched := concurrency.NewScheduler(clk)
	sk.closers = append(sk.closers, sched.Close)
	sk.Debug.Register("scheduler_pending", func() any { return sched.Pending() })

	metrics, err := control.NewMetrics(st.Registerer, cfg.Backend)
	if err != nil {
		sk.release()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	sk.Metrics = metrics

	ep, err := session.NewEndpoint(session.EndpointConfig{
		Config:      cfg,
		Role:        st.Role,
		Handler:     h,
		Splitter:    st.Splitter,
		Filters:     st.Filters,
		Cipher:      st.Cipher,
		SyncReceive: st.SyncReceive,
		Executor:    exec,
		IOExecutor:  ioExec,
		Scheduler:   sched,
		Pool:        st.Pool,
		Metrics:     metrics,
		Log:         log,
	})
	if err != nil {
		sk.release()
		return nil, err
	}
	sk.Endpoint = ep
	sk.Debug.Register("sessions", func() any { return ep.Sessions().Len() })
	sk.Debug.Register("backend", func() any { return string(kind) })

	b, err := reactor.New(kind, ep)
	if err != nil {
		sk.release()
		return nil, err
	}
	sk.Backend = b
	sk.Debug.Register("session_summary", func() any {
		return control.SummarizeSessions(ep.Sessions().Snapshot())
	})
	sk.Debug.Register("backend_stats", func() any { return b.Stats() })
	return sk, nil
}

// Shutdown stops the backend, closes every open session and then releases
// owned executors and the scheduler, so queued OnDisconnect callbacks still
// run. It gives up waiting after timeout.
func (sk *Stack) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- sk.teardown() }()
	if timeout <= 0 {
		return <-done
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		return fmt.Errorf("shutdown timeout after %v: %w", timeout, api.ErrOperationTimeout)
	}
}

func (sk *Stack) teardown() error {
	err := sk.Backend.Close()
	err = multierr.Append(err, sk.CloseSessions(context.Background()))
	for i := len(sk.drains) - 1; i >= 0; i-- {
		err = multierr.Append(err, sk.drains[i].Drain(context.Background()))
	}
	sk.release()
	return err
}

// CloseSessions closes all open sessions concurrently.
func (sk *Stack) CloseSessions(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sk.Config.IOThreads)
	for _, s := range sk.Endpoint.Sessions().Snapshot() {
		s := s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Close()
			return nil
		})
	}
	return g.Wait()
}

func (sk *Stack) release() {
	for i := len(sk.closers) - 1; i >= 0; i-- {
		sk.closers[i]()
	}
	sk.closers = nil
}
