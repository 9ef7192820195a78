// File: internal/session/session_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/crypt"
	"github.com/momentics/hioload-net/fake"
	"github.com/momentics/hioload-net/filter"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/splitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitFor = 2 * time.Second

type harness struct {
	ep    *Endpoint
	h     *fake.Handler
	clock *clock.Mock
	sched *concurrency.Scheduler
}

func newHarness(t *testing.T, mutate func(c *EndpointConfig)) *harness {
	t.Helper()
	mock := clock.NewMock()
	exec := concurrency.NewExecutor(4, 64, zaptest.NewLogger(t))
	sched := concurrency.NewScheduler(mock)
	t.Cleanup(func() {
		sched.Close()
		exec.Close()
	})
	h := fake.NewHandler()
	cfg := config.Default()
	cfg.ReadBufferSize = 64
	cfg.MaxBufferSize = 1024
	ec := EndpointConfig{
		Config:    cfg,
		Handler:   h,
		Splitter:  func() api.Splitter { return splitter.Line(0) },
		Executor:  exec,
		Scheduler: sched,
		Log:       zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&ec)
	}
	ep, err := NewEndpoint(ec)
	require.NoError(t, err)
	return &harness{ep: ep, h: h, clock: mock, sched: sched}
}

func (hs *harness) open(t *testing.T) (*Session, *fake.Conn) {
	t.Helper()
	c := fake.NewConn()
	require.True(t, hs.ep.Admit())
	s, err := hs.ep.Open(c)
	require.NoError(t, err)
	return s, c
}

func (hs *harness) waitKinds(t *testing.T, s api.Session, want ...string) {
	t.Helper()
	ok := hs.h.WaitFor(waitFor, func(h *fake.Handler) bool { return len(h.Kinds(s)) >= len(want) })
	require.True(t, ok, "got %v, want %v", hs.h.Kinds(s), want)
	assert.Equal(t, want, hs.h.Kinds(s))
}

func TestPipelinedFrames(t *testing.T) {
	hs := newHarness(t, nil)
	s, _ := hs.open(t)

	require.True(t, s.Ingest([]byte("a\nb\nc")))
	hs.waitKinds(t, s, fake.Connect, fake.Receive, fake.Receive)
	assert.Equal(t, []any{[]byte("a\n"), []byte("b\n")}, hs.h.Received())
	assert.Equal(t, 1, s.Buffered(), "partial frame stays buffered")

	require.True(t, s.Ingest([]byte("\n")))
	hs.waitKinds(t, s, fake.Connect, fake.Receive, fake.Receive, fake.Receive)
	assert.Equal(t, []byte("c\n"), hs.h.Received()[2])
}

func TestInvalidFrameClosesWithoutReceive(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) {
		c.Splitter = func() api.Splitter { return splitter.Varint(splitter.DefaultSentinel, 0) }
	})
	s, conn := hs.open(t)

	assert.False(t, s.Ingest([]byte{0x01, 0x02, 0x03}))
	hs.waitKinds(t, s, fake.Connect, fake.Exception, fake.Disconnect)
	ev := hs.h.Events()[1]
	assert.True(t, errors.Is(ev.Err, api.ErrInvalidFrame))
	assert.False(t, s.IsOpen())
	assert.Equal(t, 1, conn.CloseCalls())
	assert.Equal(t, 0, hs.ep.Sessions().Len())
	assert.False(t, s.Ingest([]byte{0x00}), "closed sessions reject input")
}

func TestSplitterLengthOutOfRangeIsInvalid(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) {
		c.Splitter = func() api.Splitter {
			return api.SplitterFunc(func(_ api.Session, buf api.BufferView) api.SplitResult {
				return api.FrameOf(buf.Len() + 1)
			})
		}
	})
	s, _ := hs.open(t)
	assert.False(t, s.Ingest([]byte("x")))
	hs.waitKinds(t, s, fake.Connect, fake.Exception, fake.Disconnect)
}

func TestCloseIsIdempotentUnderConcurrency(t *testing.T) {
	hs := newHarness(t, nil)
	s, conn := hs.open(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.Close() {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	hs.waitKinds(t, s, fake.Connect, fake.Disconnect)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, hs.h.Count(fake.Disconnect))
	assert.Equal(t, 1, conn.CloseCalls())
	assert.Equal(t, api.SessionClosed, s.State())
}

func TestReadErrorReportsExceptionBeforeDisconnect(t *testing.T) {
	hs := newHarness(t, nil)
	s, _ := hs.open(t)
	boom := errors.New("connection reset")
	s.ReadFailed(boom)
	hs.waitKinds(t, s, fake.Connect, fake.Exception, fake.Disconnect)
	assert.True(t, errors.Is(hs.h.Events()[1].Err, boom))
}

func TestRemoteCloseIsGraceful(t *testing.T) {
	hs := newHarness(t, nil)
	s, _ := hs.open(t)
	s.RemoteClosed()
	hs.waitKinds(t, s, fake.Connect, fake.Disconnect)
}

func TestRepliesAreWrittenAndReported(t *testing.T) {
	hs := newHarness(t, nil)
	hs.h.ConnectReply = func(api.Session) any { return "hello\n" }
	hs.h.ReceiveReply = func(_ api.Session, msg any) any {
		return append([]byte("echo:"), msg.([]byte)...)
	}
	s, conn := hs.open(t)
	require.True(t, s.Ingest([]byte("ping\n")))

	ok := hs.h.WaitFor(waitFor, func(h *fake.Handler) bool { return h.Count(fake.Sent) == 2 })
	require.True(t, ok, "got %v", hs.h.Kinds(s))
	assert.Equal(t, 1, hs.h.Count(fake.Receive))
	assert.Equal(t, fake.Connect, hs.h.Kinds(s)[0])
	assert.Equal(t, "hello\necho:ping\n", string(conn.Written()))
}

func TestSendFailureClosesSession(t *testing.T) {
	hs := newHarness(t, nil)
	s, conn := hs.open(t)
	hs.waitKinds(t, s, fake.Connect)

	conn.SetWriteError(errors.New("broken pipe"))
	_, err := s.Send([]byte("x"))
	require.Error(t, err)
	hs.waitKinds(t, s, fake.Connect, fake.Exception, fake.Disconnect)

	_, err = s.Send([]byte("x"))
	assert.True(t, errors.Is(err, api.ErrSessionClosed))
	assert.True(t, errors.Is(s.Write("x"), api.ErrSessionClosed))
}

func TestBufferOverflowIsFatal(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) {
		c.Config.ReadBufferSize = 8
		c.Config.MaxBufferSize = 16
	})
	s, _ := hs.open(t)
	assert.False(t, s.Ingest(bytes.Repeat([]byte("x"), 17)))
	hs.waitKinds(t, s, fake.Connect, fake.Exception, fake.Disconnect)
	assert.True(t, errors.Is(hs.h.Events()[1].Err, api.ErrBufferOverflow))
}

func TestIdleFiresOncePerWindow(t *testing.T) {
	const T = time.Second
	hs := newHarness(t, func(c *EndpointConfig) { c.Config.ReadTimeout = T })
	s, _ := hs.open(t)
	idles := func() int { return hs.h.Count(fake.Idle) }

	hs.clock.Add(T)
	require.Eventually(t, func() bool { return idles() == 1 }, waitFor, time.Millisecond)

	hs.clock.Add(T / 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, idles(), "no second idle within the same window")

	hs.clock.Add(T / 2)
	require.Eventually(t, func() bool { return idles() == 2 }, waitFor, time.Millisecond)
	assert.True(t, s.IsOpen(), "idleness alone never closes")
}

func TestActivityPostponesIdle(t *testing.T) {
	const T = time.Second
	hs := newHarness(t, func(c *EndpointConfig) { c.Config.ReadTimeout = T })
	s, _ := hs.open(t)
	idles := func() int { return hs.h.Count(fake.Idle) }
	currentTask := func() api.Cancelable {
		s.idle.mu.Lock()
		defer s.idle.mu.Unlock()
		return s.idle.task
	}

	hs.clock.Add(T / 2)
	require.True(t, s.Ingest([]byte("data\n")))

	first := currentTask()
	hs.clock.Add(T / 2)
	require.Eventually(t, func() bool { return currentTask() != first }, waitFor, time.Millisecond, "timer not re-armed")
	assert.Equal(t, 0, idles(), "activity inside the window suppresses idle")

	hs.clock.Add(T / 2)
	require.Eventually(t, func() bool { return idles() == 1 }, waitFor, time.Millisecond)
}

func TestIdleStopsAfterClose(t *testing.T) {
	const T = time.Second
	hs := newHarness(t, func(c *EndpointConfig) { c.Config.ReadTimeout = T })
	s, _ := hs.open(t)
	s.Close()
	hs.clock.Add(3 * T)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, hs.h.Count(fake.Idle))
	assert.Equal(t, 0, hs.sched.Pending())
}

func TestReceiveBlocking(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) {
		c.SyncReceive = true
		c.Filters = []api.Filter{filter.Text()}
	})
	s, _ := hs.open(t)

	require.True(t, s.Ingest([]byte("one\ntwo\n")))
	msg, err := s.ReceiveBlocking(0)
	require.NoError(t, err)
	assert.Equal(t, "one\n", msg)
	msg, err = s.ReceiveBlocking(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "two\n", msg)
	assert.Equal(t, 0, hs.h.Count(fake.Receive), "sync sessions bypass OnReceive")

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
				hs.clock.Add(time.Second)
			}
		}
	}()
	_, err = s.ReceiveBlocking(time.Second)
	close(done)
	assert.True(t, errors.Is(err, api.ErrTimeout))

	s.Close()
	_, err = s.ReceiveBlocking(time.Second)
	assert.True(t, errors.Is(err, api.ErrSessionClosed))
}

func TestReceiveBlockingRequiresSyncMode(t *testing.T) {
	hs := newHarness(t, nil)
	s, _ := hs.open(t)
	_, err := s.ReceiveBlocking(time.Millisecond)
	assert.True(t, errors.Is(err, api.ErrNotSynchronous))
}

func TestFilterChainOnSession(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) {
		c.Splitter = func() api.Splitter { return splitter.Varint(0, 0) }
		c.Filters = []api.Filter{filter.LengthPrefix(0), filter.Text()}
	})
	hs.h.ReceiveReply = func(_ api.Session, msg any) any { return "re:" + msg.(string) }
	s, conn := hs.open(t)

	frame, err := filter.LengthPrefix(0).Encode(s, []byte("hi"))
	require.NoError(t, err)
	require.True(t, s.Ingest(frame.([]byte)))
	hs.waitKinds(t, s, fake.Connect, fake.Receive, fake.Sent)
	assert.Equal(t, []any{"hi"}, hs.h.Received())

	want, _ := filter.LengthPrefix(0).Encode(s, []byte("re:hi"))
	assert.Equal(t, want, conn.Written())
}

func TestCipherStage(t *testing.T) {
	key, nonce := bytes.Repeat([]byte{1}, crypt.KeySize), bytes.Repeat([]byte{2}, crypt.NonceSize)
	factory, err := crypt.NewChaCha20Factory(key, nonce)
	require.NoError(t, err)
	hs := newHarness(t, func(c *EndpointConfig) { c.Cipher = factory })
	hs.h.ReceiveReply = func(_ api.Session, msg any) any { return msg }
	s, conn := hs.open(t)

	peer, err := factory(api.RoleClient)
	require.NoError(t, err)
	wire, _ := peer.Wrap([]byte("secret\n"))
	require.True(t, s.Ingest(wire[:3]))
	require.True(t, s.Ingest(wire[3:]))
	hs.waitKinds(t, s, fake.Connect, fake.Receive, fake.Sent)
	assert.Equal(t, []byte("secret\n"), hs.h.Received()[0])

	assert.NotEqual(t, []byte("secret\n"), conn.Written())
	plain, _ := peer.Unwrap(conn.Written())
	assert.Equal(t, []byte("secret\n"), plain)
}

func TestSessionLimit(t *testing.T) {
	hs := newHarness(t, func(c *EndpointConfig) { c.Config.MaxSessions = 1 })
	s, _ := hs.open(t)
	assert.False(t, hs.ep.Admit())
	s.Close()
	assert.True(t, hs.ep.Admit())
}

func TestPerSessionCallbacksNeverOverlap(t *testing.T) {
	hs := newHarness(t, nil)
	hs.h.Delay = 100 * time.Microsecond
	var sessions []*Session
	for i := 0; i < 4; i++ {
		s, _ := hs.open(t)
		sessions = append(sessions, s)
	}
	for i := 0; i < 50; i++ {
		for _, s := range sessions {
			require.True(t, s.Ingest([]byte{byte('a' + i%26), '\n'}))
		}
	}
	ok := hs.h.WaitFor(5*time.Second, func(h *fake.Handler) bool { return h.Count(fake.Receive) == 200 })
	require.True(t, ok)
	assert.Equal(t, 0, hs.h.Overlaps())
	for _, s := range sessions {
		var got []byte
		for _, ev := range hs.h.Events() {
			if ev.Kind == fake.Receive && ev.Session.ID() == s.ID() {
				got = append(got, ev.Msg.([]byte)[0])
			}
		}
		require.Len(t, got, 50)
		for i, b := range got {
			assert.Equal(t, byte('a'+i%26), b)
		}
	}
}

func TestAttributes(t *testing.T) {
	hs := newHarness(t, nil)
	s, _ := hs.open(t)
	_, ok := s.Attribute("k")
	assert.False(t, ok)
	s.SetAttribute("k", 1)
	v, ok := s.Attribute("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	s.RemoveAttribute("k")
	_, ok = s.Attribute("k")
	assert.False(t, ok)
	assert.NotEmpty(t, s.ID())
	assert.NotNil(t, s.Splitter())
	s2, _ := hs.open(t)
	assert.NotEqual(t, s.ID(), s2.ID())
	got, ok := hs.ep.Sessions().Get(s2.ID())
	assert.True(t, ok)
	assert.Same(t, s2, got)
}
