// File: splitter/splitter_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package splitter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/core/buffer"
	"github.com/momentics/hioload-net/fake"
	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(t *testing.T, chunks ...[]byte) *buffer.Accumulator {
	t.Helper()
	a := buffer.NewAccumulator(16, 0)
	for _, c := range chunks {
		require.NoError(t, a.Append(c))
	}
	return a
}

// take splits the head frame the way the session loader does: split,
// consume, then notify an observing splitter.
func take(t *testing.T, s api.Splitter, sess api.Session, buf *buffer.Accumulator) []byte {
	t.Helper()
	res := s.TrySplit(sess, buf)
	require.Equal(t, api.SplitFrame, res.Status, "%v", res)
	frame := buf.Read(res.Length)
	if o, ok := s.(api.FrameObserver); ok {
		o.Framed(sess, frame)
	}
	return frame
}

func varintFrame(sentinel byte, payload []byte) []byte {
	out := []byte{sentinel}
	out = append(out, varint.ToUvarint(uint64(len(payload)))...)
	out = append(out, sentinel)
	return append(out, payload...)
}

func TestFixedLength(t *testing.T) {
	s := FixedLength(4)
	assert.Equal(t, api.Insufficient(), s.TrySplit(nil, view(t, []byte("abc"))))
	assert.Equal(t, api.FrameOf(4), s.TrySplit(nil, view(t, []byte("abcdef"))))
}

func TestLine(t *testing.T) {
	s := Line(0)
	assert.Equal(t, api.Insufficient(), s.TrySplit(nil, view(t, []byte("no newline"))))
	assert.Equal(t, api.FrameOf(3), s.TrySplit(nil, view(t, []byte("ab\ncd\n"))))

	limited := Line(4)
	res := limited.TrySplit(nil, view(t, []byte("too long line")))
	assert.Equal(t, api.SplitInvalid, res.Status)
}

func TestPassThrough(t *testing.T) {
	s := PassThrough()
	assert.Equal(t, api.Insufficient(), s.TrySplit(nil, view(t)))
	assert.Equal(t, api.FrameOf(5), s.TrySplit(nil, view(t, []byte("12345"))))
}

func TestSplitIsIdempotent(t *testing.T) {
	upgrade := "GET /chat HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"
	cases := map[string]struct {
		input string
		want  int
	}{
		"plain request":   {"GET / HTTP/1.1\r\nHost: a\r\n\r\nrest", len("GET / HTTP/1.1\r\nHost: a\r\n\r\n")},
		"upgrade request": {upgrade + "\x81\x02hi", len(upgrade)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			buf := view(t, []byte(tc.input))
			s := HTTP(0)
			sess := fake.NewSession()
			first := s.TrySplit(sess, buf)
			second := s.TrySplit(sess, buf)
			third := s.TrySplit(sess, buf)
			assert.Equal(t, api.FrameOf(tc.want), first)
			assert.Equal(t, first, second)
			assert.Equal(t, first, third)
			assert.Equal(t, len(tc.input), buf.Len(), "splitters must not consume")
		})
	}
}

func TestVarintLengths(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 16384} {
		payload := bytes.Repeat([]byte{0xAB}, n)
		frame := varintFrame(DefaultSentinel, payload)
		s := Varint(DefaultSentinel, 0)

		res := s.TrySplit(nil, view(t, frame))
		require.Equal(t, api.SplitFrame, res.Status, "len %d", n)
		assert.Equal(t, len(frame), res.Length)
		assert.Equal(t, VarintHeaderLen(n)+n, res.Length)

		// every strict prefix is insufficient
		for _, cut := range []int{1, 2, len(frame) - 1} {
			if cut >= len(frame) || cut < 1 {
				continue
			}
			assert.Equal(t, api.Insufficient(), s.TrySplit(nil, view(t, frame[:cut])), "len %d cut %d", n, cut)
		}
	}
}

func TestVarintInvalid(t *testing.T) {
	s := Varint(DefaultSentinel, 0)

	res := s.TrySplit(nil, view(t, []byte{0x01, 0x01, 0x00, 0xFF}))
	assert.Equal(t, api.SplitInvalid, res.Status, "bad leading sentinel")

	res = s.TrySplit(nil, view(t, []byte{0x00, 0x01, 0x07, 0xFF}))
	assert.Equal(t, api.SplitInvalid, res.Status, "bad trailing sentinel")

	huge := append([]byte{0x00}, varint.ToUvarint(uint64(math.MaxInt32)+1)...)
	res = s.TrySplit(nil, view(t, huge))
	assert.Equal(t, api.SplitInvalid, res.Status, "length above MaxInt32")
	assert.True(t, errors.Is(res.Err, api.ErrInvalidFrame))

	res = s.TrySplit(nil, view(t, []byte{0x00, 0x80, 0x00, 0x00}))
	assert.Equal(t, api.SplitInvalid, res.Status, "non-minimal varint")

	bounded := Varint(DefaultSentinel, 10)
	res = bounded.TrySplit(nil, view(t, varintFrame(DefaultSentinel, make([]byte, 11))))
	assert.Equal(t, api.SplitInvalid, res.Status, "length above configured max")
}

func TestHTTPPartialReads(t *testing.T) {
	req := []byte("GET /index.html HTTP/1.1\r\nHost: x\r\nAccept: */*\r\n\r\n")
	want := api.FrameOf(len(req))

	for cut := 1; cut < len(req); cut++ {
		s := HTTP(0)
		sess := fake.NewSession()
		buf := view(t, req[:cut])
		assert.Equal(t, api.Insufficient(), s.TrySplit(sess, buf), "cut %d", cut)
		require.NoError(t, buf.Append(req[cut:]))
		assert.Equal(t, want, s.TrySplit(sess, buf), "cut %d", cut)
	}

	for _, step := range []int{1, 3, 7, 16} {
		s := HTTP(0)
		sess := fake.NewSession()
		buf := view(t)
		var last api.SplitResult
		for off := 0; off < len(req); off += step {
			end := min(off+step, len(req))
			require.NoError(t, buf.Append(req[off:end]))
			last = s.TrySplit(sess, buf)
			if end < len(req) {
				assert.Equal(t, api.Insufficient(), last, "step %d at %d", step, end)
			}
		}
		assert.Equal(t, want, last, "step %d", step)
	}
}

func TestHTTPStartLine(t *testing.T) {
	s := HTTP(0)
	sess := fake.NewSession()
	assert.Equal(t, api.SplitFrame, s.TrySplit(sess, view(t, []byte("HTTP/1.1 200 OK\r\n\r\n"))).Status)
	assert.Equal(t, api.SplitInvalid, s.TrySplit(sess, view(t, []byte("hello world\r\n\r\n"))).Status)
	assert.Equal(t, api.Insufficient(), s.TrySplit(sess, view(t, []byte("GET / HT"))))
}

func TestHTTPHeaderLimit(t *testing.T) {
	s := HTTP(32)
	sess := fake.NewSession()
	req := []byte("GET / HTTP/1.1\r\nX-Long: " + string(bytes.Repeat([]byte("a"), 64)))
	assert.Equal(t, api.SplitInvalid, s.TrySplit(sess, view(t, req)).Status)
}

func TestHTTPSwitchesToWebSocket(t *testing.T) {
	s := HTTP(0)
	sess := fake.NewSession()
	sess.SetAttribute(api.AttrWebSocket, true)
	frame := []byte{0x81, 0x02, 'h', 'i'}
	assert.Equal(t, api.FrameOf(4), s.TrySplit(sess, view(t, frame)))
}

func TestHTTPSwitchesAfterUpgradeHeaders(t *testing.T) {
	for _, head := range []string{
		"GET /chat HTTP/1.1\r\nHost: x\r\nUpgrade: WebSocket\r\nConnection: Upgrade\r\n\r\n",
		"HTTP/1.1 101 Switching Protocols\r\nupgrade: websocket\r\n\r\n",
	} {
		s := HTTP(0)
		sess := fake.NewSession()
		buf := view(t, []byte(head), []byte{0x81, 0x02, 'h', 'i'})
		assert.Equal(t, []byte(head), take(t, s, sess, buf))
		assert.Equal(t, api.FrameOf(4), s.TrySplit(sess, buf), "pipelined frame after %q", head)
	}

	s := HTTP(0)
	sess := fake.NewSession()
	plain := "HTTP/1.1 200 OK\r\nUpgrade: websocket\r\n\r\n"
	buf := view(t, []byte(plain), []byte("HTTP/1.1 200 OK\r\n\r\n"))
	take(t, s, sess, buf)
	assert.Equal(t, api.SplitFrame, s.TrySplit(sess, buf).Status, "no switch without 101")
}

func TestWebSocketLengths(t *testing.T) {
	s := WebSocket()
	cases := []struct {
		name   string
		header []byte
		n      int
	}{
		{"short", []byte{0x82, 5}, 5},
		{"16bit", append([]byte{0x82, 126}, 0x01, 0x00), 256},
		{"64bit", append([]byte{0x82, 127}, binary.BigEndian.AppendUint64(nil, 70000)...), 70000},
		{"masked", []byte{0x82, 0x80 | 3, 1, 2, 3, 4}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := append(append([]byte{}, tc.header...), make([]byte, tc.n)...)
			assert.Equal(t, api.Insufficient(), s.TrySplit(nil, view(t, frame[:len(frame)-1])))
			assert.Equal(t, api.FrameOf(len(frame)), s.TrySplit(nil, view(t, frame, []byte{0x81})))
		})
	}
}

func TestWebSocketInvalid(t *testing.T) {
	s := WebSocket()
	cases := map[string][]byte{
		"reserved bits":      {0xC1, 0x00},
		"unknown opcode":     {0x83, 0x00},
		"fragmented control": {0x09, 0x00},
		"large control":      {0x89, 126, 0x00, 0x7E},
		"oversized 64bit":    append([]byte{0x82, 127}, binary.BigEndian.AppendUint64(nil, math.MaxInt32+1)...),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, api.SplitInvalid, s.TrySplit(nil, view(t, frame)).Status)
		})
	}
}
