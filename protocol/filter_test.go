// File: protocol/filter_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPassesThroughBeforeUpgrade(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	raw := []byte("GET / HTTP/1.1\r\n\r\n")
	got, err := f.Decode(s, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestFilterDecodesDataFrames(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	wire, err := EncodeFrameToBytes(&WSFrame{IsFinal: true, Opcode: OpcodeText, Masked: true, Payload: []byte("hi")})
	require.NoError(t, err)

	got, err := f.Decode(s, wire)
	require.NoError(t, err)
	frame := got.(*WSFrame)
	assert.Equal(t, "hi", frame.Text())
	assert.True(t, frame.Masked)
}

func TestFilterAnswersPing(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	ping, _ := NewPingFrame([]byte("p"))
	ping.Masked = true
	wire, _ := EncodeFrameToBytes(ping)

	got, err := f.Decode(s, wire)
	require.NoError(t, err)
	assert.Nil(t, got, "control frames are consumed by the filter")
	require.Len(t, s.Written(), 1)
	pong := s.Written()[0].(*WSFrame)
	assert.Equal(t, OpcodePong, pong.Opcode)
	assert.Equal(t, []byte("p"), pong.Payload)
}

func TestFilterEchoesCloseAndCloses(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	cl, _ := NewCloseFrame(CloseNormalClosure, "")
	wire, _ := EncodeFrameToBytes(cl)

	got, err := f.Decode(s, wire)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, s.IsOpen())
	require.Len(t, s.Written(), 1)
	assert.Equal(t, CloseNormalClosure, s.Written()[0].(*WSFrame).ErrorCode)
}

func TestFilterMasksForClients(t *testing.T) {
	f := NewFilter()
	out, err := f.Encode(fake.NewClientSession(), NewTextFrame("x"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), out.([]byte)[1]&0x80, "client frames must be masked")

	out, err = f.Encode(fake.NewSession(), NewTextFrame("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01, 'x'}, out)

	passthrough, err := f.Encode(fake.NewSession(), []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), passthrough)
}

func TestFilterWithoutControlHandling(t *testing.T) {
	f := NewFilter(WithControlHandling(false))
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	ping, _ := NewPingFrame(nil)
	wire, _ := EncodeFrameToBytes(ping)
	got, err := f.Decode(s, wire)
	require.NoError(t, err)
	assert.Equal(t, OpcodePing, got.(*WSFrame).Opcode)
	assert.Empty(t, s.Written())
}

func fragment(t *testing.T, fin bool, op Opcode, payload string) []byte {
	t.Helper()
	wire, err := EncodeFrameToBytes(&WSFrame{IsFinal: fin, Opcode: op, Masked: true, Payload: []byte(payload)})
	require.NoError(t, err)
	return wire
}

func TestFilterReassemblesFragments(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)

	got, err := f.Decode(s, fragment(t, false, OpcodeText, "he"))
	require.NoError(t, err)
	assert.Nil(t, got)

	ping, _ := NewPingFrame(nil)
	ping.Masked = true
	wire, _ := EncodeFrameToBytes(ping)
	got, err = f.Decode(s, wire)
	require.NoError(t, err)
	assert.Nil(t, got, "control frames may interleave")

	got, err = f.Decode(s, fragment(t, false, OpcodeContinuation, "ll"))
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = f.Decode(s, fragment(t, true, OpcodeContinuation, "o"))
	require.NoError(t, err)
	frame := got.(*WSFrame)
	assert.Equal(t, OpcodeText, frame.Opcode)
	assert.Equal(t, "hello", frame.Text())
	assert.True(t, frame.IsFinal)
}

func TestFilterRejectsBadFragmentation(t *testing.T) {
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	_, err := NewFilter().Decode(s, fragment(t, true, OpcodeContinuation, "x"))
	assert.ErrorIs(t, err, api.ErrInvalidFrame)

	s = fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	f := NewFilter()
	_, err = f.Decode(s, fragment(t, false, OpcodeText, "a"))
	require.NoError(t, err)
	_, err = f.Decode(s, fragment(t, true, OpcodeBinary, "b"))
	assert.ErrorIs(t, err, api.ErrInvalidFrame)

	s = fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	f = NewFilter(WithMaxMessageSize(3))
	_, err = f.Decode(s, fragment(t, false, OpcodeBinary, "ab"))
	require.NoError(t, err)
	_, err = f.Decode(s, fragment(t, true, OpcodeContinuation, "cd"))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestFilterServerNeverMasksEchoedFrames(t *testing.T) {
	f := NewFilter()
	s := fake.NewSession()
	s.SetAttribute(api.AttrWebSocket, true)
	wire, err := EncodeFrameToBytes(&WSFrame{IsFinal: true, Opcode: OpcodeText, Masked: true, Payload: []byte("hi")})
	require.NoError(t, err)

	got, err := f.Decode(s, wire)
	require.NoError(t, err)
	in := got.(*WSFrame)
	require.True(t, in.Masked)

	out, err := f.Encode(s, in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x02, 'h', 'i'}, out)
	assert.True(t, in.Masked, "the caller's frame is not modified")
}
