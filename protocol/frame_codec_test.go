// File: protocol/frame_codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadOf(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func TestCodecRoundTripAcrossLengthBoundaries(t *testing.T) {
	ops := []Opcode{OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong}
	sizes := []int{0, 1, 125, 126, 65535, 65536}
	for _, op := range ops {
		for _, n := range sizes {
			if op.IsControl() && n > MaxControlPayloadLen {
				continue
			}
			for _, masked := range []bool{false, true} {
				t.Run(fmt.Sprintf("%s/%d/masked=%t", op, n, masked), func(t *testing.T) {
					in, err := NewFrame(true, op, masked, payloadOf(n))
					require.NoError(t, err)
					wire, err := EncodeFrameToBytes(in)
					require.NoError(t, err)

					out, consumed, err := DecodeFrameFromBytes(wire)
					require.NoError(t, err)
					assert.Equal(t, len(wire), consumed)
					assert.Equal(t, in, out)
				})
			}
		}
	}
}

func TestCodecLengthEncoding(t *testing.T) {
	cases := []struct {
		n      int
		header int
	}{
		{125, 2}, {126, 4}, {65535, 4}, {65536, 10},
	}
	for _, c := range cases {
		wire, err := EncodeFrameToBytes(NewBinaryFrame(payloadOf(c.n)))
		require.NoError(t, err)
		assert.Equal(t, c.header+c.n, len(wire), "payload %d", c.n)
	}
}

func TestCodecMasksPayload(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodeText, Masked: true, Payload: []byte("abcd")}
	wire, err := EncodeFrameWithKey(f, [4]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x84, 1, 2, 3, 4, 'a' ^ 1, 'b' ^ 2, 'c' ^ 3, 'd' ^ 4}, wire)
	assert.Equal(t, []byte("abcd"), f.Payload, "encoding must not mutate the frame")
}

func TestControlFrameLimits(t *testing.T) {
	_, err := NewPingFrame(payloadOf(126))
	assert.True(t, errors.Is(err, ErrControlFrameTooLarge))
	assert.True(t, errors.Is(err, api.ErrInvalidFrame))

	_, err = EncodeFrameToBytes(&WSFrame{IsFinal: true, Opcode: OpcodeClose, Payload: payloadOf(200)})
	assert.True(t, errors.Is(err, ErrControlFrameTooLarge))

	_, err = NewFrame(false, OpcodePing, false, nil)
	assert.True(t, errors.Is(err, ErrFragmentedControl))

	// 126-byte ping on the wire: 16-bit length form
	wire := append([]byte{0x89, 126, 0x00, 126}, payloadOf(126)...)
	_, _, err = DecodeFrameFromBytes(wire)
	assert.True(t, errors.Is(err, api.ErrInvalidFrame))
}

func TestDecodeIncomplete(t *testing.T) {
	wire, err := EncodeFrameToBytes(NewTextFrame("hello"))
	require.NoError(t, err)
	_, _, err = DecodeFrameFromBytes(wire[:len(wire)-1])
	assert.True(t, errors.Is(err, ErrIncompleteFrame))
}

func TestDecodePipelinedFrames(t *testing.T) {
	a, _ := EncodeFrameToBytes(NewTextFrame("one"))
	b, _ := EncodeFrameToBytes(NewTextFrame("two"))
	raw := append(append([]byte{}, a...), b...)
	f, n, err := DecodeFrameFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, "one", f.Text())
	f, _, err = DecodeFrameFromBytes(raw[n:])
	require.NoError(t, err)
	assert.Equal(t, "two", f.Text())
}

func TestCloseFrame(t *testing.T) {
	f, err := NewCloseFrame(CloseGoingAway, "bye")
	require.NoError(t, err)
	wire, err := EncodeFrameToBytes(f)
	require.NoError(t, err)
	out, _, err := DecodeFrameFromBytes(wire)
	require.NoError(t, err)
	assert.Equal(t, CloseGoingAway, out.ErrorCode)
	assert.Equal(t, "bye", out.CloseReason())
	assert.True(t, bytes.HasPrefix(wire, []byte{0x88, 5}))
}
