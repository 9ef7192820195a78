// File: splitter/websocket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RFC 6455 frame boundary detection.

package splitter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/momentics/hioload-net/api"
)

const (
	wsFinBit            = 0x80
	wsRsvMask           = 0x70
	wsOpcodeMask        = 0x0F
	wsMaskBit           = 0x80
	wsLenMask           = 0x7F
	wsMaxControlPayload = 125
)

// WSHeader is a parsed WebSocket frame header.
type WSHeader struct {
	Fin        bool
	Opcode     byte
	Masked     bool
	MaskKey    [4]byte
	HeaderLen  int // fixed header, extended length and mask key
	PayloadLen int
}

// FrameLen returns the wire size of the frame.
func (h WSHeader) FrameLen() int { return h.HeaderLen + h.PayloadLen }

// ParseWSHeader parses the header at the start of b. The result is
// Insufficient while the header or payload is incomplete, Invalid for
// protocol violations and Frame(total) when the whole frame is present.
func ParseWSHeader(b []byte) (WSHeader, api.SplitResult) {
	var h WSHeader
	if len(b) < 2 {
		return h, api.Insufficient()
	}
	b0, b1 := b[0], b[1]
	if b0&wsRsvMask != 0 {
		return h, api.Invalid(fmt.Errorf("%w: reserved bits 0x%02x", api.ErrInvalidFrame, b0&wsRsvMask))
	}
	h.Fin = b0&wsFinBit != 0
	h.Opcode = b0 & wsOpcodeMask
	h.Masked = b1&wsMaskBit != 0

	control := h.Opcode&0x08 != 0
	switch h.Opcode {
	case 0x0, 0x1, 0x2, 0x8, 0x9, 0xA:
	default:
		return h, api.Invalid(fmt.Errorf("%w: unknown opcode 0x%x", api.ErrInvalidFrame, h.Opcode))
	}
	if control && !h.Fin {
		return h, api.Invalid(fmt.Errorf("%w: fragmented control frame", api.ErrInvalidFrame))
	}

	h.HeaderLen = 2
	length := uint64(b1 & wsLenMask)
	switch length {
	case 126:
		if len(b) < 4 {
			return h, api.Insufficient()
		}
		length = uint64(binary.BigEndian.Uint16(b[2:4]))
		h.HeaderLen = 4
	case 127:
		if len(b) < 10 {
			return h, api.Insufficient()
		}
		length = binary.BigEndian.Uint64(b[2:10])
		h.HeaderLen = 10
		if length > math.MaxInt32 {
			return h, api.Invalid(fmt.Errorf("%w: payload length %d too large", api.ErrInvalidFrame, length))
		}
	}
	if control && length > wsMaxControlPayload {
		return h, api.Invalid(fmt.Errorf("%w: control payload %d exceeds %d", api.ErrInvalidFrame, length, wsMaxControlPayload))
	}
	if h.Masked {
		if len(b) < h.HeaderLen+4 {
			return h, api.Insufficient()
		}
		copy(h.MaskKey[:], b[h.HeaderLen:h.HeaderLen+4])
		h.HeaderLen += 4
	}
	h.PayloadLen = int(length)
	if len(b) < h.FrameLen() {
		return h, api.Insufficient()
	}
	return h, api.FrameOf(h.FrameLen())
}

type webSocket struct{}

// WebSocket splits RFC 6455 frames.
func WebSocket() api.Splitter { return webSocket{} }

func (webSocket) TrySplit(_ api.Session, buf api.BufferView) api.SplitResult {
	_, res := ParseWSHeader(buf.Peek(-1))
	return res
}
