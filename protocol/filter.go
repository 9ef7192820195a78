// File: protocol/filter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Filter translating between WebSocket wire frames and *WSFrame messages
// for sessions that completed the upgrade.

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
)

// FilterOption configures the WebSocket filter.
type FilterOption func(*wsFilter)

// WithControlHandling toggles automatic Ping/Pong/Close processing.
// It is on by default.
func WithControlHandling(on bool) FilterOption {
	return func(f *wsFilter) { f.control = on }
}

// WithMaxMessageSize bounds a message reassembled from fragments.
func WithMaxMessageSize(n int) FilterOption {
	return func(f *wsFilter) {
		if n > 0 {
			f.maxMessage = n
		}
	}
}

// DefaultMaxMessageSize bounds reassembled messages unless overridden.
const DefaultMaxMessageSize = 16 << 20

type wsFilter struct {
	control    bool
	maxMessage int
}

// fragmentsKey is the session attribute holding a message being reassembled.
type fragmentsKey struct{}

type partialMessage struct {
	opcode  Opcode
	payload []byte
}

// NewFilter creates the WebSocket filter. Sessions without the
// api.AttrWebSocket attribute pass through untouched.
func NewFilter(opts ...FilterOption) api.Filter {
	f := &wsFilter{control: true, maxMessage: DefaultMaxMessageSize}
	for _, o := range opts {
		o(f)
	}
	return f
}

// IsUpgraded reports whether s switched to WebSocket framing.
func IsUpgraded(s api.Session) bool {
	v, ok := s.Attribute(api.AttrWebSocket)
	return ok && v == true
}

func (f *wsFilter) Decode(s api.Session, msg any) (any, error) {
	if !IsUpgraded(s) {
		return msg, nil
	}
	raw, ok := msg.([]byte)
	if !ok {
		return msg, nil
	}
	frame, n, err := DecodeFrameFromBytes(raw)
	if err != nil {
		return nil, err
	}
	if n != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes after frame", api.ErrInvalidFrame, len(raw)-n)
	}
	if frame.Opcode.IsControl() {
		if f.control {
			return nil, f.handleControl(s, frame)
		}
		return frame, nil
	}
	return f.assemble(s, frame)
}

// assemble joins fragmented data frames. Intermediate fragments yield nil.
func (f *wsFilter) assemble(s api.Session, frame *WSFrame) (any, error) {
	v, _ := s.Attribute(fragmentsKey{})
	p, _ := v.(*partialMessage)
	switch {
	case frame.Opcode == OpcodeContinuation:
		if p == nil {
			return nil, fmt.Errorf("%w: continuation without a started message", api.ErrInvalidFrame)
		}
	case p != nil:
		return nil, fmt.Errorf("%w: %s frame inside a fragmented message", api.ErrInvalidFrame, frame.Opcode)
	case frame.IsFinal:
		return frame, nil
	default:
		p = &partialMessage{opcode: frame.Opcode}
		s.SetAttribute(fragmentsKey{}, p)
	}
	if len(p.payload)+len(frame.Payload) > f.maxMessage {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrMessageTooLarge, f.maxMessage)
	}
	p.payload = append(p.payload, frame.Payload...)
	if !frame.IsFinal {
		return nil, nil
	}
	s.RemoveAttribute(fragmentsKey{})
	return &WSFrame{IsFinal: true, Opcode: p.opcode, Masked: frame.Masked, Payload: p.payload}, nil
}

func (f *wsFilter) Encode(s api.Session, msg any) (any, error) {
	frame, ok := msg.(*WSFrame)
	if !ok {
		return msg, nil
	}
	// Clients mask every frame and servers never do, whatever the frame
	// carried when it was decoded.
	if masked := s.Role() == api.RoleClient; frame.Masked != masked {
		cp := *frame
		cp.Masked = masked
		frame = &cp
	}
	return EncodeFrameToBytes(frame)
}

// handleControl answers pings and completes the closing handshake.
func (f *wsFilter) handleControl(s api.Session, frame *WSFrame) error {
	switch frame.Opcode {
	case OpcodePing:
		pong, err := NewPongFrame(frame.Payload)
		if err != nil {
			return err
		}
		return s.Write(pong)
	case OpcodeClose:
		echo := &WSFrame{IsFinal: true, Opcode: OpcodeClose, Payload: frame.Payload, ErrorCode: frame.ErrorCode}
		err := s.Write(echo)
		s.Close()
		return err
	}
	return nil
}
