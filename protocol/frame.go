// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame model.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/momentics/hioload-net/api"
)

var (
	ErrControlFrameTooLarge = fmt.Errorf("%w: control frame payload exceeds %d bytes", api.ErrInvalidFrame, MaxControlPayloadLen)
	ErrFragmentedControl    = fmt.Errorf("%w: control frame must not be fragmented", api.ErrInvalidFrame)
	ErrUnknownOpcode        = fmt.Errorf("%w: unknown opcode", api.ErrInvalidFrame)
	ErrMessageTooLarge      = fmt.Errorf("%w: message too large", api.ErrInvalidFrame)
	ErrIncompleteFrame      = errors.New("incomplete websocket frame")
)

// WSFrame is a decoded WebSocket frame. Payload is always unmasked.
type WSFrame struct {
	IsFinal bool
	Opcode  Opcode
	// Masked tells whether the frame was (or will be) masked on the wire.
	Masked  bool
	Payload []byte
	// ErrorCode carries the status code of a Close frame, 0 when absent.
	ErrorCode int
}

// NewFrame validates and builds a frame.
func NewFrame(fin bool, op Opcode, masked bool, payload []byte) (*WSFrame, error) {
	if err := validate(fin, op, len(payload)); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = []byte{}
	}
	f := &WSFrame{IsFinal: fin, Opcode: op, Masked: masked, Payload: payload}
	if op == OpcodeClose {
		f.ErrorCode = closeCode(payload)
	}
	return f, nil
}

// NewTextFrame builds a final text frame.
func NewTextFrame(text string) *WSFrame {
	return &WSFrame{IsFinal: true, Opcode: OpcodeText, Payload: []byte(text)}
}

// NewBinaryFrame builds a final binary frame.
func NewBinaryFrame(p []byte) *WSFrame {
	return &WSFrame{IsFinal: true, Opcode: OpcodeBinary, Payload: p}
}

// NewPingFrame builds a ping; payloads over 125 bytes are rejected.
func NewPingFrame(p []byte) (*WSFrame, error) { return NewFrame(true, OpcodePing, false, p) }

// NewPongFrame builds a pong; payloads over 125 bytes are rejected.
func NewPongFrame(p []byte) (*WSFrame, error) { return NewFrame(true, OpcodePong, false, p) }

// NewCloseFrame builds a close frame with a status code and reason.
func NewCloseFrame(code int, reason string) (*WSFrame, error) {
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	copy(p[2:], reason)
	return NewFrame(true, OpcodeClose, false, p)
}

// Text returns the payload as a string.
func (f *WSFrame) Text() string { return string(f.Payload) }

// CloseReason returns the reason text of a Close frame.
func (f *WSFrame) CloseReason() string {
	if f.Opcode != OpcodeClose || len(f.Payload) < 2 {
		return ""
	}
	return string(f.Payload[2:])
}

func (f *WSFrame) String() string {
	return fmt.Sprintf("%s fin=%t masked=%t len=%d", f.Opcode, f.IsFinal, f.Masked, len(f.Payload))
}

func validate(fin bool, op Opcode, n int) error {
	if !op.Valid() {
		return fmt.Errorf("%w 0x%x", ErrUnknownOpcode, byte(op))
	}
	if op.IsControl() {
		if n > MaxControlPayloadLen {
			return ErrControlFrameTooLarge
		}
		if !fin {
			return ErrFragmentedControl
		}
	}
	return nil
}

func closeCode(p []byte) int {
	if len(p) < 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(p))
}
