// File: protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame encoding and decoding.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/splitter"
)

// EncodeFrameToBytes serializes f. Masked frames get a fresh random key.
func EncodeFrameToBytes(f *WSFrame) ([]byte, error) {
	var key [4]byte
	if f.Masked {
		if _, err := rand.Read(key[:]); err != nil {
			return nil, fmt.Errorf("mask key: %w", err)
		}
	}
	return EncodeFrameWithKey(f, key)
}

// EncodeFrameWithKey serializes f using key when f.Masked is set.
func EncodeFrameWithKey(f *WSFrame, key [4]byte) ([]byte, error) {
	if err := validate(f.IsFinal, f.Opcode, len(f.Payload)); err != nil {
		return nil, err
	}
	var b0 byte
	if f.IsFinal {
		b0 = FinBit
	}
	b0 |= byte(f.Opcode) & 0x0F
	var maskBit byte
	if f.Masked {
		maskBit = MaskBit
	}

	plen := len(f.Payload)
	var hdr [MaxFrameHeaderLen]byte
	n := 2
	hdr[0] = b0
	switch {
	case plen <= 125:
		hdr[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		hdr[1] = 126 | maskBit
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		n = 4
	default:
		hdr[1] = 127 | maskBit
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		n = 10
	}
	if f.Masked {
		copy(hdr[n:], key[:])
		n += 4
	}

	buf := make([]byte, n+plen)
	copy(buf, hdr[:n])
	copy(buf[n:], f.Payload)
	if f.Masked {
		maskInPlace(buf[n:], key)
	}
	return buf, nil
}

// DecodeFrameFromBytes parses the frame at the start of raw and returns it
// with the number of bytes consumed. ErrIncompleteFrame is returned when raw
// does not hold a whole frame.
func DecodeFrameFromBytes(raw []byte) (*WSFrame, int, error) {
	h, res := splitter.ParseWSHeader(raw)
	switch res.Status {
	case api.SplitInsufficient:
		return nil, 0, ErrIncompleteFrame
	case api.SplitInvalid:
		return nil, 0, res.Err
	}
	payload := make([]byte, h.PayloadLen)
	copy(payload, raw[h.HeaderLen:h.FrameLen()])
	if h.Masked {
		maskInPlace(payload, h.MaskKey)
	}
	f := &WSFrame{
		IsFinal: h.Fin,
		Opcode:  Opcode(h.Opcode),
		Masked:  h.Masked,
		Payload: payload,
	}
	if f.Opcode == OpcodeClose {
		f.ErrorCode = closeCode(payload)
	}
	return f, h.FrameLen(), nil
}

// maskInPlace applies the RFC 6455 XOR mask.
func maskInPlace(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}
