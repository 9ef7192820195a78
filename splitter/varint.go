// File: splitter/varint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length prefixed frames: SENTINEL | uvarint(len) | SENTINEL | payload.

package splitter

import (
	"errors"
	"fmt"
	"math"

	"github.com/momentics/hioload-net/api"
	"github.com/multiformats/go-varint"
)

// DefaultSentinel is the marker byte around the length prefix.
const DefaultSentinel byte = 0x00

type varintPrefixed struct {
	sentinel byte
	max      int
}

// Varint splits length prefixed frames. max bounds the payload length;
// max <= 0 allows up to math.MaxInt32.
func Varint(sentinel byte, max int) api.Splitter {
	if max <= 0 || max > math.MaxInt32 {
		max = math.MaxInt32
	}
	return varintPrefixed{sentinel: sentinel, max: max}
}

func (v varintPrefixed) TrySplit(_ api.Session, buf api.BufferView) api.SplitResult {
	b := buf.Peek(-1)
	if len(b) == 0 {
		return api.Insufficient()
	}
	if b[0] != v.sentinel {
		return api.Invalid(fmt.Errorf("%w: leading sentinel 0x%02x", api.ErrInvalidFrame, b[0]))
	}
	length, n, err := varint.FromUvarint(b[1:])
	switch {
	case errors.Is(err, varint.ErrUnderflow):
		return api.Insufficient()
	case err != nil:
		return api.Invalid(fmt.Errorf("%w: length prefix: %v", api.ErrInvalidFrame, err))
	case length > uint64(v.max):
		return api.Invalid(fmt.Errorf("%w: length %d exceeds %d", api.ErrInvalidFrame, length, v.max))
	}
	header := 1 + n
	if len(b) <= header {
		return api.Insufficient()
	}
	if b[header] != v.sentinel {
		return api.Invalid(fmt.Errorf("%w: trailing sentinel 0x%02x", api.ErrInvalidFrame, b[header]))
	}
	total := header + 1 + int(length)
	if len(b) < total {
		return api.Insufficient()
	}
	return api.FrameOf(total)
}

// VarintHeaderLen returns the prefix size for a payload of length n.
func VarintHeaderLen(n int) int {
	return 2 + varint.UvarintSize(uint64(n))
}
