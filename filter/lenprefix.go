// File: filter/lenprefix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Codec for SENTINEL | uvarint(len) | SENTINEL | payload frames produced by
// splitter.Varint.

package filter

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/splitter"
	"github.com/multiformats/go-varint"
)

type lengthPrefix struct {
	sentinel byte
}

// LengthPrefix strips the varint header on decode and adds it on encode.
func LengthPrefix(sentinel byte) api.Filter { return lengthPrefix{sentinel: sentinel} }

func (l lengthPrefix) Decode(_ api.Session, msg any) (any, error) {
	b, ok := msg.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: length prefix filter cannot decode %T", api.ErrInvalidArgument, msg)
	}
	if len(b) < 3 || b[0] != l.sentinel {
		return nil, fmt.Errorf("%w: missing length prefix", api.ErrInvalidFrame)
	}
	n, size, err := varint.FromUvarint(b[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrInvalidFrame, err)
	}
	start := 2 + size
	if len(b) < start || b[start-1] != l.sentinel || uint64(len(b)-start) != n {
		return nil, fmt.Errorf("%w: length prefix mismatch", api.ErrInvalidFrame)
	}
	return b[start:], nil
}

func (l lengthPrefix) Encode(_ api.Session, msg any) (any, error) {
	b, err := ToBytes(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, splitter.VarintHeaderLen(len(b))+len(b))
	out = append(out, l.sentinel)
	out = append(out, varint.ToUvarint(uint64(len(b)))...)
	out = append(out, l.sentinel)
	return append(out, b...), nil
}
