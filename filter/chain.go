// File: filter/chain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package filter converts between wire frames and application messages.

package filter

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
)

// Chain applies filters in order on decode and in reverse order on encode.
type Chain []api.Filter

// Decode runs msg through every filter. A nil result from any filter drops
// the message and returns nil.
func (c Chain) Decode(s api.Session, msg any) (any, error) {
	for i, f := range c {
		out, err := f.Decode(s, msg)
		if err != nil {
			return nil, fmt.Errorf("filter %d decode: %w", i, err)
		}
		if out == nil {
			return nil, nil
		}
		msg = out
	}
	return msg, nil
}

// Encode runs msg through the filters last to first and expects raw bytes
// at the end of the chain.
func (c Chain) Encode(s api.Session, msg any) ([]byte, error) {
	for i := len(c) - 1; i >= 0; i-- {
		out, err := c[i].Encode(s, msg)
		if err != nil {
			return nil, fmt.Errorf("filter %d encode: %w", i, err)
		}
		if out == nil {
			return nil, nil
		}
		msg = out
	}
	return ToBytes(msg)
}

// ToBytes converts the message types the transport can send directly.
func ToBytes(msg any) ([]byte, error) {
	switch v := msg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("%w: cannot send message of type %T", api.ErrInvalidArgument, msg)
	}
}
