// File: api/filter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Message transformation and transport cipher contracts.

package api

// Filter converts between wire frames and application messages. Decode runs
// on inbound frames in chain order, Encode on outbound messages in reverse
// order. Returning a nil message stops the chain and drops the message.
type Filter interface {
	Encode(s Session, msg any) (any, error)
	Decode(s Session, msg any) (any, error)
}

// Cipher is a byte-stream transform applied below the accumulator. Unwrap
// sees inbound bytes before framing, Wrap sees outbound bytes after encoding.
type Cipher interface {
	Wrap(p []byte) ([]byte, error)
	Unwrap(p []byte) ([]byte, error)
}

// CipherFactory creates the cipher state for one session.
type CipherFactory func(role Role) (Cipher, error)
