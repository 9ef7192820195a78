// File: crypt/chacha.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package crypt provides transport cipher stages for sessions. The ChaCha20
// stage keeps one keystream per direction, so both peers must share the key
// and base nonce and must be created with opposite roles.

package crypt

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-net/api"
	"golang.org/x/crypto/chacha20"
)

// KeySize and NonceSize of the ChaCha20 stage.
const (
	KeySize   = chacha20.KeySize
	NonceSize = chacha20.NonceSize
)

// ChaCha20 is a stream cipher stage. Wrap and Unwrap each keep their own
// keystream position and must be called in wire order.
type ChaCha20 struct {
	wmu sync.Mutex
	out *chacha20.Cipher
	rmu sync.Mutex
	in  *chacha20.Cipher
}

var _ api.Cipher = (*ChaCha20)(nil)

// NewChaCha20 creates the stage for one side of a connection.
func NewChaCha20(key, nonce []byte, role api.Role) (*ChaCha20, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: chacha20 key must be %d bytes", api.ErrInvalidArgument, KeySize)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: chacha20 nonce must be %d bytes", api.ErrInvalidArgument, NonceSize)
	}
	toServer, toClient := directionNonces(nonce)
	sendNonce, recvNonce := toServer, toClient
	if role == api.RoleServer {
		sendNonce, recvNonce = toClient, toServer
	}
	out, err := chacha20.NewUnauthenticatedCipher(key, sendNonce)
	if err != nil {
		return nil, err
	}
	in, err := chacha20.NewUnauthenticatedCipher(key, recvNonce)
	if err != nil {
		return nil, err
	}
	return &ChaCha20{out: out, in: in}, nil
}

// NewChaCha20Factory returns a factory building stages with key and nonce.
func NewChaCha20Factory(key, nonce []byte) (api.CipherFactory, error) {
	if _, err := NewChaCha20(key, nonce, api.RoleServer); err != nil {
		return nil, err
	}
	k := append([]byte(nil), key...)
	n := append([]byte(nil), nonce...)
	return func(role api.Role) (api.Cipher, error) {
		return NewChaCha20(k, n, role)
	}, nil
}

func (c *ChaCha20) Wrap(p []byte) ([]byte, error) {
	out := make([]byte, len(p))
	c.wmu.Lock()
	c.out.XORKeyStream(out, p)
	c.wmu.Unlock()
	return out, nil
}

func (c *ChaCha20) Unwrap(p []byte) ([]byte, error) {
	out := make([]byte, len(p))
	c.rmu.Lock()
	c.in.XORKeyStream(out, p)
	c.rmu.Unlock()
	return out, nil
}

func directionNonces(base []byte) (toServer, toClient []byte) {
	toServer = append([]byte(nil), base...)
	toClient = append([]byte(nil), base...)
	toServer[len(base)-1] &^= 1
	toClient[len(base)-1] |= 1
	return toServer, toClient
}
