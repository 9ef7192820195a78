// File: core/buffer/accumulator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Growable receive buffer with a read cursor and amortized compaction.

package buffer

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
)

const defaultInitial = 4096

// Accumulator holds bytes received on a session and not yet framed.
// It is not safe for concurrent use; the owning session serializes access.
type Accumulator struct {
	buf []byte
	r   int // read cursor
	w   int // write cursor
	max int
}

var _ api.BufferView = (*Accumulator)(nil)

// NewAccumulator creates an accumulator with initial capacity and a hard limit
// on unread bytes. max <= 0 disables the limit.
func NewAccumulator(initial, max int) *Accumulator {
	if initial <= 0 {
		initial = defaultInitial
	}
	if max > 0 && initial > max {
		initial = max
	}
	return &Accumulator{buf: make([]byte, initial), max: max}
}

// Len returns the number of unread bytes.
func (a *Accumulator) Len() int { return a.w - a.r }

// Cap returns the current backing capacity.
func (a *Accumulator) Cap() int { return len(a.buf) }

// Max returns the configured limit.
func (a *Accumulator) Max() int { return a.max }

// Append copies p after the unread bytes.
func (a *Accumulator) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	need := a.Len() + len(p)
	if a.max > 0 && need > a.max {
		return fmt.Errorf("%w: %d bytes buffered, limit %d", api.ErrBufferOverflow, need, a.max)
	}
	if len(a.buf)-a.w < len(p) {
		a.makeRoom(need)
	}
	a.w += copy(a.buf[a.w:], p)
	return nil
}

// makeRoom slides unread bytes to the front when they fit, otherwise grows.
func (a *Accumulator) makeRoom(need int) {
	unread := a.Len()
	if need <= len(a.buf) {
		copy(a.buf, a.buf[a.r:a.w])
		a.r, a.w = 0, unread
		return
	}
	size := len(a.buf) * 2
	if size < need {
		size = need
	}
	if a.max > 0 && size > a.max {
		size = a.max
	}
	nb := make([]byte, size)
	copy(nb, a.buf[a.r:a.w])
	a.buf, a.r, a.w = nb, 0, unread
}

// Peek returns at most n unread bytes without consuming them; n < 0 returns
// everything. The slice is valid until the next Append, Consume or Clear.
func (a *Accumulator) Peek(n int) []byte {
	if n < 0 || n > a.Len() {
		n = a.Len()
	}
	return a.buf[a.r : a.r+n : a.r+n]
}

// Consume discards up to n head bytes and returns how many were discarded.
func (a *Accumulator) Consume(n int) int {
	if n <= 0 {
		return 0
	}
	if n > a.Len() {
		n = a.Len()
	}
	a.r += n
	if a.r == a.w {
		a.r, a.w = 0, 0
	}
	return n
}

// Read copies up to n head bytes into a new slice and consumes them.
func (a *Accumulator) Read(n int) []byte {
	if n > a.Len() {
		n = a.Len()
	}
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, a.buf[a.r:a.r+n])
	a.Consume(n)
	return out
}

// Clear drops all unread bytes.
func (a *Accumulator) Clear() {
	a.r, a.w = 0, 0
}
