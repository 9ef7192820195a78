// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed byte slice pool on top of sync.Pool.

package pool

import (
	"math/bits"
	"sync"

	"github.com/momentics/hioload-net/api"
)

const (
	minClassShift = 9  // 512 B
	maxClassShift = 22 // 4 MiB
)

// BytePool hands out slices rounded up to a power of two.
type BytePool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool creates an empty pool.
func NewBytePool() *BytePool {
	p := &BytePool{}
	for i := range p.classes {
		size := 1 << (minClassShift + i)
		p.classes[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

func classOf(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	return bits.Len(uint(n-1)) - minClassShift
}

// Acquire returns a slice of length n. Sizes above the largest class are
// allocated directly.
func (p *BytePool) Acquire(n int) []byte {
	c := classOf(n)
	if c >= len(p.classes) {
		return make([]byte, n)
	}
	b := p.classes[c].Get().(*[]byte)
	return (*b)[:n]
}

// Release returns buf to its class. Slices with a capacity that is not a
// class size are dropped.
func (p *BytePool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	idx := classOf(c)
	if idx >= len(p.classes) || 1<<(minClassShift+idx) != c {
		return
	}
	buf = buf[:c]
	p.classes[idx].Put(&buf)
}
