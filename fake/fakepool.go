// File: fake/fakepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

// BytePool is an allocation-only api.BytePool that counts outstanding buffers.
type BytePool struct {
	acquired atomic.Int64
	released atomic.Int64
}

var _ api.BytePool = (*BytePool)(nil)

func (p *BytePool) Acquire(n int) []byte {
	p.acquired.Add(1)
	return make([]byte, n)
}

func (p *BytePool) Release(_ []byte) { p.released.Add(1) }

// Outstanding returns acquired minus released buffers.
func (p *BytePool) Outstanding() int64 { return p.acquired.Load() - p.released.Load() }
