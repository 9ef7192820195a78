// File: splitter/fixed.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package splitter

import "github.com/momentics/hioload-net/api"

type fixedLength struct {
	n int
}

// FixedLength emits frames of exactly n bytes. n must be positive.
func FixedLength(n int) api.Splitter {
	if n <= 0 {
		panic("splitter: fixed length must be positive")
	}
	return fixedLength{n: n}
}

func (f fixedLength) TrySplit(_ api.Session, buf api.BufferView) api.SplitResult {
	if buf.Len() < f.n {
		return api.Insufficient()
	}
	return api.FrameOf(f.n)
}
