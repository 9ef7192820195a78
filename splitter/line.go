// File: splitter/line.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package splitter

import (
	"bytes"
	"fmt"

	"github.com/momentics/hioload-net/api"
)

type line struct {
	max int
}

// Line emits frames terminated by '\n', the terminator included.
// A positive max rejects lines that grow beyond max bytes without a terminator.
func Line(max int) api.Splitter {
	return line{max: max}
}

func (l line) TrySplit(_ api.Session, buf api.BufferView) api.SplitResult {
	b := buf.Peek(-1)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return api.FrameOf(i + 1)
	}
	if l.max > 0 && len(b) > l.max {
		return api.Invalid(fmt.Errorf("%w: line exceeds %d bytes", api.ErrInvalidFrame, l.max))
	}
	return api.Insufficient()
}
