// File: splitter/passthrough.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package splitter

import "github.com/momentics/hioload-net/api"

type passThrough struct{}

// PassThrough treats every buffered byte as one frame.
func PassThrough() api.Splitter { return passThrough{} }

func (passThrough) TrySplit(_ api.Session, buf api.BufferView) api.SplitResult {
	if buf.Len() == 0 {
		return api.Insufficient()
	}
	return api.FrameOf(buf.Len())
}
