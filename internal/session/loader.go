// File: internal/session/loader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/dispatch"
)

// Loader drives the session splitter over the accumulator and dispatches
// every complete frame. Several frames in one read are all dispatched.
type Loader struct {
	s *Session
}

// Load extracts frames until the buffer is empty or incomplete. It returns
// false when the session was closed because of invalid input.
func (l *Loader) Load() bool {
	s := l.s
	for s.acc.Len() > 0 && s.IsOpen() {
		res := s.splitter.TrySplit(s, s.acc)
		switch res.Status {
		case api.SplitInsufficient:
			return true
		case api.SplitFrame:
			if res.Length <= 0 || res.Length > s.acc.Len() {
				l.reject(fmt.Errorf("%w: splitter reported %d bytes with %d buffered",
					api.ErrInvalidFrame, res.Length, s.acc.Len()))
				return false
			}
			frame := s.acc.Read(res.Length)
			if o, ok := s.splitter.(api.FrameObserver); ok {
				o.Framed(s, frame)
			}
			s.ep.metrics.FramesRead.Inc()
			s.dispatch(dispatch.Receive, frame, nil)
		default:
			l.reject(res.Err)
			return false
		}
	}
	return s.IsOpen()
}

func (l *Loader) reject(err error) {
	switch {
	case err == nil:
		err = api.ErrInvalidFrame
	case !errors.Is(err, api.ErrInvalidFrame):
		err = fmt.Errorf("%w: %v", api.ErrInvalidFrame, err)
	}
	l.s.ep.metrics.InvalidFrames.Inc()
	l.s.fail(err)
}
