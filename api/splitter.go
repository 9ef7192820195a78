// File: api/splitter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame boundary detection contract.

package api

import "fmt"

// BufferView is a read-only window over the unread bytes of a session buffer.
type BufferView interface {
	Len() int
	// Peek returns at most n head bytes without consuming them. n < 0 means
	// all bytes. The slice must not be modified or retained.
	Peek(n int) []byte
}

// SplitStatus classifies a split attempt.
type SplitStatus int

const (
	SplitInsufficient SplitStatus = iota
	SplitFrame
	SplitInvalid
)

func (s SplitStatus) String() string {
	switch s {
	case SplitInsufficient:
		return "insufficient"
	case SplitFrame:
		return "frame"
	case SplitInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// SplitResult is the answer of a Splitter for the current buffer head.
type SplitResult struct {
	Status SplitStatus
	// Length of the complete frame when Status is SplitFrame.
	Length int
	// Err optionally explains SplitInvalid.
	Err error
}

// Insufficient reports that more bytes are needed.
func Insufficient() SplitResult { return SplitResult{Status: SplitInsufficient} }

// FrameOf reports a complete frame of n bytes at the buffer head.
func FrameOf(n int) SplitResult { return SplitResult{Status: SplitFrame, Length: n} }

// Invalid reports that the buffer head can never become a valid frame.
func Invalid(err error) SplitResult {
	if err == nil {
		err = ErrInvalidFrame
	}
	return SplitResult{Status: SplitInvalid, Err: err}
}

func (r SplitResult) String() string {
	if r.Status == SplitFrame {
		return fmt.Sprintf("frame(%d)", r.Length)
	}
	return r.Status.String()
}

// Splitter decides whether a complete application frame sits at the head of
// the buffer. Implementations must not mutate the view and must return the
// same answer when called again without new bytes.
type Splitter interface {
	TrySplit(s Session, buf BufferView) SplitResult
}

// FrameObserver is implemented by splitters whose framing depends on the
// frames already taken from the buffer. Framed receives every frame right
// after it was consumed and before the next TrySplit.
type FrameObserver interface {
	Framed(s Session, frame []byte)
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(s Session, buf BufferView) SplitResult

func (f SplitterFunc) TrySplit(s Session, buf BufferView) SplitResult { return f(s, buf) }

// SplitterFactory creates the splitter instance owned by one session.
type SplitterFactory func() Splitter
