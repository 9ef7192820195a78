// File: internal/dispatch/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

// Kind identifies the callback an event maps to.
type Kind int

const (
	Connect Kind = iota
	Receive
	Sent
	Idle
	Exception
	Disconnect
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Receive:
		return "receive"
	case Sent:
		return "sent"
	case Idle:
		return "idle"
	case Exception:
		return "exception"
	case Disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is one unit of work for a session. S is the session handle; the
// event does not own it.
type Event[S any] struct {
	Kind    Kind
	Session S
	Payload any
	Err     error
}
