// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral backend interface and factory.

package reactor

import (
	"context"
	"fmt"
	"net"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/config"
	"github.com/momentics/hioload-net/internal/session"
)

// Kind names a backend.
type Kind string

const (
	Selector   Kind = config.BackendSelector
	Completion Kind = config.BackendCompletion
)

// ParseKind maps a configuration value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Selector, Completion:
		return k, nil
	default:
		return "", fmt.Errorf("reactor: unknown backend %q: %w", s, api.ErrInvalidArgument)
	}
}

// Backend drives the sockets of one endpoint.
type Backend interface {
	// Kind reports which backend this is.
	Kind() Kind

	// Listen binds addr and starts accepting. Accepted connections become
	// sessions of the endpoint. It returns the bound address.
	Listen(addr string) (net.Addr, error)

	// Dial connects to addr and opens a session over the connection.
	Dial(ctx context.Context, addr string) (*session.Session, error)

	// Adopt opens a session over an already connected TCP conn, such as one
	// that finished a proxy handshake. The backend takes ownership of nc.
	Adopt(nc net.Conn) (*session.Session, error)

	// Stats reports backend counters for DumpState.
	Stats() map[string]int

	// Close stops accepting and stops the backend threads. Open sessions are
	// not closed; their owner closes them.
	Close() error
}

// New constructs a backend of the given kind for ep.
func New(kind Kind, ep *session.Endpoint) (Backend, error) {
	if ep == nil {
		return nil, fmt.Errorf("reactor: nil endpoint: %w", api.ErrInvalidArgument)
	}
	switch kind {
	case Selector:
		return newSelectorBackend(ep)
	case Completion:
		return newCompletionBackend(ep), nil
	default:
		return nil, fmt.Errorf("reactor: unknown backend %q: %w", kind, api.ErrInvalidArgument)
	}
}

// admit reserves a session slot for a fresh connection or closes it.
func admit(ep *session.Endpoint, closeFn func() error) bool {
	if ep.Admit() {
		return true
	}
	_ = closeFn()
	return false
}
