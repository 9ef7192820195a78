//go:build !linux

// File: reactor/selector_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/session"
)

func newSelectorBackend(*session.Endpoint) (Backend, error) {
	return nil, fmt.Errorf("reactor: selector backend requires epoll: %w", api.ErrNotSupported)
}
