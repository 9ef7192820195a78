// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared API-level type declarations and constants.

package api

// SessionState enumerates the lifecycle of a session. Transitions are monotonic:
// Open -> Closing -> Closed.
type SessionState int32

const (
	SessionOpen SessionState = iota
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role tells which side of a connection a session represents.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// AttrWebSocket is the session attribute set to true once a session has
// switched from HTTP to WebSocket framing.
const AttrWebSocket = "WebSocket"
