// File: client/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package client dials a single connection on either reactor backend and
// serves it as a session. DialWebSocket adds the client side of the
// WebSocket opening handshake. The handler passed to DialWebSocket sees no
// callback before the server accepted the upgrade: OnConnect comes first,
// and a refused or broken handshake is reported only by the returned error.
package client
