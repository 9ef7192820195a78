// File: internal/session/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package session implements the backend independent part of a connection:
// the receive accumulator, frame loading, attribute storage, blocking sends,
// synchronous receive, idle detection and the exactly-once close protocol.
// Reactors feed bytes in through Ingest and report EOF or read errors; all
// application callbacks leave through the dispatcher.
package session
