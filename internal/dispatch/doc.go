// File: internal/dispatch/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package dispatch moves session events from I/O threads onto a shared
// worker pool. Each session owns a Serial queue so at most one of its events
// is processed at a time, in arrival order, while different sessions run in
// parallel.
package dispatch
