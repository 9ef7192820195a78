// File: splitter/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package splitter provides frame boundary detectors for byte streams:
// fixed length, line delimited, varint length prefixed, HTTP header block,
// WebSocket frame and pass-through. Every splitter only inspects the buffer;
// consuming the detected frame is the caller's job.
package splitter
