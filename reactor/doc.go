// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor moves bytes between sockets and sessions. Two backends are
// provided: a readiness selector built on Linux epoll and a portable
// completion backend that runs discrete asynchronous accept, connect and
// read operations and posts their results to an I/O executor.
package reactor
