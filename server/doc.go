// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server provides the listening facade: it binds a reactor backend,
// turns accepted connections into sessions and shuts everything down in
// order.
package server
