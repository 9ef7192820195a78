// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the reactors and the dispatcher: a bounded
// worker pool executor and a clock-driven timer scheduler. Both are created
// explicitly by their owner and passed down; there are no package globals.
package concurrency
