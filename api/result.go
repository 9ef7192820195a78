// File: api/result.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cancellation contract.

package api

// Cancelable is any operation that may be canceled.
type Cancelable interface {
	// Cancel attempts to abort the operation.
	Cancel() error
	// Done signals completion/cancellation.
	Done() <-chan struct{}
	// Err returns cancellation reason.
	Err() error
}
