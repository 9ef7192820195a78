// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// live in affinity_linux.go and affinity_stub.go.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and binds that thread to
// the logical CPU cpuID mod NumCPU. The goroutine stays locked even when
// binding fails.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	return setAffinityPlatform(CPUFor(cpuID))
}

// CPUFor folds an arbitrary index onto the available CPUs.
func CPUFor(i int) int {
	n := runtime.NumCPU()
	if i < 0 {
		i = -i
	}
	return i % n
}

// Supported reports whether Pin can bind threads on this platform.
func Supported() bool { return supported }
