// File: affinity/affinity_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import (
	"errors"
	"runtime"
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUFor(t *testing.T) {
	n := runtime.NumCPU()
	assert.Equal(t, 0, CPUFor(0))
	assert.Equal(t, 1%n, CPUFor(n+1))
	assert.Equal(t, 3%n, CPUFor(-3))
}

func TestPin(t *testing.T) {
	done := make(chan struct{})
	var (
		pinErr error
		cpus   []int
		curErr error
	)
	go func() {
		// Left locked so the pinned thread exits with the goroutine.
		defer close(done)
		pinErr = Pin(0)
		cpus, curErr = Current()
	}()
	<-done
	if !Supported() {
		assert.True(t, errors.Is(pinErr, api.ErrNotSupported))
		return
	}
	if pinErr != nil {
		t.Skipf("sched_setaffinity refused: %v", pinErr)
	}
	require.NoError(t, curErr)
	assert.Equal(t, []int{0}, cpus)
}
