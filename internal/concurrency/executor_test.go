// File: internal/concurrency/executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExecutorRunsTasks(t *testing.T) {
	e := NewExecutor(4, 16, zaptest.NewLogger(t))
	defer e.Close()

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(100), n.Load())
	assert.Eventually(t, func() bool { return e.Stats()["completed_tasks"] == 100 }, time.Second, time.Millisecond)
}

func TestExecutorSurvivesPanic(t *testing.T) {
	e := NewExecutor(1, 4, zaptest.NewLogger(t))
	defer e.Close()

	require.NoError(t, e.Submit(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
	assert.Equal(t, int64(1), e.Stats()["panics"])
}

func TestExecutorSubmitBlocksWhenFull(t *testing.T) {
	e := NewExecutor(1, 1, nil)
	defer e.Close()

	release := make(chan struct{})
	require.NoError(t, e.Submit(func() { <-release }))
	// the worker may not have dequeued the first task yet; fill until blocked
	submitted := make(chan struct{})
	go func() {
		_ = e.Submit(func() {})
		_ = e.Submit(func() {})
		close(submitted)
	}()
	select {
	case <-submitted:
		t.Fatal("submit should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("submit did not resume after the queue drained")
	}
}

func TestExecutorClose(t *testing.T) {
	e := NewExecutor(2, 4, nil)
	e.Close()
	e.Close()
	err := e.Submit(func() {})
	assert.True(t, errors.Is(err, ErrExecutorClosed))
	assert.Equal(t, 0, e.NumWorkers())
}

func TestExecutorResize(t *testing.T) {
	e := NewExecutor(2, 4, nil)
	defer e.Close()
	e.Resize(5)
	assert.Equal(t, 5, e.NumWorkers())
	e.Resize(1)
	assert.Eventually(t, func() bool { return e.NumWorkers() == 1 }, time.Second, time.Millisecond)
}

func TestExecutorDrain(t *testing.T) {
	e := NewExecutor(2, 64, zaptest.NewLogger(t))
	defer e.Close()

	var n atomic.Int64
	for i := 0; i < 32; i++ {
		require.NoError(t, e.Submit(func() {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}
	require.NoError(t, e.Drain(context.Background()))
	assert.Equal(t, int64(32), n.Load())

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, e.Submit(func() { <-block }))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(e.Drain(ctx), context.DeadlineExceeded))
}
