// File: control/control_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/fake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "selector")
	require.NoError(t, err)

	m.SessionsOpened.Inc()
	m.BytesRead.Add(42)
	m.SessionsActive.Set(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpened))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.BytesRead))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))

	n, err := testutil.GatherAndCount(reg, "hioload_net_bytes_read_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = NewMetrics(reg, "selector")
	assert.Error(t, err, "duplicate registration must fail")
}

func TestMetricsUnregistered(t *testing.T) {
	m, err := NewMetrics(nil, "completion")
	require.NoError(t, err)
	m.Exceptions.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exceptions))
}

func TestDebugRegistry(t *testing.T) {
	dp := NewDebugRegistry()
	dp.Register("sessions", func() any { return 2 })
	dp.Register("backend", func() any { return "selector" })
	dp.Register("broken", func() any { panic("boom") })
	dp.Register("nested", func() any { return len(dp.Names()) })
	assert.Equal(t, []string{"backend", "broken", "nested", "sessions"}, dp.Names())

	state := dp.DumpState()
	assert.Equal(t, 2, state["sessions"])
	assert.Equal(t, "selector", state["backend"])
	assert.Equal(t, "error: boom", state["broken"])
	assert.Equal(t, 4, state["nested"])

	dp.Register("broken", nil)
	assert.NotContains(t, dp.DumpState(), "broken")
}

func TestSummarizeSessions(t *testing.T) {
	open := fake.NewSession()
	ws := fake.NewSession()
	ws.SetAttribute(api.AttrWebSocket, true)
	closed := fake.NewClientSession()
	closed.Close()

	sum := SummarizeSessions([]*fake.Session{open, ws, closed})
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, map[string]int{"open": 2, "closed": 1}, sum.ByState)
	assert.Equal(t, 2, sum.Server)
	assert.Equal(t, 1, sum.Client)
	assert.Equal(t, 1, sum.Upgraded)

	assert.Equal(t, 0, SummarizeSessions[api.Session](nil).Total)
}
