// File: config/config_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.Equal(t, time.Second, cfg.SelectInterval)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
backend: completion
listen_addr: "127.0.0.1:7000"
read_timeout: 250ms
max_sessions: 10
workers: 3
pin_io_threads: true
`))
	require.NoError(t, err)
	assert.Equal(t, BackendCompletion, cfg.Backend)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, 10, cfg.MaxSessions)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.PinIOThreads)
	assert.Equal(t, 64*1024, cfg.ReadBufferSize, "unset fields keep defaults")
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("backend: kqueue\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "backend", apiErr.Context["field"])

	_, err = Parse([]byte("workers: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte("send_timeout: 2s\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.SendTimeout)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Workers = 99
	assert.NotEqual(t, a.Workers, b.Workers)
}
