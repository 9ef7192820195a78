// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package config holds endpoint settings shared by servers and clients and
// loads them from YAML.

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/momentics/hioload-net/api"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendSelector   = "selector"
	BackendCompletion = "completion"
)

// Config holds all endpoint configuration parameters.
type Config struct {
	Backend         string        `yaml:"backend"`          // "selector" or "completion"
	ListenAddr      string        `yaml:"listen_addr"`      // TCP bind address, e.g. ":9000"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // idle interval, 0 disables idle events
	SendTimeout     time.Duration `yaml:"send_timeout"`     // bound on a blocking send
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`  // client dial bound
	SelectInterval  time.Duration `yaml:"select_interval"`  // selector wait bound
	ReadBufferSize  int           `yaml:"read_buffer_size"` // per read syscall
	MaxBufferSize   int           `yaml:"max_buffer_size"`  // unread bytes per session
	MaxHeaderBytes  int           `yaml:"max_header_bytes"` // HTTP splitter limit
	IOThreads       int           `yaml:"io_threads"`       // selectors / completion workers
	PinIOThreads    bool          `yaml:"pin_io_threads"`   // bind selector threads to CPUs
	Workers         int           `yaml:"workers"`          // application callback workers
	QueueSize       int           `yaml:"queue_size"`       // application executor queue
	MaxSessions     int           `yaml:"max_sessions"`     // 0 = unlimited
	SyncQueueSize   int           `yaml:"sync_queue_size"`  // ReceiveBlocking inbox
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultBackend is the selector on Linux and the completion backend elsewhere.
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return BackendSelector
	}
	return BackendCompletion
}

// Default returns sensible defaults.
func Default() *Config {
	return &Config{
		Backend:         DefaultBackend(),
		ListenAddr:      ":9000",
		ReadTimeout:     0,
		SendTimeout:     5 * time.Second,
		ConnectTimeout:  5 * time.Second,
		SelectInterval:  time.Second,
		ReadBufferSize:  64 * 1024,
		MaxBufferSize:   4 << 20,
		MaxHeaderBytes:  8 << 10,
		IOThreads:       runtime.NumCPU(),
		Workers:         runtime.NumCPU(),
		QueueSize:       1024,
		MaxSessions:     0,
		SyncQueueSize:   64,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(field string, v any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid config value").
			WithContext("field", field).
			WithContext("value", v)
	}
	switch c.Backend {
	case BackendSelector, BackendCompletion:
	default:
		return invalid("backend", c.Backend)
	}
	if c.ReadTimeout < 0 {
		return invalid("read_timeout", c.ReadTimeout)
	}
	if c.SendTimeout < 0 {
		return invalid("send_timeout", c.SendTimeout)
	}
	if c.SelectInterval <= 0 {
		return invalid("select_interval", c.SelectInterval)
	}
	if c.ReadBufferSize <= 0 {
		return invalid("read_buffer_size", c.ReadBufferSize)
	}
	if c.MaxBufferSize < c.ReadBufferSize {
		return invalid("max_buffer_size", c.MaxBufferSize)
	}
	if c.IOThreads <= 0 {
		return invalid("io_threads", c.IOThreads)
	}
	if c.Workers <= 0 {
		return invalid("workers", c.Workers)
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size", c.QueueSize)
	}
	if c.MaxSessions < 0 {
		return invalid("max_sessions", c.MaxSessions)
	}
	if c.SyncQueueSize <= 0 {
		return invalid("sync_queue_size", c.SyncQueueSize)
	}
	return nil
}

// Clone returns a copy safe to modify.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
