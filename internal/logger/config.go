// File: internal/logger/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Environment driven logging configuration:
//
//	HIOLOAD_LOG_LEVEL=reactor=debug,dispatch=warn,info
//	HIOLOAD_LOG_FORMAT=json
//
// Entries of the form subsystem=level override the trailing default level.

package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Format selects the encoder.
type Format int

const (
	FormatConsole Format = iota
	FormatJSON
)

// Config holds parsed logging settings.
type Config struct {
	DefaultLevel    zapcore.Level
	SubsystemLevels map[string]zapcore.Level
	Format          Format
}

// LevelFor returns the level configured for subsystem.
func (c *Config) LevelFor(subsystem string) zapcore.Level {
	if l, ok := c.SubsystemLevels[subsystem]; ok {
		return l
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv parses HIOLOAD_LOG_LEVEL and HIOLOAD_LOG_FORMAT once.
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv("HIOLOAD_LOG_LEVEL"), os.Getenv("HIOLOAD_LOG_FORMAT"))
	})
	return envConfig
}

// ParseConfig builds a Config from the level and format strings.
func ParseConfig(levels, format string) *Config {
	cfg := &Config{
		DefaultLevel:    zapcore.InfoLevel,
		SubsystemLevels: make(map[string]zapcore.Level),
	}
	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if sub, name, ok := strings.Cut(part, "="); ok {
			if l, err := zapcore.ParseLevel(strings.TrimSpace(name)); err == nil {
				cfg.SubsystemLevels[strings.TrimSpace(sub)] = l
			}
			continue
		}
		if l, err := zapcore.ParseLevel(part); err == nil {
			cfg.DefaultLevel = l
		}
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}
	return cfg
}
