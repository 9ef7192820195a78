// File: control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime state registry behind Server.DumpState and Client.DumpState.

package control

import (
	"fmt"
	"sort"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// DebugRegistry maps names to functions reporting live state. A function
// that panics shows up as an error string under its name.
type DebugRegistry struct {
	mu        sync.RWMutex
	reporters map[string]func() any
}

var _ api.Debug = (*DebugRegistry)(nil)

func NewDebugRegistry() *DebugRegistry {
	return &DebugRegistry{reporters: make(map[string]func() any)}
}

// Register adds or replaces the reporter called name. A nil fn removes it.
func (dp *DebugRegistry) Register(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if fn == nil {
		delete(dp.reporters, name)
		return
	}
	dp.reporters[name] = fn
}

// Names returns the registered names in sorted order.
func (dp *DebugRegistry) Names() []string {
	dp.mu.RLock()
	names := make([]string, 0, len(dp.reporters))
	for k := range dp.reporters {
		names = append(names, k)
	}
	dp.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DumpState calls every reporter. The registry lock is not held while they
// run, so a reporter may itself register or dump.
func (dp *DebugRegistry) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.reporters))
	for k, fn := range dp.reporters {
		fns[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = report(fn)
	}
	return out
}

func report(fn func() any) (v any) {
	defer func() {
		if r := recover(); r != nil {
			v = fmt.Sprintf("error: %v", r)
		}
	}()
	return fn()
}

// SessionSummary counts sessions by lifecycle state and role.
type SessionSummary struct {
	Total    int            `json:"total"`
	ByState  map[string]int `json:"by_state"`
	Server   int            `json:"server"`
	Client   int            `json:"client"`
	Upgraded int            `json:"websocket"`
}

// SummarizeSessions builds a SessionSummary over a session snapshot.
func SummarizeSessions[S api.Session](ss []S) SessionSummary {
	sum := SessionSummary{Total: len(ss), ByState: make(map[string]int)}
	for _, s := range ss {
		sum.ByState[s.State().String()]++
		if s.Role() == api.RoleClient {
			sum.Client++
		} else {
			sum.Server++
		}
		if v, ok := s.Attribute(api.AttrWebSocket); ok && v == true {
			sum.Upgraded++
		}
	}
	return sum
}
