// File: internal/session/attributes.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import "sync"

// attributes is a thread-safe per-session key/value store.
type attributes struct {
	mu    sync.RWMutex
	store map[any]any
}

func newAttributes() *attributes {
	return &attributes{store: make(map[any]any)}
}

func (a *attributes) Get(key any) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.store[key]
	return v, ok
}

func (a *attributes) Set(key, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[key] = value
}

func (a *attributes) Delete(key any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.store, key)
}

// Keys returns all keys in no particular order.
func (a *attributes) Keys() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]any, 0, len(a.store))
	for k := range a.store {
		keys = append(keys, k)
	}
	return keys
}
