// File: internal/session/store.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sharded, thread-safe registry of open sessions.

package session

import (
	"hash/fnv"
	"sync"
)

// Store indexes open sessions by ID.
type Store struct {
	shards []*storeShard
	mask   uint32
}

type storeShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore constructs a store with shardCount shards, rounded up to a power
// of two.
func NewStore(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*storeShard, m)
	for i := range shards {
		shards[i] = &storeShard{sessions: make(map[string]*Session)}
	}
	return &Store{shards: shards, mask: m - 1}
}

func (st *Store) shard(id string) *storeShard {
	return st.shards[fnv32(id)&st.mask]
}

// Add registers s.
func (st *Store) Add(s *Session) {
	sh := st.shard(s.ID())
	sh.mu.Lock()
	sh.sessions[s.ID()] = s
	sh.mu.Unlock()
}

// Get fetches a session if present.
func (st *Store) Get(id string) (*Session, bool) {
	sh := st.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Remove drops the session with id.
func (st *Store) Remove(id string) {
	sh := st.shard(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// Len returns the number of registered sessions.
func (st *Store) Len() int {
	n := 0
	for _, sh := range st.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot returns the registered sessions. No lock is held on return, so
// callers may close the returned sessions.
func (st *Store) Snapshot() []*Session {
	var out []*Session
	for _, sh := range st.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	return out
}

// fnv32 hashes a string to uint32.
func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
