// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe connection registry for high concurrency.

package session

import (
	"hash/fnv"
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// Entry is anything addressable by session id.
type Entry interface {
	SessionID() string
}

// Registry maps session ids to live entries. It is owned by one endpoint;
// there is no process-wide instance.
type Registry[T Entry] struct {
	shards []*shard[T]
	mask   uint32
}

type shard[T Entry] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewRegistry constructs a registry with shardCount shards, rounded up to a
// power of two.
func NewRegistry[T Entry](shardCount int) *Registry[T] {
	if shardCount <= 0 {
		shardCount = 16
	}
	// find power-of-two shards for bitmasking
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard[T], m)
	for i := range shards {
		shards[i] = &shard[T]{entries: make(map[string]T)}
	}
	return &Registry[T]{shards: shards, mask: m - 1}
}

func (r *Registry[T]) shard(id string) *shard[T] {
	return r.shards[fnv32(id)&r.mask]
}

// Register adds e under its session id. A live entry with the same id is
// never replaced.
func (r *Registry[T]) Register(e T) error {
	id := e.SessionID()
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries[id]; ok {
		return api.ErrAlreadyExists.Wrap("register", nil).WithContext("session", id)
	}
	sh.entries[id] = e
	return nil
}

// Deregister removes and returns the entry for id.
func (r *Registry[T]) Deregister(id string) (T, bool) {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[id]
	if ok {
		delete(sh.entries, id)
	}
	return e, ok
}

// Lookup fetches the live entry for id.
func (r *Registry[T]) Lookup(id string) (T, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[id]
	return e, ok
}

// ForEach applies fn to a snapshot of all entries. fn may deregister.
func (r *Registry[T]) ForEach(fn func(T)) {
	var snap []T
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			snap = append(snap, e)
		}
		sh.mu.RUnlock()
	}
	for _, e := range snap {
		fn(e)
	}
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
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
