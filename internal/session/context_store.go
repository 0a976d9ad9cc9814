// Package session
// Author: momentics <momentics@gmail.com>
//
// Thread-safe, propagation-aware capability store for channel and message contexts.

package session

import (
	"sync"
	"time"

	"github.com/momentics/hioload-tcp/api"
)

type entry struct {
	val        any
	propagated bool
	expiry     time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// contextStore is a thread-safe, cloneable implementation of api.Context.
type contextStore struct {
	mu       sync.RWMutex
	store    map[string]entry
	released bool
}

// Ensure compliance with api.Context interface.
var _ api.Context = (*contextStore)(nil)

// NewContextStore creates an empty, thread-safe capability store.
func NewContextStore() api.Context {
	return newContextStore()
}

func newContextStore() *contextStore {
	return &contextStore{
		store: make(map[string]entry),
	}
}

// Set stores a key-value pair with optional propagation flag.
func (c *contextStore) Set(key string, value any, propagated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.store[key] = entry{val: value, propagated: propagated}
}

// Get retrieves a value and its existence.
func (c *contextStore) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.val, true
}

// Delete removes a key.
func (c *contextStore) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// Clone returns a shallow clone of the live keys.
func (c *contextStore) Clone() api.Context {
	return c.copy(func(entry) bool { return true })
}

// Inherit returns a shallow clone holding only propagated keys.
func (c *contextStore) Inherit() api.Context {
	return c.copy(func(e entry) bool { return e.propagated })
}

func (c *contextStore) copy(keep func(entry) bool) *contextStore {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make(map[string]entry, len(c.store))
	for k, v := range c.store {
		if v.expired(now) || !keep(v) {
			continue
		}
		cp[k] = v
	}
	return &contextStore{store: cp}
}

// WithExpiration sets expiration timestamp for a key.
func (c *contextStore) WithExpiration(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.store[key]; ok {
		e.expiry = time.Now().Add(ttl)
		c.store[key] = e
	}
}

// Keys returns all active keys.
func (c *contextStore) Keys() []string {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.store))
	for k, e := range c.store {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsPropagated reports propagation flag.
func (c *contextStore) IsPropagated(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	return ok && e.propagated
}

// Release empties the store and rejects later writes.
func (c *contextStore) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.store = make(map[string]entry)
}
