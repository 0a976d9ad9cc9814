// File: api/context.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Capability store contract attached to every channel and message context.
// Typed transport fields live on the context itself; this store carries
// host-pipeline-defined capabilities only.

package api

import "time"

// Context provides a lightweight key-value store with explicit propagation semantics.
// Propagated keys are inherited by message contexts derived from a channel.
type Context interface {
	// Set assigns a value for a key, optionally marking it as propagated.
	Set(key string, value any, propagated bool)
	// Get fetches a value, returning (value, exists).
	Get(key string) (any, bool)
	// Delete removes a value/key.
	Delete(key string)
	// Clone returns a shallow copy of every live key.
	Clone() Context
	// Inherit returns a shallow copy holding only propagated keys.
	Inherit() Context
	// WithExpiration sets a TTL for a key.
	WithExpiration(key string, ttl time.Duration)
	// IsPropagated checks if a key is marked for propagation.
	IsPropagated(key string) bool
	// Keys returns all present keys.
	Keys() []string
	// Release drops every key; later Set calls are ignored.
	Release()
}
