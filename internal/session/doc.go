// Package session
// Author: momentics <momentics@gmail.com>
//
// Connection bookkeeping shared by every transport endpoint.
// Registry maps session ids to live channel contexts, Token carries the
// exactly-once cancellation signal of a context, and the context store holds
// propagation-aware capabilities attached by host pipelines.
//
// All types are safe for concurrent use.

package session
