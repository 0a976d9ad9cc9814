// File: internal/session/token.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic cancellation token with late-subscriber delivery.

package session

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-tcp/api"
)

// compactThreshold is the number of stopped subscriptions tolerated before
// the subscriber queue is rebuilt.
const compactThreshold = 32

// Token transitions once from pending to cancelled and notifies every
// subscriber exactly once, in subscription order.
type Token struct {
	mu        sync.Mutex
	done      chan struct{}
	cancelled bool
	cause     api.Cancellation
	subs      *queue.Queue
	stopped   int
	parentSub api.Subscription
	onPanic   PanicHandler
}

var _ api.CancelToken = (*Token)(nil)

// PanicHandler receives a value recovered from a subscriber and its stack.
type PanicHandler func(v any, stack []byte)

// TokenOption configures a Token.
type TokenOption func(*Token)

// WithPanicHandler reports subscriber panics to fn. A panicking subscriber
// never stops the others from running.
func WithPanicHandler(fn PanicHandler) TokenOption {
	return func(t *Token) {
		t.onPanic = fn
	}
}

// NewToken returns a pending token.
func NewToken(opts ...TokenOption) *Token {
	t := &Token{
		done: make(chan struct{}),
		subs: queue.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewChildToken returns a token cancelled with the parent's cause when the
// parent fires. Cancelling the child leaves the parent untouched.
func NewChildToken(parent api.CancelToken, opts ...TokenOption) *Token {
	t := NewToken(opts...)
	if parent == nil {
		return t
	}
	sub := parent.Subscribe(func(c api.Cancellation) {
		t.Cancel(c)
	})
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		sub.Stop()
		return t
	}
	t.parentSub = sub
	t.mu.Unlock()
	return t
}

type subscription struct {
	t      *Token
	fn     func(api.Cancellation)
	active bool // guarded by t.mu
}

// Stop detaches a pending handler.
func (s *subscription) Stop() bool {
	t := s.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	t.stopped++
	if t.stopped >= compactThreshold && t.stopped*2 >= t.subs.Length() {
		t.compact()
	}
	return true
}

// fired is returned for handlers that ran during Subscribe.
type fired struct{}

func (fired) Stop() bool { return false }

// Subscribe registers fn. When the token already fired, fn runs before
// Subscribe returns.
func (t *Token) Subscribe(fn func(api.Cancellation)) api.Subscription {
	t.mu.Lock()
	if t.cancelled {
		c := t.cause
		t.mu.Unlock()
		t.notify(fn, c)
		return fired{}
	}
	s := &subscription{t: t, fn: fn, active: true}
	t.subs.Add(s)
	t.mu.Unlock()
	return s
}

// Cancel fires the token with c. Only the first call has an effect; it
// reports whether this call performed the transition.
func (t *Token) Cancel(c api.Cancellation) bool {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.cause = c
	close(t.done)

	pending := make([]*subscription, 0, t.subs.Length())
	for t.subs.Length() > 0 {
		s := t.subs.Remove().(*subscription)
		if s.active {
			s.active = false
			pending = append(pending, s)
		}
	}
	t.stopped = 0
	parentSub := t.parentSub
	t.parentSub = nil
	t.mu.Unlock()

	if parentSub != nil {
		parentSub.Stop()
	}
	for _, s := range pending {
		t.notify(s.fn, c)
	}
	return true
}

// notify runs one subscriber, containing its panic.
func (t *Token) notify(fn func(api.Cancellation), c api.Cancellation) {
	defer func() {
		if r := recover(); r != nil && t.onPanic != nil {
			t.onPanic(r, debug.Stack())
		}
	}()
	fn(c)
}

// IsCancelled reports whether the token fired.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cause returns the first cancellation.
func (t *Token) Cause() (api.Cancellation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause, t.cancelled
}

// Done is closed when the token fires.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Pending returns the number of handlers waiting for the token.
func (t *Token) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subs.Length() - t.stopped
}

// Release detaches the token from its parent.
func (t *Token) Release() {
	t.mu.Lock()
	ps := t.parentSub
	t.parentSub = nil
	t.mu.Unlock()
	if ps != nil {
		ps.Stop()
	}
}

// Context derives a context.Context cancelled together with the token.
// context.Cause of the derived context is the api.Cancellation.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	sub := t.Subscribe(func(c api.Cancellation) {
		cancel(c)
	})
	return ctx, func() {
		sub.Stop()
		cancel(context.Canceled)
	}
}

// compact drops stopped subscriptions. Caller holds t.mu.
func (t *Token) compact() {
	n := t.subs.Length()
	for i := 0; i < n; i++ {
		s := t.subs.Remove().(*subscription)
		if s.active {
			t.subs.Add(s)
		}
	}
	t.stopped = 0
}
