// File: transport/tcp/guard.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Exactly-once disconnect and disposal of channels and messages.

package tcp

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
)

// channel is the state shared by a channel context pair.
//
// Active -> Disconnecting: first trigger wins the CAS; it deregisters the
// session, then fires the token.
// Disconnecting -> Disposed: after the grace delay the socket is destroyed,
// capabilities released and disposed closed.
type channel struct {
	owner      *endpoint
	dir        Direction
	sessionID  string
	stream     *Stream
	token      *session.Token
	caps       api.Context
	state      atomic.Int32
	registered atomic.Bool
	disposed   chan struct{}
}

func (ch *channel) State() api.State {
	return api.State(ch.state.Load())
}

// Disposed is closed once the socket is destroyed.
func (ch *channel) Disposed() <-chan struct{} {
	return ch.disposed
}

// disconnect runs the teardown sequence once; later triggers report false.
func (ch *channel) disconnect(t api.Trigger, cause error) bool {
	if !ch.state.CompareAndSwap(int32(api.StateActive), int32(api.StateDisconnecting)) {
		return false
	}
	o := ch.owner
	if ch.registered.Load() {
		o.registry.Deregister(ch.sessionID)
	}

	fields := []zap.Field{
		zap.String("session", ch.sessionID),
		zap.Stringer("direction", ch.dir),
		zap.Stringer("trigger", t),
	}
	if cause != nil {
		o.log.Warn("channel disconnected", append(fields, zap.Error(cause))...)
	} else {
		o.log.Debug("channel disconnected", fields...)
	}
	o.metrics.channelClosed(ch.dir, t)

	ch.token.Cancel(api.Cancellation{Reason: api.ReasonDisconnect, Trigger: t, Err: cause})

	if grace := o.cfg.GraceDelay; grace > 0 {
		o.clock.AfterFunc(grace, ch.dispose)
	} else {
		ch.dispose()
	}
	return true
}

// dispose destroys the socket. Only reachable through disconnect.
func (ch *channel) dispose() {
	o := ch.owner
	if err := ch.stream.destroy(); err != nil {
		o.log.Debug("socket destroy", zap.String("session", ch.sessionID), zap.Error(err))
	}
	ch.caps.Release()
	ch.state.Store(int32(api.StateDisposed))
	close(ch.disposed)
	o.metrics.channelDisposed()
	o.untrack(ch)
}

// message is the state shared by a message context pair. Its token is a
// child of the channel token, so a channel disconnect disposes it too.
type message struct {
	token *session.Token
	body  *Body
	caps  api.Context
	state atomic.Int32
}

func (m *message) State() api.State {
	return api.State(m.state.Load())
}

// dispose fires the message token; teardown runs from the token subscription.
func (m *message) dispose(t api.Trigger) {
	m.token.Cancel(api.Cancellation{Reason: api.ReasonComplete, Trigger: t})
}

// teardown runs exactly once, when the message token fires.
func (m *message) teardown(api.Cancellation) {
	m.body.markFinished()
	m.token.Release()
	m.caps.Release()
	m.state.Store(int32(api.StateDisposed))
}
