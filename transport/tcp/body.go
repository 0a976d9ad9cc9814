// File: transport/tcp/body.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"context"
	"io"
	"sync"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
)

// Body is the payload stream of one message exchange. It reads and writes
// through the parent connection's Stream while the message is live.
// Finishing the body completes the exchange: the dispatch pipeline runs and
// the message is disposed. The socket is never touched.
type Body struct {
	stream   *Stream
	token    *session.Token
	finished chan struct{}
	once     sync.Once
	// onFinish runs once, on the first finish of a live body.
	onFinish func(context.Context) error
}

var _ io.ReadWriteCloser = (*Body)(nil)

func newBody(stream *Stream, token *session.Token) *Body {
	return &Body{
		stream:   stream,
		token:    token,
		finished: make(chan struct{}),
	}
}

// Write sends p to the peer.
func (b *Body) Write(p []byte) (int, error) {
	if b.token.IsCancelled() {
		return 0, api.ErrDisposed.Wrap("body write", nil)
	}
	if b.isFinished() {
		return 0, api.ErrTransportClosed.Wrap("body write", nil)
	}
	return b.stream.Write(p)
}

// Read receives bytes from the peer.
func (b *Body) Read(p []byte) (int, error) {
	if b.token.IsCancelled() {
		return 0, api.ErrDisposed.Wrap("body read", nil)
	}
	return b.stream.Read(p)
}

// Close finishes the body, dispatches the message and disposes it. It
// returns the dispatch error; later calls are no-ops.
func (b *Body) Close() error {
	return b.finish(context.Background())
}

func (b *Body) finish(ctx context.Context) error {
	first := false
	b.once.Do(func() {
		close(b.finished)
		first = true
	})
	if !first || b.onFinish == nil {
		return nil
	}
	return b.onFinish(ctx)
}

// markFinished closes the finish signal without completing the exchange.
func (b *Body) markFinished() {
	b.once.Do(func() { close(b.finished) })
}

// Finished is closed once the body is finished.
func (b *Body) Finished() <-chan struct{} {
	return b.finished
}

func (b *Body) isFinished() bool {
	select {
	case <-b.finished:
		return true
	default:
		return false
	}
}
