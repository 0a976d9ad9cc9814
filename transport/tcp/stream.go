// File: transport/tcp/stream.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared byte stream of one TCP connection.

package tcp

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
)

// Stream is the byte stream of a connection, shared by the channel context
// pair and every message context derived from it. Inbound bytes are handed
// over by a read pump through an unbuffered pipe, so a slow reader holds
// back the socket. Only the owning channel can destroy the stream.
type Stream struct {
	conn net.Conn
	pr   *io.PipeReader
	pw   *io.PipeWriter

	wmu         sync.Mutex
	destroyed   atomic.Bool
	writeClosed atomic.Bool
	started     atomic.Bool

	bufSize int
	metrics *metrics
	// notify reports end-of-stream and transport errors to the channel guard.
	notify func(api.Trigger, error)

	nread    atomic.Int64
	nwritten atomic.Int64
}

var _ io.ReadWriteCloser = (*Stream)(nil)

func newStream(conn net.Conn, bufSize int, m *metrics) *Stream {
	pr, pw := io.Pipe()
	return &Stream{
		conn:    conn,
		pr:      pr,
		pw:      pw,
		bufSize: bufSize,
		metrics: m,
		notify:  func(api.Trigger, error) {},
	}
}

// Read returns inbound bytes; io.EOF once the peer finished sending.
func (s *Stream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Write sends p on the connection. Writes are serialized.
func (s *Stream) Write(p []byte) (int, error) {
	if s.destroyed.Load() {
		return 0, api.ErrDisposed.Wrap("write", net.ErrClosed)
	}
	if s.writeClosed.Load() {
		return 0, api.ErrTransportClosed.Wrap("write", nil)
	}
	s.wmu.Lock()
	n, err := s.conn.Write(p)
	s.wmu.Unlock()

	if n > 0 {
		s.nwritten.Add(int64(n))
		s.metrics.bytesWritten(n)
	}
	if err != nil {
		if s.destroyed.Load() {
			return n, api.ErrDisposed.Wrap("write", err)
		}
		s.notify(api.TriggerError, err)
		return n, api.ErrTransport.Wrap("write", err)
	}
	return n, nil
}

// CloseWrite half-closes the connection. The local side is finished, which
// disconnects the channel.
func (s *Stream) CloseWrite() error {
	cw, ok := s.conn.(interface{ CloseWrite() error })
	if !ok {
		return api.ErrInvalidArgument.Wrap("close write", errors.New("connection does not support half-close"))
	}
	if !s.writeClosed.CompareAndSwap(false, true) {
		return nil
	}
	s.wmu.Lock()
	err := cw.CloseWrite()
	s.wmu.Unlock()
	if err != nil && !s.destroyed.Load() {
		s.notify(api.TriggerError, err)
		return api.ErrTransport.Wrap("close write", err)
	}
	s.notify(api.TriggerFinish, nil)
	return nil
}

// Close always fails: the socket belongs to the channel's disposal path.
// Use Context.Close to end a channel or a message.
func (s *Stream) Close() error {
	return api.ErrSharedHandle
}

// LocalAddr returns the local network address.
func (s *Stream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// BytesRead returns the number of bytes received from the peer.
func (s *Stream) BytesRead() int64 { return s.nread.Load() }

// BytesWritten returns the number of bytes sent to the peer.
func (s *Stream) BytesWritten() int64 { return s.nwritten.Load() }

// start launches the read pump once.
func (s *Stream) start() {
	if s.started.CompareAndSwap(false, true) {
		go s.pump()
	}
}

func (s *Stream) pump() {
	buf := make([]byte, s.bufSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.nread.Add(int64(n))
			s.metrics.bytesRead(n)
			if _, werr := s.pw.Write(buf[:n]); werr != nil {
				// pipe closed by destroy
				return
			}
		}
		if err == nil {
			continue
		}
		switch {
		case s.destroyed.Load():
			s.pw.CloseWithError(net.ErrClosed)
		case errors.Is(err, io.EOF):
			s.pw.Close()
			s.notify(api.TriggerFinish, nil)
		default:
			s.pw.CloseWithError(err)
			s.notify(api.TriggerError, err)
		}
		return
	}
}

// destroy closes the socket and fails pending reads. Only the channel guard
// calls it.
func (s *Stream) destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	s.pw.CloseWithError(net.ErrClosed)
	return err
}
