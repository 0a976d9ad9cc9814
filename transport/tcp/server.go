// File: transport/tcp/server.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening endpoint: accept loop, inbound channels, bulk close.

package tcp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-tcp/api"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server accepts TCP connections and exposes each as a channel context run
// through the invoke pipeline. It can also originate outbound channels with
// Connect; those share its registry and are closed with it.
type Server struct {
	*endpoint

	mu       sync.Mutex
	ln       net.Listener
	stop     chan struct{}
	loopDone chan struct{}
}

// NewServer constructs a Server with the given options.
func NewServer(opts ...Option) *Server {
	return &Server{endpoint: newEndpoint(opts)}
}

// Listen binds address:port and starts accepting. Port 0 picks a free port;
// an empty address or "0.0.0.0" binds all interfaces.
func (s *Server) Listen(ctx context.Context, port int, address string) (*net.TCPAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil, api.ErrAlreadyListening.Wrap("listen", nil).WithContext("addr", s.ln.Addr().String())
	}

	lc := net.ListenConfig{
		KeepAlive: s.cfg.KeepAlive,
		Control:   controlFunc(s.cfg, true),
	}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, classifyListen(err)
	}
	s.ln = ln
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	go s.acceptLoop(ln, s.stop, s.loopDone)

	addr := ln.Addr().(*net.TCPAddr)
	s.log.Info("listening", zap.Stringer("addr", addr))
	return addr, nil
}

// Addr returns the bound address, nil when not listening.
func (s *Server) Addr() *net.TCPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr().(*net.TCPAddr)
}

// acceptLoop accepts until ln is closed or stop is closed. stop also
// interrupts the backoff after a failed Accept.
func (s *Server) acceptLoop(ln net.Listener, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if delay == 0 {
				delay = minAcceptBackoff
			} else {
				delay *= 2
			}
			if delay > maxAcceptBackoff {
				delay = maxAcceptBackoff
			}
			s.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			t := s.clock.Timer(delay)
			select {
			case <-t.C:
			case <-stop:
				t.Stop()
				return
			}
			continue
		}
		delay = 0

		c, err := s.open(DirectionInbound, conn, nil)
		if err != nil {
			s.log.Warn("inbound channel rejected", zap.Error(err))
			continue
		}
		s.serve(c)
	}
}

// Close stops accepting and disconnects every channel. It returns once
// teardown is scheduled; sockets are destroyed after the grace delay.
// The server may Listen again afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	ln, stop, done := s.ln, s.stop, s.loopDone
	s.ln, s.stop, s.loopDone = nil, nil, nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		close(stop)
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = api.ErrTransport.Wrap("close", cerr)
		}
		<-done
	}
	s.closeAll()
	return err
}

// Shutdown closes the server and waits until every channel is disposed or
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return multierr.Append(s.Close(), s.wait(ctx))
}
