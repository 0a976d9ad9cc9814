// File: transport/tcp/endpoint.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// State and connection plumbing shared by Server and Client.

package tcp

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
)

type endpoint struct {
	cfg        *Config
	log        *zap.Logger
	clock      clock.Clock
	registerer prometheus.Registerer
	metrics    *metrics
	registry   *session.Registry[*Context]
	factory    *Factory

	invoke     Handler
	connect    Handler
	create     Handler
	dispatch   Handler
	middleware []Middleware

	mu   sync.Mutex
	live map[*channel]struct{}
}

func newEndpoint(opts []Option) *endpoint {
	e := &endpoint{
		cfg:   DefaultConfig(),
		log:   zap.NewNop(),
		clock: clock.New(),
		live:  make(map[*channel]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("tcp")
	e.metrics = newMetrics(e.registerer)
	e.registry = session.NewRegistry[*Context](e.cfg.RegistryShards)
	e.factory = &Factory{owner: e}
	return e
}

// Factory returns the context factory of the endpoint.
func (e *endpoint) Factory() *Factory { return e.factory }

// Lookup returns the live channel context registered under sessionID.
func (e *endpoint) Lookup(sessionID string) (*Context, bool) {
	return e.registry.Lookup(sessionID)
}

// Connections returns the number of registered channels.
func (e *endpoint) Connections() int {
	return e.registry.Len()
}

// Connect dials rawURL (scheme://host[:port][/path]) and returns the
// registered outbound channel context. A missing port is taken from
// Config.DefaultPorts.
func (e *endpoint) Connect(ctx context.Context, rawURL string) (*Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, api.ErrInvalidArgument.Wrap("connect", err)
	}
	if u.Hostname() == "" {
		return nil, api.ErrInvalidArgument.Wrap("connect", errors.New("missing host in "+rawURL))
	}
	if u.Scheme == "" {
		u.Scheme = e.cfg.Scheme
	}
	port, ok := e.cfg.defaultPort(u.Scheme)
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		ok = err == nil
	}
	if !ok {
		return nil, api.ErrInvalidArgument.Wrap("connect", errors.New("no port for "+rawURL))
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	return e.dial(ctx, u)
}

// ConnectTo dials host:port with the configured scheme.
func (e *endpoint) ConnectTo(ctx context.Context, host string, port int) (*Context, error) {
	return e.dial(ctx, &url.URL{
		Scheme: e.cfg.Scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	})
}

func (e *endpoint) dial(ctx context.Context, target *url.URL) (*Context, error) {
	d := net.Dialer{
		Timeout:   e.cfg.DialTimeout,
		KeepAlive: e.cfg.KeepAlive,
		Control:   controlFunc(e.cfg, false),
	}
	conn, err := d.DialContext(ctx, "tcp", target.Host)
	if err != nil {
		return nil, classifyDial(err)
	}
	c, err := e.open(DirectionOutbound, conn, target)
	if err != nil {
		return nil, err
	}

	hctx, cancel := c.token.Context(ctx)
	err = runHandler(hctx, e.connect, c)
	cancel()
	if err != nil {
		c.ch.disconnect(api.TriggerError, err)
		return nil, err
	}
	return c, nil
}

// open turns an established connection into a registered channel context
// and starts its read pump.
func (e *endpoint) open(dir Direction, conn net.Conn, target *url.URL) (*Context, error) {
	addrs := addressesOf(conn)
	stream := newStream(conn, e.cfg.ReadBufferSize, e.metrics)
	req, _ := e.factory.newChannel(dir, addrs, stream, target)
	e.metrics.channelOpened(dir)

	if err := e.registry.Register(req); err != nil {
		req.ch.disconnect(api.TriggerError, err)
		return nil, err
	}
	req.ch.registered.Store(true)
	// a disconnect racing the flag above may have skipped deregistration
	if req.ch.State() != api.StateActive {
		e.registry.Deregister(req.sessionID)
	}

	e.log.Debug("channel opened",
		zap.String("session", req.sessionID),
		zap.Stringer("direction", dir),
	)
	stream.start()
	return req, nil
}

// serve runs the invoke pipeline for an inbound channel.
func (e *endpoint) serve(c *Context) {
	if e.invoke == nil {
		return
	}
	h := Chain(e.invoke, e.middleware...)
	go func() {
		ctx, cancel := c.token.Context(context.Background())
		err := runHandler(ctx, h, c)
		cancel()
		if err != nil {
			e.log.Warn("invoke pipeline failed", zap.String("session", c.sessionID), zap.Error(err))
		}
		if e.cfg.DisposeOnComplete {
			c.ch.disconnect(api.TriggerComplete, err)
		}
	}()
}

// subscriberPanics logs panics of cancellation subscribers on sessionID.
func (e *endpoint) subscriberPanics(sessionID string) session.TokenOption {
	return session.WithPanicHandler(func(v any, stack []byte) {
		e.log.Error("cancellation subscriber panicked",
			zap.String("session", sessionID),
			zap.Any("panic", v),
			zap.ByteString("stack", stack),
		)
	})
}

func (e *endpoint) track(ch *channel) {
	e.mu.Lock()
	e.live[ch] = struct{}{}
	e.mu.Unlock()
}

func (e *endpoint) untrack(ch *channel) {
	e.mu.Lock()
	delete(e.live, ch)
	e.mu.Unlock()
}

// closeAll disconnects every registered channel.
func (e *endpoint) closeAll() {
	e.registry.ForEach(func(c *Context) {
		c.ch.disconnect(api.TriggerShutdown, nil)
	})
}

// wait blocks until every tracked channel is disposed or ctx is done.
func (e *endpoint) wait(ctx context.Context) error {
	e.mu.Lock()
	pending := make([]*channel, 0, len(e.live))
	for ch := range e.live {
		pending = append(pending, ch)
	}
	e.mu.Unlock()

	for i, ch := range pending {
		select {
		case <-ch.disposed:
		case <-ctx.Done():
			return api.ErrTransport.Wrap("shutdown", ctx.Err()).WithContext("pending", len(pending)-i)
		}
	}
	return nil
}
