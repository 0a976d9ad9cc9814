// File: transport/tcp/factory.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Construction of mirrored channel and message context pairs.

package tcp

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
)

// defaultMethod of message contexts created without one.
const defaultMethod = "GET"

// Factory builds context records for one endpoint. Channel pairs are built
// by the endpoint itself when a connection is accepted or dialed; hosts
// derive message pairs from a live channel.
type Factory struct {
	owner *endpoint
}

// newChannel builds the mirrored pair for a connection. Inbound channels
// are remote-origin requests, outbound ones local-origin requests; resp
// swaps both flags. A nil target addresses the remote peer with the
// configured scheme. The channel is tracked by the endpoint, which
// registers it and starts its stream.
func (f *Factory) newChannel(dir Direction, addrs Addresses, stream *Stream, target *url.URL) (req, resp *Context) {
	o := f.owner
	if target == nil {
		target = &url.URL{
			Scheme: o.cfg.Scheme,
			Host:   net.JoinHostPort(addrs.RemoteAddress, strconv.Itoa(addrs.RemotePort)),
		}
	}
	ch := &channel{
		owner:     o,
		dir:       dir,
		sessionID: addrs.SessionID(),
		stream:    stream,
		token:     session.NewToken(o.subscriberPanics(addrs.SessionID())),
		caps:      session.NewContextStore(),
		disposed:  make(chan struct{}),
	}
	stream.notify = func(t api.Trigger, err error) { ch.disconnect(t, err) }
	o.track(ch)

	outbound := dir == DirectionOutbound
	req = &Context{
		id:          uuid.NewString(),
		kind:        KindChannel,
		method:      MethodConnect,
		scheme:      target.Scheme,
		path:        target.Path,
		url:         target.String(),
		addrs:       addrs,
		sessionID:   ch.sessionID,
		localOrigin: outbound,
		request:     true,
		stream:      stream,
		owner:       o,
		token:       ch.token,
		caps:        ch.caps,
		ch:          ch,
	}
	resp = req.mirror()
	req.response = resp
	return req, resp
}

// NewMessageContext derives a message pair over parent's connection.
// parent must be a live channel context. The request side is always the
// local-origin one, whichever peer accepted the connection.
func (f *Factory) NewMessageContext(parent *Context, path string, opts MessageOptions) (*Context, error) {
	if parent == nil || parent.kind != KindChannel {
		return nil, api.ErrInvalidArgument.Wrap("create", nil)
	}
	if parent.ch.State() != api.StateActive {
		return nil, api.ErrDisposed.Wrap("create", nil).WithContext("session", parent.sessionID)
	}

	token := session.NewChildToken(parent.token, f.owner.subscriberPanics(parent.sessionID))
	caps := parent.caps.Inherit()
	for k, v := range opts.Values {
		caps.Set(k, v, false)
	}
	m := &message{
		token: token,
		body:  newBody(parent.stream, token),
		caps:  caps,
	}
	token.Subscribe(m.teardown)
	if token.IsCancelled() {
		return nil, api.ErrDisposed.Wrap("create", nil).WithContext("session", parent.sessionID)
	}

	method := opts.Method
	if method == "" {
		method = defaultMethod
	}
	pathBase := parent.pathBase + parent.path
	host := net.JoinHostPort(parent.addrs.RemoteAddress, strconv.Itoa(parent.addrs.RemotePort))

	req := &Context{
		id:          uuid.NewString(),
		kind:        KindMessage,
		method:      method,
		scheme:      parent.scheme,
		pathBase:    pathBase,
		path:        path,
		url:         parent.scheme + "://" + host + pathBase + path,
		addrs:       parent.addrs,
		sessionID:   parent.sessionID,
		localOrigin: true,
		request:     true,
		stream:      parent.stream,
		owner:       f.owner,
		token:       token,
		caps:        caps,
		msg:         m,
	}
	req.response = req.mirror()
	m.body.onFinish = func(ctx context.Context) error {
		return req.Dispatch(ctx, true)
	}
	f.owner.metrics.messages.Inc()

	if h := f.owner.create; h != nil {
		ctx, cancel := token.Context(context.Background())
		err := runHandler(ctx, h, req)
		cancel()
		if err != nil {
			m.dispose(api.TriggerError)
			return nil, err
		}
	}
	return req, nil
}

// mirror returns the opposite-role view of c.
func (c *Context) mirror() *Context {
	r := *c
	r.id = uuid.NewString()
	r.localOrigin = !c.localOrigin
	r.request = !c.request
	r.response = nil
	return &r
}
