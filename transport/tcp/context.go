// File: transport/tcp/context.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel and message context records handed to host pipelines.

package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
)

// Method of every channel context.
const MethodConnect = "CONNECT"

// Kind tells channel contexts from message contexts.
type Kind int

const (
	// KindChannel represents one physical TCP connection.
	KindChannel Kind = iota
	// KindMessage represents one exchange multiplexed over a channel.
	KindMessage
)

func (k Kind) String() string {
	if k == KindMessage {
		return "message"
	}
	return "channel"
}

// Direction tells who opened the connection.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

func (d Direction) String() string {
	if d == DirectionOutbound {
		return "outbound"
	}
	return "inbound"
}

// Addresses is the 4-tuple of a connection seen from this peer.
type Addresses struct {
	LocalAddress  string
	LocalPort     int
	RemoteAddress string
	RemotePort    int
}

// SessionID formats the tuple as "localAddr:localPort-remoteAddr:remotePort".
func (a Addresses) SessionID() string {
	return fmt.Sprintf("%s:%d-%s:%d", a.LocalAddress, a.LocalPort, a.RemoteAddress, a.RemotePort)
}

// addressesOf reads the tuple from a live connection.
func addressesOf(conn net.Conn) Addresses {
	var a Addresses
	a.LocalAddress, a.LocalPort = splitAddr(conn.LocalAddr())
	a.RemoteAddress, a.RemotePort = splitAddr(conn.RemoteAddr())
	return a
}

func splitAddr(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	if ta, ok := addr.(*net.TCPAddr); ok {
		return ta.IP.String(), ta.Port
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

// MessageOptions parameterize Create and Fetch.
type MessageOptions struct {
	// Method of the exchange, "GET" when empty.
	Method string
	// Values are stored as capabilities of the new message context.
	Values map[string]any
}

// Context is a channel or message context. A channel context and its
// Response share the connection, token and capabilities; they differ in
// origin and role only.
type Context struct {
	id        string
	kind      Kind
	method    string
	scheme    string
	pathBase  string
	path      string
	url       string
	addrs     Addresses
	sessionID string

	localOrigin bool
	request     bool

	stream   *Stream
	owner    *endpoint
	token    *session.Token
	caps     api.Context
	response *Context

	ch  *channel // channel contexts
	msg *message // message contexts
}

// ID is unique per context record.
func (c *Context) ID() string { return c.id }

// Kind reports whether c is a channel or a message context.
func (c *Context) Kind() Kind { return c.kind }

// SessionID identifies the connection; message contexts share their parent's.
func (c *Context) SessionID() string { return c.sessionID }

func (c *Context) Method() string   { return c.method }
func (c *Context) URL() string      { return c.url }
func (c *Context) Scheme() string   { return c.scheme }
func (c *Context) PathBase() string { return c.pathBase }
func (c *Context) Path() string     { return c.path }

func (c *Context) LocalAddress() string  { return c.addrs.LocalAddress }
func (c *Context) LocalPort() int        { return c.addrs.LocalPort }
func (c *Context) RemoteAddress() string { return c.addrs.RemoteAddress }
func (c *Context) RemotePort() int       { return c.addrs.RemotePort }
func (c *Context) Addresses() Addresses  { return c.addrs }

// TLS is always false for plain TCP.
func (c *Context) TLS() bool { return false }

// IsLocalOrigin reports whether this side initiated the exchange.
func (c *Context) IsLocalOrigin() bool { return c.localOrigin }

// IsRequest reports the role of this record within its pair.
func (c *Context) IsRequest() bool { return c.request }

// Stream is the connection's shared byte stream.
func (c *Context) Stream() *Stream { return c.stream }

// Body is the message payload stream, nil on channel contexts.
func (c *Context) Body() *Body {
	if c.msg == nil {
		return nil
	}
	return c.msg.body
}

// Response is the mirrored record; nil on the mirror itself.
func (c *Context) Response() *Context { return c.response }

// Token is the cancellation token of c.
func (c *Context) Token() api.CancelToken { return c.token }

// Done is closed when the token fires.
func (c *Context) Done() <-chan struct{} { return c.token.Done() }

// Capabilities holds host-defined values. Channel pairs share one store;
// message contexts start from the parent's propagated keys.
func (c *Context) Capabilities() api.Context { return c.caps }

// State reports the lifecycle state.
func (c *Context) State() api.State {
	if c.ch != nil {
		return c.ch.State()
	}
	return c.msg.State()
}

// Create derives a message context over the connection of channel context c.
func (c *Context) Create(path string, opts MessageOptions) (*Context, error) {
	return c.owner.factory.NewMessageContext(c, path, opts)
}

// Fetch creates a message and lets write fill its body. Finishing the body
// then dispatches the message under ctx and disposes it. A write error
// disposes the message without dispatch.
func (c *Context) Fetch(ctx context.Context, path string, opts MessageOptions, write func(*Context) error) error {
	m, err := c.Create(path, opts)
	if err != nil {
		return err
	}
	if write != nil {
		if err := write(m); err != nil {
			m.msg.dispose(api.TriggerError)
			return err
		}
	}
	return m.msg.body.finish(ctx)
}

// Dispatch runs the dispatch pipeline on c, then disposes c when dispose is
// set.
func (c *Context) Dispatch(ctx context.Context, dispose bool) error {
	hctx, cancel := c.token.Context(ctx)
	err := runHandler(hctx, c.owner.dispatch, c)
	cancel()
	if dispose {
		c.dispose(api.TriggerComplete)
	}
	return err
}

// Close ends c: a channel disconnects, a message is disposed. Repeated
// calls are no-ops.
func (c *Context) Close() error {
	c.dispose(api.TriggerClose)
	return nil
}

func (c *Context) dispose(t api.Trigger) {
	if c.ch != nil {
		c.ch.disconnect(t, nil)
		return
	}
	c.msg.dispose(t)
}

func (c *Context) String() string {
	return fmt.Sprintf("%s %s %s", c.kind, c.sessionID, c.url)
}
