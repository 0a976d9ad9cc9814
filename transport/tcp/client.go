// File: transport/tcp/client.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"context"

	"go.uber.org/multierr"
)

// Client originates outbound channels with Connect and ConnectTo.
type Client struct {
	*endpoint
}

// NewClient constructs a Client with the given options.
func NewClient(opts ...Option) *Client {
	return &Client{endpoint: newEndpoint(opts)}
}

// Close disconnects every channel opened by the client. It returns once
// teardown is scheduled.
func (c *Client) Close() error {
	c.closeAll()
	return nil
}

// Shutdown closes the client and waits until every channel is disposed or
// ctx is done.
func (c *Client) Shutdown(ctx context.Context) error {
	return multierr.Append(c.Close(), c.wait(ctx))
}
