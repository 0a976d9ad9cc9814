// File: transport/tcp/handler.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host pipeline contract and middleware chain utilities.

package tcp

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Handler is a host pipeline stage. ctx is cancelled when the context's
// token fires; context.Cause(ctx) then yields the api.Cancellation.
type Handler func(ctx context.Context, c *Context) error

// Middleware augments a Handler.
type Middleware func(Handler) Handler

// Chain applies middleware in order: first in slice is outermost.
func Chain(base Handler, mw ...Middleware) Handler {
	h := base
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// PanicError carries a recovered handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// runHandler invokes h, converting a panic into *PanicError.
func runHandler(ctx context.Context, h Handler, c *Context) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h(ctx, c)
}
