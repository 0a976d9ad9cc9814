// File: transport/tcp/options.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for Server and Client.

package tcp

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option customizes endpoint initialization.
type Option func(*endpoint)

// WithConfig replaces the default configuration. The config is copied.
func WithConfig(cfg *Config) Option {
	return func(e *endpoint) {
		if cfg != nil {
			e.cfg = cfg.Clone()
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *endpoint) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the clock driving grace delays and accept backoff.
func WithClock(c clock.Clock) Option {
	return func(e *endpoint) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRegisterer registers transport metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *endpoint) {
		e.registerer = reg
	}
}

// WithInvoke sets the pipeline run for every inbound channel.
func WithInvoke(h Handler) Option {
	return func(e *endpoint) {
		e.invoke = h
	}
}

// WithConnect sets the pipeline run for every outbound channel before
// Connect returns.
func WithConnect(h Handler) Option {
	return func(e *endpoint) {
		e.connect = h
	}
}

// WithCreate sets the hook decorating every new message context.
func WithCreate(h Handler) Option {
	return func(e *endpoint) {
		e.create = h
	}
}

// WithDispatch sets the pipeline run by Context.Dispatch and Context.Fetch.
func WithDispatch(h Handler) Option {
	return func(e *endpoint) {
		e.dispatch = h
	}
}

// WithMiddleware attaches middleware around the invoke pipeline in FIFO order.
func WithMiddleware(mw ...Middleware) Option {
	return func(e *endpoint) {
		e.middleware = append(e.middleware, mw...)
	}
}
