// File: transport/tcp/errors.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mapping of socket errors onto the api error taxonomy.

package tcp

import (
	"errors"
	"syscall"

	"github.com/momentics/hioload-tcp/api"
)

// classifyListen maps a bind failure.
func classifyListen(err error) error {
	if errors.Is(err, syscall.EADDRINUSE) {
		return api.ErrAddressInUse.Wrap("listen", err)
	}
	return api.ErrTransport.Wrap("listen", err)
}

// classifyDial maps a connect failure.
func classifyDial(err error) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return api.ErrConnectionRefused.Wrap("connect", err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return api.ErrHostUnreachable.Wrap("connect", err)
	default:
		return api.ErrTransport.Wrap("connect", err)
	}
}
