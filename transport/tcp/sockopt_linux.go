//go:build linux

// File: transport/tcp/sockopt_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux-specific socket tuning.

package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlFunc returns the socket Control hook for a listener or dialer, nil
// when nothing needs tuning.
func controlFunc(cfg *Config, listener bool) func(network, address string, c syscall.RawConn) error {
	reuse := listener && cfg.ReusePort
	userTimeout := int(cfg.UserTimeout.Milliseconds())
	if !reuse && userTimeout <= 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			if reuse {
				if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); serr != nil {
					return
				}
			}
			// accepted sockets inherit the listener's user timeout
			if userTimeout > 0 {
				serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, userTimeout)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}
