//go:build !linux

// File: transport/tcp/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket tuning stub for non-Linux platforms; reuse_port and user_timeout
// are ignored.

package tcp

import "syscall"

func controlFunc(cfg *Config, listener bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
