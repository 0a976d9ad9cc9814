package tcp

import (
	"errors"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-tcp/api"
)

func opError(op string, errno syscall.Errno) error {
	return &net.OpError{Op: op, Net: "tcp", Err: os.NewSyscallError(op, errno)}
}

func TestClassifyDial(t *testing.T) {
	cases := []struct {
		err  error
		want *api.Error
	}{
		{opError("dial", syscall.ECONNREFUSED), api.ErrConnectionRefused},
		{opError("dial", syscall.EHOSTUNREACH), api.ErrHostUnreachable},
		{opError("dial", syscall.ENETUNREACH), api.ErrHostUnreachable},
		{errors.New("i/o timeout"), api.ErrTransport},
	}
	for _, tc := range cases {
		got := classifyDial(tc.err)
		assert.ErrorIs(t, got, tc.want, tc.err.Error())
		assert.ErrorIs(t, got, tc.err, "cause must stay reachable")
	}
}

func TestClassifyListen(t *testing.T) {
	err := classifyListen(opError("listen", syscall.EADDRINUSE))
	assert.ErrorIs(t, err, api.ErrAddressInUse)
	assert.ErrorIs(t, err, syscall.EADDRINUSE)
	assert.ErrorIs(t, classifyListen(errors.New("bad")), api.ErrTransport)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.GraceDelay = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultPorts["bad"] = 70000
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cp := cfg.Clone()
	cp.DefaultPorts["mqtt"] = 1
	assert.Equal(t, 1883, cfg.DefaultPorts["mqtt"])
}
