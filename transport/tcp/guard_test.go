package tcp

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/logging"
)

const testGrace = 100 * time.Millisecond

var pipeAddrs = Addresses{
	LocalAddress:  "10.0.0.1",
	LocalPort:     1883,
	RemoteAddress: "10.0.0.2",
	RemotePort:    40000,
}

// pipeChannel registers an inbound channel over one end of a net.Pipe and
// returns it with the peer end.
func pipeChannel(t *testing.T, e *endpoint, dir Direction) (*Context, net.Conn) {
	t.Helper()
	local, peer := net.Pipe()
	t.Cleanup(func() { peer.Close() })

	stream := newStream(local, 1024, e.metrics)
	req, _ := e.factory.newChannel(dir, pipeAddrs, stream, nil)
	require.NoError(t, e.registry.Register(req))
	req.ch.registered.Store(true)
	stream.start()
	return req, peer
}

func mockEndpoint(opts ...Option) (*endpoint, *clock.Mock) {
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.GraceDelay = testGrace
	return newEndpoint(append([]Option{WithConfig(cfg), WithClock(mock)}, opts...)), mock
}

func TestChannelPairMirrors(t *testing.T) {
	e, _ := mockEndpoint()
	req, peer := pipeChannel(t, e, DirectionInbound)
	defer peer.Close()
	resp := req.Response()

	require.NotNil(t, resp)
	assert.Nil(t, resp.Response())
	assert.Equal(t, "10.0.0.1:1883-10.0.0.2:40000", req.SessionID())
	assert.Equal(t, req.SessionID(), resp.SessionID())
	assert.NotEqual(t, req.ID(), resp.ID())
	assert.Same(t, req.Stream(), resp.Stream())
	assert.Same(t, req.Capabilities(), resp.Capabilities())
	assert.Equal(t, KindChannel, req.Kind())
	assert.Equal(t, MethodConnect, req.Method())
	assert.False(t, req.TLS())

	assert.False(t, req.IsLocalOrigin())
	assert.True(t, req.IsRequest())
	assert.True(t, resp.IsLocalOrigin())
	assert.False(t, resp.IsRequest())
}

func TestDisconnectSequence(t *testing.T) {
	e, mock := mockEndpoint()
	req, _ := pipeChannel(t, e, DirectionInbound)
	id := req.SessionID()

	var foundDuringNotify atomic.Bool
	req.Token().Subscribe(func(c api.Cancellation) {
		_, ok := e.registry.Lookup(id)
		foundDuringNotify.Store(ok)
		assert.Equal(t, api.ReasonDisconnect, c.Reason)
		assert.Equal(t, api.TriggerClose, c.Trigger)
	})

	require.NoError(t, req.Close())
	assert.False(t, foundDuringNotify.Load(), "registry entry must be gone before subscribers run")
	assert.Equal(t, api.StateDisconnecting, req.State())
	assert.False(t, req.stream.destroyed.Load(), "socket destroyed before the grace delay")

	mock.Add(testGrace - time.Millisecond)
	assert.Equal(t, api.StateDisconnecting, req.State())

	mock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return req.State() == api.StateDisposed }, time.Second, time.Millisecond)
	assert.True(t, req.stream.destroyed.Load())

	_, err := req.Stream().Write([]byte("late"))
	assert.ErrorIs(t, err, api.ErrDisposed)
	_, ok := req.Capabilities().Get("anything")
	assert.False(t, ok)
}

func TestZeroGraceDisposesSynchronously(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceDelay = 0
	e := newEndpoint([]Option{WithConfig(cfg)})
	req, _ := pipeChannel(t, e, DirectionOutbound)

	req.Close()
	assert.Equal(t, api.StateDisposed, req.State())
	select {
	case <-req.ch.Disposed():
	default:
		t.Fatal("disposed channel not closed")
	}
}

func TestDisposalExactlyOnceUnderRacingTriggers(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, mock := mockEndpoint()
		req, peer := pipeChannel(t, e, DirectionInbound)

		var notified int32
		req.Token().Subscribe(func(api.Cancellation) { atomic.AddInt32(&notified, 1) })

		var wins int32
		var wg sync.WaitGroup
		fire := func(f func() bool) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f() {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		fire(func() bool { return req.ch.disconnect(api.TriggerClose, nil) })
		fire(func() bool { return req.ch.disconnect(api.TriggerError, errors.New("reset")) })
		fire(func() bool { return req.ch.disconnect(api.TriggerFinish, nil) })
		fire(func() bool { return req.ch.disconnect(api.TriggerComplete, nil) })
		fire(func() bool { peer.Close(); return false })
		wg.Wait()

		assert.EqualValues(t, 1, wins)
		assert.EqualValues(t, 1, atomic.LoadInt32(&notified))
		assert.Equal(t, 0, e.registry.Len())

		mock.Add(testGrace)
		require.Eventually(t, func() bool { return req.State() == api.StateDisposed }, time.Second, time.Millisecond)
		mock.Add(testGrace)
		assert.EqualValues(t, 1, atomic.LoadInt32(&notified))
		assert.False(t, req.ch.disconnect(api.TriggerClose, nil))
	}
}

func TestDoubleClose(t *testing.T) {
	e, mock := mockEndpoint()
	req, _ := pipeChannel(t, e, DirectionInbound)

	var notified int32
	req.Token().Subscribe(func(api.Cancellation) { atomic.AddInt32(&notified, 1) })

	require.NoError(t, req.Close())
	require.NoError(t, req.Close())
	mock.Add(testGrace)
	require.Eventually(t, func() bool { return req.State() == api.StateDisposed }, time.Second, time.Millisecond)
	require.NoError(t, req.Close())
	assert.EqualValues(t, 1, atomic.LoadInt32(&notified))
}

func TestPeerCloseTriggersFinish(t *testing.T) {
	logger, logs := logging.NewObserved(zapcore.DebugLevel)
	e, _ := mockEndpoint(WithLogger(logger))
	req, peer := pipeChannel(t, e, DirectionInbound)

	peer.Close()
	select {
	case <-req.Done():
	case <-time.After(time.Second):
		t.Fatal("peer close not observed")
	}
	c, _ := req.Token().Cause()
	assert.Equal(t, api.TriggerFinish, c.Trigger)
	assert.NoError(t, c.Err)

	entries := logs.FilterMessage("channel disconnected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "finish", entries[0].ContextMap()["trigger"])
	assert.Equal(t, req.SessionID(), entries[0].ContextMap()["session"])
}

func TestStreamCannotDestroySocket(t *testing.T) {
	e, _ := mockEndpoint()
	req, _ := pipeChannel(t, e, DirectionInbound)

	assert.ErrorIs(t, req.Stream().Close(), api.ErrSharedHandle)
	assert.Equal(t, api.StateActive, req.State())
	assert.False(t, req.stream.destroyed.Load())
}

func TestStreamRelaysBytes(t *testing.T) {
	e, _ := mockEndpoint()
	req, peer := pipeChannel(t, e, DirectionInbound)

	go peer.Write([]byte("ping"))
	buf := make([]byte, 4)
	_, err := req.Stream().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	go func() {
		b := make([]byte, 4)
		n, _ := peer.Read(b)
		peer.Write(b[:n])
	}()
	_, err = req.Stream().Write([]byte("pong"))
	require.NoError(t, err)
	_, err = req.Stream().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))
	assert.EqualValues(t, 8, req.Stream().BytesRead())
	assert.EqualValues(t, 4, req.Stream().BytesWritten())
}

func TestPanickingSubscriberStillDisposes(t *testing.T) {
	logger, logs := logging.NewObserved(zapcore.DebugLevel)
	e, mock := mockEndpoint(WithLogger(logger))
	req, _ := pipeChannel(t, e, DirectionInbound)

	var later atomic.Bool
	req.Token().Subscribe(func(api.Cancellation) { panic("host bug") })
	req.Token().Subscribe(func(api.Cancellation) { later.Store(true) })

	require.NotPanics(t, func() { req.Close() })
	assert.True(t, later.Load())
	assert.Equal(t, 0, e.registry.Len())

	mock.Add(testGrace)
	require.Eventually(t, func() bool { return req.State() == api.StateDisposed }, time.Second, time.Millisecond)
	assert.True(t, req.stream.destroyed.Load())

	entries := logs.FilterMessage("cancellation subscriber panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, req.SessionID(), entries[0].ContextMap()["session"])
	assert.Equal(t, "host bug", entries[0].ContextMap()["panic"])
}
