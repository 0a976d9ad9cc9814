// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-tcp components.

package benchmarks

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/session"
	"github.com/momentics/hioload-tcp/transport/tcp"
)

type entry string

func (e entry) SessionID() string { return string(e) }

// BenchmarkRegistryRegister measures register/deregister pairs across shards.
func BenchmarkRegistryRegister(b *testing.B) {
	reg := session.NewRegistry[entry](16)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			id := entry("127.0.0.1:" + strconv.Itoa(i) + "-10.0.0.1:1883")
			if err := reg.Register(id); err == nil {
				reg.Deregister(string(id))
			}
			i++
		}
	})
}

// BenchmarkRegistryLookup measures concurrent lookups of a warm registry.
func BenchmarkRegistryLookup(b *testing.B) {
	reg := session.NewRegistry[entry](16)
	ids := make([]string, 1024)
	for i := range ids {
		ids[i] = "127.0.0.1:" + strconv.Itoa(i) + "-10.0.0.1:1883"
		_ = reg.Register(entry(ids[i]))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			reg.Lookup(ids[i&1023])
			i++
		}
	})
}

// BenchmarkTokenCancel measures a cancel fanning out to subscribers.
func BenchmarkTokenCancel(b *testing.B) {
	for _, subs := range []int{1, 16, 256} {
		b.Run(strconv.Itoa(subs), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				tok := session.NewToken()
				for j := 0; j < subs; j++ {
					tok.Subscribe(func(api.Cancellation) {})
				}
				tok.Cancel(api.Cancellation{Reason: api.ReasonDisconnect, Trigger: api.TriggerClose})
			}
		})
	}
}

// BenchmarkSubscribeStop measures subscription churn on a long-lived token.
func BenchmarkSubscribeStop(b *testing.B) {
	tok := session.NewToken()
	for i := 0; i < b.N; i++ {
		tok.Subscribe(func(api.Cancellation) {}).Stop()
	}
}

// BenchmarkContextInherit measures deriving a message store from a channel store.
func BenchmarkContextInherit(b *testing.B) {
	parent := session.NewContextStore()
	for i := 0; i < 16; i++ {
		parent.Set("k"+strconv.Itoa(i), i, i%2 == 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		child := parent.Inherit()
		child.Release()
	}
}

// BenchmarkLoopbackFetch measures a 1 KiB message sub-exchange over loopback.
func BenchmarkLoopbackFetch(b *testing.B) {
	srv := tcp.NewServer(
		tcp.WithRegisterer(prometheus.NewRegistry()),
		tcp.WithInvoke(func(ctx context.Context, c *tcp.Context) error {
			_, err := io.Copy(io.Discard, c.Stream())
			return err
		}),
	)
	addr, err := srv.Listen(context.Background(), 0, "127.0.0.1")
	if err != nil {
		b.Fatal(err)
	}
	defer srv.Close()

	cli := tcp.NewClient(tcp.WithRegisterer(prometheus.NewRegistry()))
	defer cli.Close()
	ch, err := cli.ConnectTo(context.Background(), "127.0.0.1", addr.Port)
	if err != nil {
		b.Fatal(err)
	}

	payload := make([]byte, 1024)
	write := func(m *tcp.Context) error {
		_, err := m.Body().Write(payload)
		return err
	}
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ch.Fetch(context.Background(), "/bench", tcp.MessageOptions{}, write); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	ch.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = cli.Shutdown(ctx)
}
