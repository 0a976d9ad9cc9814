// File: transport/tcp/metrics.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus collectors for channel lifecycle and traffic.

package tcp

import (
	"errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	opened   *prometheus.CounterVec
	closed   *prometheus.CounterVec
	active   prometheus.Gauge
	messages prometheus.Counter
	bytes    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_tcp_connections_opened_total",
			Help: "Channels opened, by direction.",
		}, []string{"direction"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_tcp_connections_closed_total",
			Help: "Channels disconnected, by direction and trigger.",
		}, []string{"direction", "trigger"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_tcp_connections_active",
			Help: "Channels not yet disposed.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hioload_tcp_messages_created_total",
			Help: "Message contexts created.",
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_tcp_bytes_total",
			Help: "Bytes moved over channel streams, by direction.",
		}, []string{"direction"}),
	}
	if reg == nil {
		return m
	}
	m.opened = register(reg, m.opened)
	m.closed = register(reg, m.closed)
	m.active = register(reg, m.active)
	m.messages = register(reg, m.messages)
	m.bytes = register(reg, m.bytes)
	return m
}

// register adds c to reg, reusing an identical collector registered by
// another endpoint.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) channelOpened(dir Direction) {
	m.opened.WithLabelValues(dir.String()).Inc()
	m.active.Inc()
}

func (m *metrics) channelClosed(dir Direction, t api.Trigger) {
	m.closed.WithLabelValues(dir.String(), t.String()).Inc()
}

func (m *metrics) channelDisposed() {
	m.active.Dec()
}

func (m *metrics) bytesRead(n int) {
	m.bytes.WithLabelValues("read").Add(float64(n))
}

func (m *metrics) bytesWritten(n int) {
	m.bytes.WithLabelValues("write").Add(float64(n))
}
