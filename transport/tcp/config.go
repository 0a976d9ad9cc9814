// File: transport/tcp/config.go
// Package tcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"fmt"
	"maps"
	"time"
)

// Config holds transport-level parameters shared by Server and Client.
type Config struct {
	Scheme            string         `koanf:"scheme"`              // scheme of channel and message URLs
	DialTimeout       time.Duration  `koanf:"dial_timeout"`        // outbound handshake limit, 0 = none
	GraceDelay        time.Duration  `koanf:"grace_delay"`         // delay between disconnect and socket destroy
	KeepAlive         time.Duration  `koanf:"keep_alive"`          // TCP keep-alive period, negative disables
	UserTimeout       time.Duration  `koanf:"user_timeout"`        // TCP_USER_TIMEOUT on Linux, 0 = kernel default
	ReusePort         bool           `koanf:"reuse_port"`          // SO_REUSEPORT on the listener (Linux)
	ReadBufferSize    int            `koanf:"read_buffer_size"`    // read pump chunk size
	RegistryShards    int            `koanf:"registry_shards"`     // connection registry shards
	DisposeOnComplete bool           `koanf:"dispose_on_complete"` // disconnect when the invoke handler returns
	DefaultPorts      map[string]int `koanf:"default_ports"`       // port used when a URL has none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scheme:            "tcp",
		DialTimeout:       5 * time.Second,
		GraceDelay:        100 * time.Millisecond,
		KeepAlive:         30 * time.Second,
		ReadBufferSize:    32 * 1024,
		RegistryShards:    16,
		DisposeOnComplete: true,
		DefaultPorts: map[string]int{
			"mqtt":     1883,
			"mqtts":    8883,
			"coap+tcp": 5683,
			"http":     80,
		},
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Scheme == "":
		return fmt.Errorf("scheme must not be empty")
	case c.DialTimeout < 0:
		return fmt.Errorf("dial_timeout must not be negative")
	case c.GraceDelay < 0:
		return fmt.Errorf("grace_delay must not be negative")
	case c.UserTimeout < 0:
		return fmt.Errorf("user_timeout must not be negative")
	case c.ReadBufferSize <= 0:
		return fmt.Errorf("read_buffer_size must be positive")
	case c.RegistryShards < 0:
		return fmt.Errorf("registry_shards must not be negative")
	}
	for scheme, port := range c.DefaultPorts {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("default_ports.%s: port %d out of range", scheme, port)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.DefaultPorts = maps.Clone(c.DefaultPorts)
	return &cp
}

func (c *Config) defaultPort(scheme string) (int, bool) {
	p, ok := c.DefaultPorts[scheme]
	return p, ok
}
