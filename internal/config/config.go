// Package config
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process configuration for the hioload-tcp command.

package config

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/transport/tcp"
)

// Config is the root document of the YAML file.
type Config struct {
	Listen  ListenConfig   `koanf:"listen"`
	Log     logging.Config `koanf:"log"`
	TCP     *tcp.Config    `koanf:"tcp"`
	Metrics MetricsConfig  `koanf:"metrics"`
}

// ListenConfig is the argument pair of Server.Listen.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `koanf:"address"`
	Path    string `koanf:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Address: "0.0.0.0", Port: 1883},
		Log:     logging.DefaultConfig(),
		TCP:     tcp.DefaultConfig(),
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Listen.Address != "" && net.ParseIP(c.Listen.Address) == nil {
		return fmt.Errorf("listen.address %q is not an IP address", c.Listen.Address)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.TCP == nil {
		return fmt.Errorf("tcp section missing")
	}
	if err := c.TCP.Validate(); err != nil {
		return fmt.Errorf("tcp: %w", err)
	}
	if c.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			return fmt.Errorf("metrics.address: %w", err)
		}
	}
	return nil
}
