// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package config loads TickBridge configuration from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/internal/logging"
)

// CodeInvalidConfig marks configuration that failed validation or loading.
const CodeInvalidConfig = "INVALID_CONFIG"

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	SSE        SSEConfig        `koanf:"sse"`
	Sim        SimConfig        `koanf:"sim"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Log        LogConfig        `koanf:"log"`
	Extensions ExtensionsConfig `koanf:"extensions"`
	Camera     CameraConfig     `koanf:"camera"`
}

// ServerConfig configures the HTTP listener and request drain.
type ServerConfig struct {
	Host               string `koanf:"host"`
	Port               int    `koanf:"port"`
	MaxRequestsPerTick int    `koanf:"max_requests_per_tick"`
	MaxBodyBytes       int64  `koanf:"max_body_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DispatcherConfig bounds main-loop work per tick.
type DispatcherConfig struct {
	MaxItemsPerTick int `koanf:"max_items_per_tick"`
}

// SSEConfig configures event streaming.
type SSEConfig struct {
	HeartbeatIntervalTicks uint64        `koanf:"heartbeat_interval_ticks"`
	WriteTimeout           time.Duration `koanf:"write_timeout"`
}

// SimConfig configures the demo simulation loop.
type SimConfig struct {
	TickRate                 int    `koanf:"tick_rate"`
	StateUpdateIntervalTicks uint64 `koanf:"state_update_interval_ticks"`
}

// TickInterval is the wall-clock duration of one tick.
func (s SimConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// ExtensionsConfig locates extension directories. An empty Dir disables discovery.
type ExtensionsConfig struct {
	Dir string `koanf:"dir"`
}

// CameraConfig configures the UDP camera stream.
type CameraConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
	Width   int    `koanf:"width"`
	Height  int    `koanf:"height"`
	FPS     int    `koanf:"fps"`
	Quality int    `koanf:"quality"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8765,
			MaxRequestsPerTick: 10,
			MaxBodyBytes:       1 << 20,
		},
		Dispatcher: DispatcherConfig{MaxItemsPerTick: 512},
		SSE: SSEConfig{
			HeartbeatIntervalTicks: 180,
			WriteTimeout:           2 * time.Second,
		},
		Sim: SimConfig{
			TickRate:                 60,
			StateUpdateIntervalTicks: 300,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Camera: CameraConfig{
			Address: "127.0.0.1",
			Port:    5007,
			Width:   1280,
			Height:  720,
			FPS:     15,
			Quality: 50,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return invalid("server.port", "must be between 0 and 65535, got %d", c.Server.Port)
	case c.Server.MaxRequestsPerTick <= 0:
		return invalid("server.max_requests_per_tick", "must be positive, got %d", c.Server.MaxRequestsPerTick)
	case c.Server.MaxBodyBytes <= 0:
		return invalid("server.max_body_bytes", "must be positive, got %d", c.Server.MaxBodyBytes)
	case c.Dispatcher.MaxItemsPerTick <= 0:
		return invalid("dispatcher.max_items_per_tick", "must be positive, got %d", c.Dispatcher.MaxItemsPerTick)
	case c.SSE.HeartbeatIntervalTicks == 0:
		return invalid("sse.heartbeat_interval_ticks", "must be positive")
	case c.SSE.WriteTimeout <= 0:
		return invalid("sse.write_timeout", "must be positive, got %s", c.SSE.WriteTimeout)
	case c.Sim.TickRate <= 0 || c.Sim.TickRate > 1000:
		return invalid("sim.tick_rate", "must be between 1 and 1000, got %d", c.Sim.TickRate)
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	case c.Camera.Port <= 0 || c.Camera.Port > 65535:
		return invalid("camera.port", "must be between 1 and 65535, got %d", c.Camera.Port)
	case c.Camera.Width <= 0 || c.Camera.Height <= 0:
		return invalid("camera.width", "frame size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	case c.Camera.FPS <= 0:
		return invalid("camera.fps", "must be positive, got %d", c.Camera.FPS)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code(CodeInvalidConfig).With("key", key).Errorf(key+": "+format, args...)
}
