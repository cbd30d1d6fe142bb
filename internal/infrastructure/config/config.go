// Package config holds kernel tunables loaded from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all kernel configuration.
type Config struct {
	Limits  LimitsConfig
	Logging LogConfig
}

// LimitsConfig bounds kernel object resources.
type LimitsConfig struct {
	// MaxMessageBytes caps the payload of one channel message.
	MaxMessageBytes uint32 `envconfig:"KERNEL_MAX_MSG_BYTES" default:"65536"`
	// MaxMessageHandles caps the handles transferred in one message.
	MaxMessageHandles uint32 `envconfig:"KERNEL_MAX_MSG_HANDLES" default:"64"`
	// PortMaxPackets caps packets queued on one port.
	PortMaxPackets uint32 `envconfig:"KERNEL_PORT_MAX_PACKETS" default:"4096"`
	// MaxHandlesPerProcess caps a process's handle table.
	MaxHandlesPerProcess uint32 `envconfig:"KERNEL_MAX_HANDLES" default:"32768"`
	// AllowReplyChannelTransfer permits writing a handle to a channel
	// endpoint into that same endpoint, the reply-port pattern. When
	// false such writes fail NOT_SUPPORTED.
	AllowReplyChannelTransfer bool `envconfig:"KERNEL_ALLOW_REPLY_CHANNEL" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"KERNEL_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"KERNEL_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxMessageBytes:           65536,
			MaxMessageHandles:         64,
			PortMaxPackets:            4096,
			MaxHandlesPerProcess:      32768,
			AllowReplyChannelTransfer: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
