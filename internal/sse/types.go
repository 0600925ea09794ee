// Package sse serves the relay's event stream to browsers as Server-Sent Events.
package sse

import (
	"time"
)

// Config holds SSE server configuration.
type Config struct {
	HeartbeatInterval time.Duration // Default: 30 seconds
	ConnectionTimeout time.Duration // Default: 0 (no limit)
}

// DefaultConfig returns the default SSE configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
	}
}
