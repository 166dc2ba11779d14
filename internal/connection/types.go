package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound     = errors.New("connection not found")
	ErrClosed       = errors.New("connection closed")
	ErrQueueFull    = errors.New("send queue full")
	ErrEmptyChannel = errors.New("channel name is required")
	ErrEmptyID      = errors.New("identity is required")
)

// Transport is the write side of one live client session.
type Transport interface {
	// Send queues a frame for delivery. Frames are written in Send order.
	Send(data []byte) error

	// Close tears the session down. Safe to call more than once.
	Close() error

	// IsOpen reports whether Send can still succeed.
	IsOpen() bool
}

// Info is a point-in-time copy of one connection's state.
type Info struct {
	ID             string
	Identity       string // Empty until authenticated
	Authenticated  bool
	Subscriptions  []string
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// Subscribed reports whether the connection is in channel.
func (i Info) Subscribed(channel string) bool {
	for _, c := range i.Subscriptions {
		if c == channel {
			return true
		}
	}
	return false
}

// TransportConfig configures a WebSocket transport.
type TransportConfig struct {
	PingInterval    time.Duration // Server ping period, must be < PongWait
	PongWait        time.Duration // Read deadline extended on every frame or pong
	WriteTimeout    time.Duration // Write deadline per frame
	MaxMessageBytes int64         // Inbound frame size limit
	SendQueueSize   int           // Max frames waiting to be written
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageBytes: 64 * 1024,
		SendQueueSize:   64,
	}
}

// ReaperConfig configures the inactivity reaper.
type ReaperConfig struct {
	Interval    time.Duration // Sweep period
	IdleTimeout time.Duration // Max time since last activity
}

// DefaultReaperConfig returns sensible defaults.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval:    5 * time.Minute,
		IdleTimeout: 10 * time.Minute,
	}
}
