package transfer

import (
	"log/slog"

	"github.com/rescp17/serialFileSharer/pkg/integrity"
	"github.com/rescp17/serialFileSharer/pkg/protocol"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConfig replaces DefaultConfig().
func WithConfig(config *Config) Option {
	return func(c *Client) {
		if config != nil {
			c.config = config
		}
	}
}

// WithProgress registers a callback for progress snapshots.
func WithProgress(cb ProgressCallback) Option {
	return func(c *Client) {
		c.progress = cb
	}
}

// WithHasher replaces the SHA-256 digest.
func WithHasher(h integrity.Hasher) Option {
	return func(c *Client) {
		if h != nil {
			c.hasher = h
		}
	}
}

// WithObserver taps every framed message sent or received.
func WithObserver(obs protocol.Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}
