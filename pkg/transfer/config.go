package transfer

import (
	"errors"
	"fmt"
)

// Packet size limits. The maximum is the largest length the 16-bit header
// field can carry.
const (
	DefaultPacketSize = 1024
	MinPacketSize     = 1
	MaxPacketSize     = 0xFFFF
)

// Config holds the tunables of a transfer sequence.
type Config struct {
	// PacketSize caps the payload of every SEND_PACKET message.
	PacketSize int `json:"packet_size"`

	// MaxFileSize rejects uploads larger than this many bytes before any
	// traffic is sent. Zero means unlimited.
	MaxFileSize int64 `json:"max_file_size"`
}

// DefaultConfig returns a configuration with the wire defaults.
func DefaultConfig() *Config {
	return &Config{
		PacketSize: DefaultPacketSize,
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.PacketSize < MinPacketSize {
		return errors.New("packet_size must be positive")
	}
	if c.PacketSize > MaxPacketSize {
		return fmt.Errorf("packet_size cannot exceed %d", MaxPacketSize)
	}
	if c.MaxFileSize < 0 {
		return errors.New("max_file_size cannot be negative")
	}
	return nil
}

// PacketCount returns how many SEND_PACKET messages a buffer of size bytes
// needs.
func (c *Config) PacketCount(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + c.PacketSize - 1) / c.PacketSize
}
