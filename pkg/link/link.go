// Package link opens the duplex byte stream a transfer runs over: a local
// serial device, or a serial-over-TCP bridge addressed as tcp://host:port.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
)

const (
	DefaultDevice = "/dev/serial0"
	DefaultBaud   = 115200

	tcpScheme = "tcp://"
)

var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// Config describes how to reach the peer.
type Config struct {
	// Device is a serial device path or tcp://host:port.
	Device string `json:"device"`

	// Baud applies to serial devices only. Zero leaves the line speed as is.
	Baud int `json:"baud"`

	// SyncWrites opens the device with O_SYNC so each write reaches the
	// driver before returning.
	SyncWrites bool `json:"sync_writes"`
}

func DefaultConfig() Config {
	return Config{Device: DefaultDevice, Baud: DefaultBaud}
}

// IsNetwork reports whether the device names a TCP bridge.
func (c Config) IsNetwork() bool {
	return strings.HasPrefix(c.Device, tcpScheme)
}

// Open connects to the configured device.
func Open(ctx context.Context, cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Device == "" {
		return nil, errors.New("no device configured")
	}

	if cfg.IsNetwork() {
		addr := strings.TrimPrefix(cfg.Device, tcpScheme)
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		slog.Info("link connected", "address", addr)
		return conn, nil
	}

	f, err := openSerial(cfg.Device, cfg.Baud, cfg.SyncWrites)
	if err != nil {
		return nil, err
	}
	slog.Info("link opened", "device", cfg.Device, "baud", cfg.Baud, "sync", cfg.SyncWrites)
	return f, nil
}
