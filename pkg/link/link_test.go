package link

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/dev/serial0", cfg.Device)
	assert.Equal(t, 115200, cfg.Baud)
	assert.False(t, cfg.SyncWrites)
	assert.False(t, cfg.IsNetwork())
	assert.True(t, Config{Device: "tcp://127.0.0.1:9000"}.IsNetwork())
}

func TestOpen_NoDevice(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(context.Background(), Config{Device: filepath.Join(t.TempDir(), "ttyNone")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// A regular file is not a terminal, so line setup is skipped and the
// descriptor behaves like any file.
func TestOpen_NonTerminalDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake-tty")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	payloads := map[bool]string{false: "first", true: "SE"}
	for _, sync := range []bool{false, true} {
		rw, err := Open(context.Background(), Config{Device: path, Baud: DefaultBaud, SyncWrites: sync})
		require.NoError(t, err)

		_, err = rw.Write([]byte(payloads[sync]))
		require.NoError(t, err)
		require.NoError(t, rw.Close())
	}

	// Each open starts at offset zero.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SErst", string(data))
}

func TestOpen_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		io.ReadFull(conn, buf)
		accepted <- buf
	}()

	rw, err := Open(context.Background(), Config{Device: "tcp://" + ln.Addr().String()})
	require.NoError(t, err)
	defer rw.Close()

	_, err = rw.Write([]byte{0x05, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00, 0x00}, <-accepted)
}

func TestOpen_TCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Open(context.Background(), Config{Device: "tcp://" + addr})
	assert.Error(t, err)
}
