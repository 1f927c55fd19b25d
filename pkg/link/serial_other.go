//go:build !linux

package link

import (
	"log/slog"
	"os"
)

// openSerial opens the device without line discipline setup; configure the
// port with the platform's tools beforehand.
func openSerial(path string, baud int, syncWrites bool) (*os.File, error) {
	flags := os.O_RDWR
	if syncWrites {
		flags |= os.O_SYNC
	}
	if baud > 0 {
		slog.Warn("baud rate is not applied on this platform", "baud", baud)
	}
	return os.OpenFile(path, flags, 0)
}
