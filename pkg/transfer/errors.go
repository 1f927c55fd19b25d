package transfer

import (
	"errors"
	"fmt"

	"github.com/rescp17/serialFileSharer/pkg/integrity"
)

var (
	// ErrInvalidName is returned for a file name that is empty or does not
	// fit in one message payload.
	ErrInvalidName = errors.New("invalid file name")

	// ErrFileTooLarge is returned before any traffic when an upload exceeds
	// Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds configured maximum size")
)

// IntegrityError reports a digest mismatch after a download.
type IntegrityError struct {
	Expected integrity.Digest
	Actual   integrity.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: expected %s, got %s", e.Expected, e.Actual)
}

// BoundsError reports that the peer sent more bytes than the download
// buffer can hold.
type BoundsError struct {
	Capacity int
	Received int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("download overflow: received %d bytes into a %d byte buffer", e.Received, e.Capacity)
}

// IsIntegrityError reports whether err is or wraps an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
