package protocol

import (
	"errors"
	"fmt"
)

// Error is a reply code the driver did not expect at a given step.
type Error struct {
	// Operation is the request that was rejected
	Operation string

	// Code is the reply received from the peer
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, e.Code.description(), uint8(e.Code))
}

// IsProtocolError reports whether err wraps an *Error.
func IsProtocolError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// ReplyCode extracts the reply code from err if it wraps an *Error.
func ReplyCode(err error) (Code, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
