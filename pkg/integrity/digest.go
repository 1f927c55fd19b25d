// Package integrity computes and compares whole-buffer digests.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// ErrDigestLength is returned when a digest is built from the wrong number of bytes.
var ErrDigestLength = errors.New("digest must be exactly 32 bytes")

// Digest is a fixed-size fingerprint of a byte buffer.
type Digest [Size]byte

// Hasher produces a Digest for a whole buffer.
type Hasher interface {
	Sum(data []byte) Digest
}

// SHA256 is the default Hasher.
type SHA256 struct{}

func (SHA256) Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// Sum digests data with SHA-256.
func Sum(data []byte) Digest {
	return SHA256{}.Sum(data)
}

// Equal reports whether a and b are byte-for-byte identical.
func Equal(a, b Digest) bool {
	return a == b
}

// Bytes returns the digest as a slice, suitable for a message payload.
func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// FromBytes copies a 32-byte payload into a Digest.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("%w: got %d", ErrDigestLength, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseHex decodes a 64-character hex string.
func ParseHex(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return FromBytes(raw)
}
