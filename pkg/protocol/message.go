package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed header size: CODE(1) + LEN(2).
	HeaderSize = 3

	// MaxPayloadSize is the largest payload the 16-bit length field can describe.
	MaxPayloadSize = 0xFFFF
)

// ErrPayloadTooLarge is returned when a payload does not fit the length field.
var ErrPayloadTooLarge = errors.New("payload exceeds 65535 bytes")

// Message is one protocol unit: a code and an optional payload.
//
// A nil and an empty payload are encoded identically, as a zero length
// with no payload bytes following the header.
type Message struct {
	Code    Code
	Payload []byte
}

// PayloadLength returns the value carried in the header length field.
func (m Message) PayloadLength() int {
	return len(m.Payload)
}

func (m Message) String() string {
	return fmt.Sprintf("%s len=%d", m.Code, len(m.Payload))
}

// Encode serializes m into a frame.
//
// Frame structure:
//
//	[CODE][LEN_L][LEN_H][PAYLOAD...]
//
// The payload is omitted entirely when its length is zero.
func Encode(m Message) ([]byte, error) {
	if len(m.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encode %s: %w", m.Code, ErrPayloadTooLarge)
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(m.Payload))
	putHeader(frame, m)
	frame = append(frame, m.Payload...)
	return frame, nil
}

// Decode parses exactly one frame from data.
// It fails on truncated input as well as on trailing bytes.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, fmt.Errorf("frame too short: got %d bytes, minimum is %d", len(data), HeaderSize)
	}

	code, payloadLen := parseHeader(data)
	expected := HeaderSize + payloadLen
	if len(data) != expected {
		return Message{}, fmt.Errorf("frame length mismatch: got %d bytes, expected %d", len(data), expected)
	}

	m := Message{Code: code}
	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		copy(m.Payload, data[HeaderSize:])
	}
	return m, nil
}

// WriteMessage writes the header, then the payload if there is one.
func WriteMessage(w io.Writer, m Message) error {
	if len(m.Payload) > MaxPayloadSize {
		return fmt.Errorf("write %s: %w", m.Code, ErrPayloadTooLarge)
	}

	var header [HeaderSize]byte
	putHeader(header[:], m)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(m.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(m.Payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one frame from r. The payload, if any, is
// freshly allocated and owned by the caller.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}

	code, payloadLen := parseHeader(header[:])
	m := Message{Code: code}
	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return Message{}, fmt.Errorf("read %s payload (%d bytes): %w", code, payloadLen, err)
		}
	}
	return m, nil
}

func putHeader(dst []byte, m Message) {
	dst[0] = byte(m.Code)
	binary.LittleEndian.PutUint16(dst[1:HeaderSize], uint16(len(m.Payload)))
}

func parseHeader(src []byte) (Code, int) {
	return Code(src[0]), int(binary.LittleEndian.Uint16(src[1:HeaderSize]))
}
