// Package protocol implements the framing and vocabulary of the serial file
// transfer protocol.
//
// Every message is a fixed 3-byte header followed by a variable payload:
//
//	[CODE][LEN_L][LEN_H][PAYLOAD...]
//
// Where:
//   - CODE = request or reply code (see Code)
//   - LEN  = 16-bit payload length, little-endian
//   - PAYLOAD is omitted entirely when LEN is zero
//
// The codec never validates CODE against the vocabulary; unknown values are
// passed through and it is up to the caller to reject them.
//
// # Exchanging messages
//
//	conn := protocol.NewConn(channel, nil)
//	reply, err := conn.Exchange(protocol.Message{Code: protocol.RequestPacket})
//	if reply.Code != protocol.Success {
//	    return &protocol.Error{Operation: "request packet", Code: reply.Code}
//	}
package protocol
