package protocol

import "fmt"

// Code identifies a request or reply message on the link.
type Code uint8

// Request codes, sent by the driver.
const (
	// StartUpload opens an upload. Payload: 32-byte digest of the whole file.
	StartUpload Code = 0x01

	// SendPacket carries the next chunk of the file being uploaded.
	SendPacket Code = 0x02

	// FinalizeUpload closes an upload. Payload: destination filename.
	FinalizeUpload Code = 0x03

	// StartDownload opens a download. Payload: filename.
	StartDownload Code = 0x04

	// RequestPacket asks for the next download chunk. No payload.
	RequestPacket Code = 0x05
)

// Reply codes, sent by the peer.
const (
	// Success acknowledges a request. Download replies carry a chunk.
	Success Code = 0x00

	// ErrorDownloadOver ends the download loop. It is the normal
	// termination signal, not a failure.
	ErrorDownloadOver Code = 0x10

	// ErrorUnknownCommand rejects a code the peer does not implement.
	ErrorUnknownCommand Code = 0x11

	// ErrorBadState rejects a request that is not valid in the peer's
	// current session state (e.g. SendPacket without StartUpload).
	ErrorBadState Code = 0x12

	// ErrorBadLength rejects a payload of the wrong size.
	ErrorBadLength Code = 0x13

	// ErrorChecksum reports that uploaded data does not match its digest.
	ErrorChecksum Code = 0x14

	// ErrorFileNotFound reports that a requested file does not exist.
	ErrorFileNotFound Code = 0x15

	// ErrorFileTooLarge reports that an upload exceeded the peer's limit.
	ErrorFileTooLarge Code = 0x16

	// ErrorStorage reports that the peer failed to read or write its store.
	ErrorStorage Code = 0x17
)

// String returns a display label for the code.
func (c Code) String() string {
	switch c {
	case StartUpload:
		return "START_UPLOAD"
	case SendPacket:
		return "SEND_PACKET"
	case FinalizeUpload:
		return "FINALIZE_UPLOAD"
	case StartDownload:
		return "START_DOWNLOAD"
	case RequestPacket:
		return "REQUEST_PACKET"
	case Success:
		return "SUCCESS"
	case ErrorDownloadOver:
		return "ERROR_DOWNLOAD_OVER"
	case ErrorUnknownCommand:
		return "ERROR_UNKNOWN_COMMAND"
	case ErrorBadState:
		return "ERROR_BAD_STATE"
	case ErrorBadLength:
		return "ERROR_BAD_LENGTH"
	case ErrorChecksum:
		return "ERROR_CHECKSUM"
	case ErrorFileNotFound:
		return "ERROR_FILE_NOT_FOUND"
	case ErrorFileTooLarge:
		return "ERROR_FILE_TOO_LARGE"
	case ErrorStorage:
		return "ERROR_STORAGE"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(c))
	}
}

// IsRequest reports whether c is one of the request codes.
func (c Code) IsRequest() bool {
	switch c {
	case StartUpload, SendPacket, FinalizeUpload, StartDownload, RequestPacket:
		return true
	}
	return false
}

// IsReply reports whether c is a reply code. Every code that is not a
// request is treated as a reply; unrecognised values are opaque errors.
func (c Code) IsReply() bool {
	return !c.IsRequest()
}

// description returns a human-readable explanation of a reply code.
func (c Code) description() string {
	switch c {
	case Success:
		return "success"
	case ErrorDownloadOver:
		return "download over"
	case ErrorUnknownCommand:
		return "unrecognized command"
	case ErrorBadState:
		return "command not valid in current state"
	case ErrorBadLength:
		return "invalid payload length"
	case ErrorChecksum:
		return "checksum mismatch"
	case ErrorFileNotFound:
		return "file not found"
	case ErrorFileTooLarge:
		return "file too large"
	case ErrorStorage:
		return "storage failure"
	default:
		return c.String()
	}
}
