package transfer

import (
	"fmt"
	"io"
)

// Chunk is one packet-sized window of a file buffer.
type Chunk struct {
	SequenceNo uint32
	Offset     int
	Data       []byte // sub-slice of the source buffer, not a copy
	IsLast     bool
}

// Chunker walks a buffer in windows of at most chunkSize bytes.
type Chunker struct {
	data       []byte
	chunkSize  int
	offset     int
	currentSeq uint32
}

// NewChunker returns a Chunker over data. The buffer must not be modified
// while chunks are in use.
func NewChunker(data []byte, chunkSize int) (*Chunker, error) {
	if chunkSize < MinPacketSize || chunkSize > MaxPacketSize {
		return nil, fmt.Errorf("chunk size must be between %d and %d", MinPacketSize, MaxPacketSize)
	}
	return &Chunker{data: data, chunkSize: chunkSize}, nil
}

// Next returns the next chunk, or io.EOF once the buffer is exhausted.
// An empty buffer yields io.EOF on the first call.
func (c *Chunker) Next() (*Chunk, error) {
	if c.offset >= len(c.data) {
		return nil, io.EOF
	}

	end := min(c.offset+c.chunkSize, len(c.data))
	chunk := &Chunk{
		SequenceNo: c.currentSeq + 1,
		Offset:     c.offset,
		Data:       c.data[c.offset:end],
		IsLast:     end == len(c.data),
	}
	c.currentSeq++
	c.offset = end
	return chunk, nil
}

// Offset is the number of bytes handed out so far.
func (c *Chunker) Offset() int {
	return c.offset
}

// Len is the size of the underlying buffer.
func (c *Chunker) Len() int {
	return len(c.data)
}

// Reset rewinds to the start of the buffer.
func (c *Chunker) Reset() {
	c.offset = 0
	c.currentSeq = 0
}
