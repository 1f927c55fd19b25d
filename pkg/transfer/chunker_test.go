package transfer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects every chunk until io.EOF.
func drain(tb testing.TB, c *Chunker) []*Chunk {
	tb.Helper()

	var chunks []*Chunk
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return chunks
		}
		require.NoError(tb, err)
		chunks = append(chunks, chunk)
	}
}

func TestChunker_Completeness(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		expected  int
	}{
		{"empty", 0, 1024, 0},
		{"one byte", 1, 1024, 1},
		{"exact packet", 1024, 1024, 1},
		{"packet plus one", 1025, 1024, 2},
		{"short last packet", 2500, 1024, 3},
		{"tiny packets", 10, 3, 4},
		{"max packet", 70000, MaxPacketSize, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.size)
			c, err := NewChunker(data, tt.chunkSize)
			require.NoError(t, err)

			chunks := drain(t, c)
			require.Len(t, chunks, tt.expected)

			total := 0
			rebuilt := []byte{}
			for i, chunk := range chunks {
				assert.LessOrEqual(t, len(chunk.Data), tt.chunkSize)
				assert.Equal(t, total, chunk.Offset)
				assert.Equal(t, uint32(i+1), chunk.SequenceNo)
				assert.Equal(t, i == len(chunks)-1, chunk.IsLast)
				total += len(chunk.Data)
				rebuilt = append(rebuilt, chunk.Data...)
			}
			assert.Equal(t, tt.size, total)
			assert.Equal(t, data, rebuilt)
			assert.Equal(t, tt.size, c.Offset())
		})
	}
}

func TestChunker_TrailingShortChunk(t *testing.T) {
	c, err := NewChunker(make([]byte, 2500), 1024)
	require.NoError(t, err)

	var sizes []int
	for _, chunk := range drain(t, c) {
		sizes = append(sizes, len(chunk.Data))
	}
	assert.Equal(t, []int{1024, 1024, 452}, sizes)
}

func TestChunker_InvalidSize(t *testing.T) {
	_, err := NewChunker(nil, 0)
	assert.Error(t, err)

	_, err = NewChunker(nil, MaxPacketSize+1)
	assert.Error(t, err)
}

func TestChunker_Reset(t *testing.T) {
	c, err := NewChunker([]byte("abcdef"), 4)
	require.NoError(t, err)

	first := drain(t, c)
	c.Reset()
	second := drain(t, c)

	assert.Equal(t, first, second)
	assert.Equal(t, 6, c.Len())
}

func BenchmarkChunker(b *testing.B) {
	data := make([]byte, 1<<20)
	for i := 0; i < b.N; i++ {
		c, _ := NewChunker(data, DefaultPacketSize)
		drain(b, c)
	}
}
