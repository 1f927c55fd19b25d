package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/rescp17/serialFileSharer/pkg/concurrency"
	"github.com/rescp17/serialFileSharer/pkg/integrity"
	"github.com/rescp17/serialFileSharer/pkg/protocol"
	"github.com/rescp17/serialFileSharer/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeer answers every request with handle and records what it received.
type fakePeer struct {
	mu       sync.Mutex
	received []protocol.Message
	handle   func(protocol.Message) protocol.Message
	done     chan struct{}
}

func (p *fakePeer) serve(conn net.Conn) {
	defer close(p.done)
	for {
		m, err := protocol.ReadMessage(conn)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.received = append(p.received, m)
		p.mu.Unlock()

		if err := protocol.WriteMessage(conn, p.handle(m)); err != nil {
			return
		}
	}
}

func (p *fakePeer) messages() []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Message(nil), p.received...)
}

func (p *fakePeer) codes() []protocol.Code {
	var codes []protocol.Code
	for _, m := range p.messages() {
		codes = append(codes, m.Code)
	}
	return codes
}

// newTestClient connects a Client to a fakePeer over an in-memory pipe.
func newTestClient(t *testing.T, handle func(protocol.Message) protocol.Message, opts ...Option) (*Client, *fakePeer) {
	t.Helper()

	local, remote := net.Pipe()
	peer := &fakePeer{handle: handle, done: make(chan struct{})}
	go peer.serve(remote)

	t.Cleanup(func() {
		local.Close()
		<-peer.done
		remote.Close()
	})

	client, err := NewClient(local, opts...)
	require.NoError(t, err)
	return client, peer
}

func alwaysSuccess(protocol.Message) protocol.Message {
	return protocol.Message{Code: protocol.Success}
}

// serveFile plays the download side of a peer holding data.
func serveFile(t *testing.T, data []byte, packetSize int) func(protocol.Message) protocol.Message {
	var chunker *Chunker
	return func(m protocol.Message) protocol.Message {
		switch m.Code {
		case protocol.StartDownload:
			var err error
			chunker, err = NewChunker(data, packetSize)
			assert.NoError(t, err)
			return protocol.Message{Code: protocol.Success}
		case protocol.RequestPacket:
			chunk, err := chunker.Next()
			if err == io.EOF {
				return protocol.Message{Code: protocol.ErrorDownloadOver}
			}
			return protocol.Message{Code: protocol.Success, Payload: chunk.Data}
		default:
			return protocol.Message{Code: protocol.ErrorUnknownCommand}
		}
	}
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestUpload_SuccessfulSequence(t *testing.T) {
	data := testData(2500)
	client, peer := newTestClient(t, alwaysSuccess)

	res, err := client.Upload(context.Background(), UploadRequest{Name: "a.bin", Data: data})
	require.NoError(t, err)

	msgs := peer.messages()
	require.Len(t, msgs, 5)

	assert.Equal(t, protocol.StartUpload, msgs[0].Code)
	digest := integrity.Sum(data)
	assert.Equal(t, digest.Bytes(), msgs[0].Payload)

	var sizes []int
	var rebuilt []byte
	for _, m := range msgs[1:4] {
		assert.Equal(t, protocol.SendPacket, m.Code)
		sizes = append(sizes, len(m.Payload))
		rebuilt = append(rebuilt, m.Payload...)
	}
	assert.Equal(t, []int{1024, 1024, 452}, sizes)
	assert.Equal(t, data, rebuilt)

	assert.Equal(t, protocol.FinalizeUpload, msgs[4].Code)
	assert.Equal(t, "a.bin", string(msgs[4].Payload))

	assert.Equal(t, 2500, res.Size)
	assert.Equal(t, 3, res.Packets)
	assert.Equal(t, digest, res.Digest)
	assert.NotEmpty(t, res.Session)
}

func TestUpload_CustomPacketSize(t *testing.T) {
	client, peer := newTestClient(t, alwaysSuccess, WithConfig(&Config{PacketSize: 100}))

	_, err := client.Upload(context.Background(), UploadRequest{Name: "x", Data: testData(1000)})
	require.NoError(t, err)

	sends := 0
	for _, m := range peer.messages() {
		if m.Code == protocol.SendPacket {
			assert.Len(t, m.Payload, 100)
			sends++
		}
	}
	assert.Equal(t, 10, sends)
}

func TestUpload_RejectedAtStart(t *testing.T) {
	client, peer := newTestClient(t, func(m protocol.Message) protocol.Message {
		return protocol.Message{Code: protocol.ErrorChecksum}
	})

	_, err := client.Upload(context.Background(), UploadRequest{Name: "a.bin", Data: testData(2500)})
	require.Error(t, err)

	var perr *protocol.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "start upload", perr.Operation)
	assert.Equal(t, protocol.ErrorChecksum, perr.Code)

	assert.Equal(t, []protocol.Code{protocol.StartUpload}, peer.codes(), "nothing may follow a rejected start")
}

func TestUpload_RejectedMidStream(t *testing.T) {
	sent := 0
	client, peer := newTestClient(t, func(m protocol.Message) protocol.Message {
		if m.Code == protocol.SendPacket {
			sent++
			if sent == 2 {
				return protocol.Message{Code: protocol.ErrorStorage}
			}
		}
		return protocol.Message{Code: protocol.Success}
	})

	_, err := client.Upload(context.Background(), UploadRequest{Name: "a.bin", Data: testData(2500)})

	code, ok := protocol.ReplyCode(err)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrorStorage, code)
	assert.Equal(t, []protocol.Code{protocol.StartUpload, protocol.SendPacket, protocol.SendPacket}, peer.codes())
}

func TestUpload_ZeroLength(t *testing.T) {
	client, peer := newTestClient(t, alwaysSuccess)

	res, err := client.Upload(context.Background(), UploadRequest{Name: "empty", Data: nil})
	require.NoError(t, err)

	assert.Equal(t, []protocol.Code{protocol.StartUpload, protocol.FinalizeUpload}, peer.codes())
	assert.Equal(t, 0, res.Packets)
	assert.Equal(t, integrity.Sum(nil), res.Digest)
}

func TestUpload_InvalidRequest(t *testing.T) {
	client, peer := newTestClient(t, alwaysSuccess, WithConfig(&Config{PacketSize: 16, MaxFileSize: 10}))

	_, err := client.Upload(context.Background(), UploadRequest{Name: "", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = client.Upload(context.Background(), UploadRequest{Name: "big", Data: testData(11)})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, peer.messages())
}

func TestDownload_Reassembly(t *testing.T) {
	data := testData(2500)
	client, peer := newTestClient(t, serveFile(t, data, 1024))

	res, err := client.Download(context.Background(), DownloadRequest{
		Name:   "a.bin",
		Size:   len(data),
		Digest: integrity.Sum(data),
	})
	require.NoError(t, err)

	assert.Equal(t, data, res.Data)
	assert.Equal(t, 3, res.Packets)

	msgs := peer.messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, protocol.StartDownload, msgs[0].Code)
	assert.Equal(t, "a.bin", string(msgs[0].Payload))
	for _, m := range msgs[1:] {
		assert.Equal(t, protocol.RequestPacket, m.Code)
		assert.Empty(t, m.Payload)
	}
}

func TestDownload_SingleChunk(t *testing.T) {
	data := []byte("whole file in one reply")
	var states []State
	client, peer := newTestClient(t, serveFile(t, data, 1024), WithProgress(func(p Progress) {
		if len(states) == 0 || states[len(states)-1] != p.State {
			states = append(states, p.State)
		}
	}))

	res, err := client.Download(context.Background(), DownloadRequest{
		Name:   "one.txt",
		Size:   len(data),
		Digest: integrity.Sum(data),
	})
	require.NoError(t, err)

	assert.Equal(t, data, res.Data)
	assert.Equal(t, 1, res.Packets)
	assert.Equal(t, []protocol.Code{protocol.StartDownload, protocol.RequestPacket, protocol.RequestPacket}, peer.codes())
	assert.Equal(t, []State{StateStarting, StateReceiving, StateVerifying, StateDone}, states)
}

func TestDownload_VariableChunkSizes(t *testing.T) {
	data := testData(1000)
	client, _ := newTestClient(t, serveFile(t, data, 333))

	res, err := client.Download(context.Background(), DownloadRequest{Name: "v", Size: len(data), Digest: integrity.Sum(data)})
	require.NoError(t, err)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, 4, res.Packets)
}

func TestDownload_IntegrityFailure(t *testing.T) {
	data := testData(2500)
	corrupted := bytes.Clone(data)
	corrupted[1234] ^= 0x01

	client, _ := newTestClient(t, serveFile(t, corrupted, 1024))

	_, err := client.Download(context.Background(), DownloadRequest{Name: "a.bin", Size: len(data), Digest: integrity.Sum(data)})
	require.Error(t, err)

	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, integrity.Sum(data), ierr.Expected)
	assert.Equal(t, integrity.Sum(corrupted), ierr.Actual)
	assert.True(t, IsIntegrityError(err))
}

func TestDownload_ZeroLength(t *testing.T) {
	client, peer := newTestClient(t, serveFile(t, nil, 1024))

	res, err := client.Download(context.Background(), DownloadRequest{Name: "empty", Size: 0, Digest: integrity.Sum(nil)})
	require.NoError(t, err)

	assert.Empty(t, res.Data)
	assert.Equal(t, []protocol.Code{protocol.StartDownload, protocol.RequestPacket}, peer.codes())
}

func TestDownload_Overflow(t *testing.T) {
	data := testData(2048)
	client, _ := newTestClient(t, serveFile(t, data, 1024))

	_, err := client.Download(context.Background(), DownloadRequest{Name: "a.bin", Size: 1500, Digest: integrity.Sum(data[:1500])})
	require.Error(t, err)

	var berr *BoundsError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 1500, berr.Capacity)
	assert.Equal(t, 2048, berr.Received)
}

func TestDownload_ErrorReplies(t *testing.T) {
	t.Run("start refused", func(t *testing.T) {
		client, peer := newTestClient(t, func(protocol.Message) protocol.Message {
			return protocol.Message{Code: protocol.ErrorFileNotFound}
		})

		_, err := client.Download(context.Background(), DownloadRequest{Name: "missing", Size: 4})
		code, ok := protocol.ReplyCode(err)
		require.True(t, ok)
		assert.Equal(t, protocol.ErrorFileNotFound, code)
		assert.Len(t, peer.messages(), 1)
	})

	t.Run("packet refused", func(t *testing.T) {
		client, _ := newTestClient(t, func(m protocol.Message) protocol.Message {
			if m.Code == protocol.RequestPacket {
				return protocol.Message{Code: protocol.Code(0x42)}
			}
			return protocol.Message{Code: protocol.Success}
		})

		_, err := client.Download(context.Background(), DownloadRequest{Name: "f", Size: 4})
		var perr *protocol.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "request packet", perr.Operation)
		assert.Equal(t, protocol.Code(0x42), perr.Code)
	})
}

func TestRoundTrip(t *testing.T) {
	data := testData(3000)
	var stored []byte
	var download func(protocol.Message) protocol.Message

	client, peer := newTestClient(t, func(m protocol.Message) protocol.Message {
		switch m.Code {
		case protocol.SendPacket:
			stored = append(stored, m.Payload...)
		case protocol.StartDownload:
			download = serveFile(t, stored, 1024)
			return download(m)
		case protocol.RequestPacket:
			return download(m)
		}
		return protocol.Message{Code: protocol.Success}
	})

	res, err := client.RoundTrip(context.Background(), "rt.bin", data)
	require.NoError(t, err)
	assert.Equal(t, data, res.Data)

	codes := peer.codes()
	assert.Equal(t, protocol.StartUpload, codes[0])
	assert.Equal(t, protocol.FinalizeUpload, codes[4])
	assert.Equal(t, protocol.StartDownload, codes[5])
	assert.Equal(t, protocol.RequestPacket, codes[len(codes)-1])
}

func TestClient_ProgressAndStates(t *testing.T) {
	var states []State
	var last Progress
	client, _ := newTestClient(t, alwaysSuccess, WithProgress(func(p Progress) {
		if len(states) == 0 || states[len(states)-1] != p.State {
			states = append(states, p.State)
		}
		last = p
	}))

	_, err := client.Upload(context.Background(), UploadRequest{Name: "p", Data: testData(2048)})
	require.NoError(t, err)

	assert.Equal(t, []State{StateStarting, StateSending, StateFinalizing, StateDone}, states)
	assert.Equal(t, 2048, last.BytesDone)
	assert.Equal(t, 2, last.Packets)
	assert.Equal(t, 1.0, last.Percent())
}

func TestClient_FailedProgressCarriesError(t *testing.T) {
	var last Progress
	client, _ := newTestClient(t, func(protocol.Message) protocol.Message {
		return protocol.Message{Code: protocol.ErrorBadState}
	}, WithProgress(func(p Progress) { last = p }))

	_, err := client.Upload(context.Background(), UploadRequest{Name: "p", Data: []byte("abc")})
	require.Error(t, err)

	assert.Equal(t, StateFailed, last.State)
	assert.Error(t, last.Err)
}

func TestClient_Observer(t *testing.T) {
	var trace []string
	client, _ := newTestClient(t, alwaysSuccess, WithObserver(func(dir protocol.Direction, m protocol.Message) {
		trace = append(trace, dir.String()+" "+m.Code.String())
	}))

	_, err := client.Upload(context.Background(), UploadRequest{Name: "o", Data: []byte("hi")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"send START_UPLOAD", "recv SUCCESS",
		"send SEND_PACKET", "recv SUCCESS",
		"send FINALIZE_UPLOAD", "recv SUCCESS",
	}, trace)
}

func TestClient_Busy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	client, _ := newTestClient(t, func(m protocol.Message) protocol.Message {
		once.Do(func() {
			close(entered)
			<-release
		})
		return protocol.Message{Code: protocol.Success}
	})

	done := make(chan error, 1)
	go func() {
		_, err := client.Upload(context.Background(), UploadRequest{Name: "slow", Data: []byte("abc")})
		done <- err
	}()

	<-entered
	assert.True(t, client.Busy())
	_, err := client.Download(context.Background(), DownloadRequest{Name: "other"})
	assert.ErrorIs(t, err, concurrency.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, client.Busy())
}

func TestClient_CancelledContext(t *testing.T) {
	client, peer := newTestClient(t, alwaysSuccess)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Upload(ctx, UploadRequest{Name: "c", Data: []byte("abc")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, peer.messages())
}

func TestClient_TransportFailure(t *testing.T) {
	local, remote := net.Pipe()
	remote.Close()
	defer local.Close()

	client, err := NewClient(local)
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), UploadRequest{Name: "t", Data: []byte("abc")})
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write", terr.Op)

	// The channel is now broken for good.
	_, err = client.Upload(context.Background(), UploadRequest{Name: "t", Data: []byte("abc")})
	assert.ErrorIs(t, err, transport.ErrChannelBroken)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	_, err = NewClient(local, WithConfig(&Config{PacketSize: 0}))
	assert.Error(t, err)

	ch := transport.New(local)
	client, err := NewClient(ch)
	require.NoError(t, err)
	assert.Same(t, ch, client.channel, "an existing channel is reused")
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateIdle.CanTransitionTo(DirectionUpload, StateStarting))
	assert.True(t, StateStarting.CanTransitionTo(DirectionUpload, StateSending))
	assert.False(t, StateStarting.CanTransitionTo(DirectionUpload, StateReceiving))
	assert.True(t, StateStarting.CanTransitionTo(DirectionDownload, StateReceiving))
	assert.True(t, StateReceiving.CanTransitionTo(DirectionDownload, StateVerifying))
	assert.True(t, StateSending.CanTransitionTo(DirectionUpload, StateFailed))
	assert.False(t, StateDone.CanTransitionTo(DirectionUpload, StateFailed))
	assert.False(t, StateFailed.CanTransitionTo(DirectionDownload, StateStarting))

	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateVerifying.IsTerminal())
	assert.Equal(t, "verifying", StateVerifying.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestErrorMessages(t *testing.T) {
	b := &BoundsError{Capacity: 10, Received: 12}
	assert.Equal(t, "download overflow: received 12 bytes into a 10 byte buffer", b.Error())

	wrapped := errors.Join(errors.New("ctx"), &IntegrityError{})
	assert.True(t, IsIntegrityError(wrapped))
}
