// Package transfer drives the chunked upload and download sequences over a
// framed connection. Every request blocks until its reply has been read; there
// is never more than one message in flight.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/serialFileSharer/pkg/concurrency"
	"github.com/rescp17/serialFileSharer/pkg/integrity"
	"github.com/rescp17/serialFileSharer/pkg/protocol"
	"github.com/rescp17/serialFileSharer/pkg/transport"
)

// UploadRequest is a file held entirely in memory.
type UploadRequest struct {
	// Name is sent with FINALIZE_UPLOAD as the destination file name.
	Name string
	Data []byte
}

type UploadResult struct {
	Session string
	Name    string
	Size    int
	Digest  integrity.Digest
	Packets int
	Elapsed time.Duration
}

// DownloadRequest names a stored file together with what the caller already
// knows about it: its exact size and its digest.
type DownloadRequest struct {
	Name   string
	Size   int
	Digest integrity.Digest
}

type DownloadResult struct {
	Session string
	Name    string
	Data    []byte
	Digest  integrity.Digest
	Packets int
	Elapsed time.Duration
}

// Client runs transfer sequences against a peer. A Client admits one
// sequence at a time; overlapping calls fail with concurrency.ErrBusy.
type Client struct {
	conn     *protocol.Conn
	channel  *transport.Channel
	config   *Config
	logger   *slog.Logger
	progress ProgressCallback
	hasher   integrity.Hasher
	observer protocol.Observer
	guard    *concurrency.ConcurrencyGuard
}

// NewClient returns a Client speaking over rw. If rw is not already a
// *transport.Channel it is wrapped in one.
func NewClient(rw io.ReadWriter, opts ...Option) (*Client, error) {
	if rw == nil {
		return nil, fmt.Errorf("transfer: stream cannot be nil")
	}

	c := &Client{
		config: DefaultConfig(),
		logger: slog.Default(),
		hasher: integrity.SHA256{},
		guard:  concurrency.NewConcurrencyGuard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}

	ch, ok := rw.(*transport.Channel)
	if !ok {
		ch = transport.New(rw, transport.WithLogger(c.logger))
	}
	c.channel = ch
	c.conn = protocol.NewConn(ch, c.observer)
	return c, nil
}

// Upload sends req.Data to the peer and asks it to store the file as
// req.Name.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	var res *UploadResult
	err := c.guard.Execute(func() error {
		var err error
		res, err = c.upload(ctx, req)
		return err
	})
	return res, err
}

// Download fetches req.Name and verifies it against req.Digest.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	var res *DownloadResult
	err := c.guard.Execute(func() error {
		var err error
		res, err = c.download(ctx, req)
		return err
	})
	return res, err
}

// RoundTrip uploads data as name, downloads it back and verifies the copy
// against the digest that was uploaded.
func (c *Client) RoundTrip(ctx context.Context, name string, data []byte) (*DownloadResult, error) {
	var res *DownloadResult
	err := c.guard.Execute(func() error {
		up, err := c.upload(ctx, UploadRequest{Name: name, Data: data})
		if err != nil {
			return err
		}
		res, err = c.download(ctx, DownloadRequest{Name: name, Size: up.Size, Digest: up.Digest})
		return err
	})
	return res, err
}

// Busy reports whether a sequence is running.
func (c *Client) Busy() bool {
	return c.guard.Busy()
}

func (c *Client) upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if c.config.MaxFileSize > 0 && int64(len(req.Data)) > c.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, len(req.Data), c.config.MaxFileSize)
	}

	seq := c.begin(DirectionUpload, req.Name, len(req.Data))

	digest := c.hasher.Sum(req.Data)
	seq.logger.Debug("digest computed", "digest", digest.String())

	seq.enter(StateStarting)
	if err := c.expectSuccess(ctx, "start upload", protocol.Message{Code: protocol.StartUpload, Payload: digest.Bytes()}); err != nil {
		return nil, seq.fail(err)
	}

	seq.enter(StateSending)
	chunker, err := NewChunker(req.Data, c.config.PacketSize)
	if err != nil {
		return nil, seq.fail(err)
	}
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, seq.fail(err)
		}
		if err := c.expectSuccess(ctx, "send packet", protocol.Message{Code: protocol.SendPacket, Payload: chunk.Data}); err != nil {
			return nil, seq.fail(err)
		}
		seq.advance(len(chunk.Data))
	}

	seq.enter(StateFinalizing)
	if err := c.expectSuccess(ctx, "finalize upload", protocol.Message{Code: protocol.FinalizeUpload, Payload: []byte(req.Name)}); err != nil {
		return nil, seq.fail(err)
	}

	seq.enter(StateDone)
	return &UploadResult{
		Session: seq.session,
		Name:    req.Name,
		Size:    len(req.Data),
		Digest:  digest,
		Packets: seq.packets,
		Elapsed: time.Since(seq.start),
	}, nil
}

func (c *Client) download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if req.Size < 0 {
		return nil, fmt.Errorf("download size cannot be negative: %d", req.Size)
	}

	seq := c.begin(DirectionDownload, req.Name, req.Size)
	buf := make([]byte, req.Size)
	offset := 0

	seq.enter(StateStarting)
	if err := c.expectSuccess(ctx, "start download", protocol.Message{Code: protocol.StartDownload, Payload: []byte(req.Name)}); err != nil {
		return nil, seq.fail(err)
	}

	seq.enter(StateReceiving)
	for {
		reply, err := c.exchange(ctx, "request packet", protocol.Message{Code: protocol.RequestPacket})
		if err != nil {
			return nil, seq.fail(err)
		}
		if reply.Code == protocol.ErrorDownloadOver {
			break
		}
		if reply.Code != protocol.Success {
			return nil, seq.fail(&protocol.Error{Operation: "request packet", Code: reply.Code})
		}
		if offset+len(reply.Payload) > len(buf) {
			return nil, seq.fail(&BoundsError{Capacity: len(buf), Received: offset + len(reply.Payload)})
		}
		offset += copy(buf[offset:], reply.Payload)
		seq.advance(len(reply.Payload))
	}

	seq.enter(StateVerifying)
	received := buf[:offset]
	actual := c.hasher.Sum(received)
	if !integrity.Equal(req.Digest, actual) {
		return nil, seq.fail(&IntegrityError{Expected: req.Digest, Actual: actual})
	}

	seq.enter(StateDone)
	return &DownloadResult{
		Session: seq.session,
		Name:    req.Name,
		Data:    received,
		Digest:  actual,
		Packets: seq.packets,
		Elapsed: time.Since(seq.start),
	}, nil
}

// exchange performs one request/reply step. The context is only consulted
// between steps; a blocked read is bounded by the channel timeout, if any.
func (c *Client) exchange(ctx context.Context, op string, req protocol.Message) (protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	reply, err := c.conn.Exchange(req)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return reply, nil
}

func (c *Client) expectSuccess(ctx context.Context, op string, req protocol.Message) error {
	reply, err := c.exchange(ctx, op, req)
	if err != nil {
		return err
	}
	if reply.Code != protocol.Success {
		return &protocol.Error{Operation: op, Code: reply.Code}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidName, len(name))
	}
	return nil
}

// sequence tracks one running upload or download for logging and progress.
type sequence struct {
	client  *Client
	logger  *slog.Logger
	session string
	dir     Direction
	name    string
	total   int
	state   State
	done    int
	packets int
	start   time.Time
}

func (c *Client) begin(dir Direction, name string, total int) *sequence {
	session := uuid.NewString()
	seq := &sequence{
		client:  c,
		session: session,
		dir:     dir,
		name:    name,
		total:   total,
		state:   StateIdle,
		start:   time.Now(),
		logger:  c.logger.With("session", session, "direction", dir.String(), "file", name),
	}
	seq.logger.Info("transfer started", "size", total, "packet_size", c.config.PacketSize)
	return seq
}

func (s *sequence) enter(next State) {
	if !s.state.CanTransitionTo(s.dir, next) {
		s.logger.Warn("unexpected state transition", "from", s.state.String(), "to", next.String())
	}
	s.state = next
	s.logger.Debug("state changed", "state", next.String())
	if next == StateDone {
		s.logger.Info("transfer complete", "bytes", s.done, "packets", s.packets, "elapsed", time.Since(s.start))
	}
	s.report(nil)
}

func (s *sequence) advance(n int) {
	s.done += n
	s.packets++
	s.report(nil)
}

func (s *sequence) fail(err error) error {
	s.state = StateFailed
	s.logger.Error("transfer failed", "bytes", s.done, "packets", s.packets, "error", err)
	s.report(err)
	return fmt.Errorf("%s %s: %w", s.dir, s.name, err)
}

func (s *sequence) report(err error) {
	if s.client.progress == nil {
		return
	}
	s.client.progress(Progress{
		Session:    s.session,
		Direction:  s.dir,
		Name:       s.name,
		State:      s.state,
		BytesDone:  s.done,
		TotalBytes: s.total,
		Packets:    s.packets,
		Elapsed:    time.Since(s.start),
		Err:        err,
	})
}
