// Package transport wraps a duplex byte stream with exact-length reads and
// writes.
//
// Serial links routinely return fewer bytes than requested; a short read or
// write is looped until the full count has moved. Any I/O error is fatal:
// the channel records it and refuses all further traffic.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrChannelBroken is returned by every call after a fatal I/O error.
var ErrChannelBroken = errors.New("channel broken by earlier I/O error")

// Error is a fatal I/O failure on the underlying stream.
type Error struct {
	Op  string // "read" or "write"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Channel provides ReadExact/WriteExact over an io.ReadWriter.
// Channel itself implements io.ReadWriter with the same exact semantics,
// so a framing codec can be layered directly on top of it.
type Channel struct {
	rw      io.ReadWriter
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	err error

	shortReads  int
	shortWrites int
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for short-I/O diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWriteRate paces writes to at most bytesPerSecond. Zero or a negative
// value disables pacing.
func WithWriteRate(bytesPerSecond int) Option {
	return func(c *Channel) {
		if bytesPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
		}
	}
}

// WithTimeout bounds every ReadExact and WriteExact call when the stream
// supports deadlines. Zero means block forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wraps rw.
func New(rw io.ReadWriter, opts ...Option) *Channel {
	if rw == nil {
		panic("transport: stream cannot be nil")
	}

	c := &Channel{
		rw:     rw,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadExact blocks until exactly n bytes have been read.
func (c *Channel) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := c.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFull fills buf completely.
func (c *Channel) ReadFull(buf []byte) error {
	if err := c.broken(); err != nil {
		return err
	}
	c.setReadDeadline()

	offset := 0
	for offset < len(buf) {
		n, err := c.rw.Read(buf[offset:])
		offset += n
		if offset >= len(buf) {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) && offset > 0 {
				err = io.ErrUnexpectedEOF
			}
			return c.fail("read", err)
		}
		c.shortReads++
		c.logger.Debug("short read", "got", offset, "want", len(buf))
	}
	return nil
}

// WriteExact blocks until every byte of p has been written.
func (c *Channel) WriteExact(p []byte) error {
	if err := c.broken(); err != nil {
		return err
	}
	c.setWriteDeadline()

	for len(p) > 0 {
		piece := p
		if c.limiter != nil {
			if burst := c.limiter.Burst(); len(piece) > burst {
				piece = piece[:burst]
			}
			if err := c.limiter.WaitN(context.Background(), len(piece)); err != nil {
				return c.fail("write", err)
			}
		}

		written := 0
		for written < len(piece) {
			n, err := c.rw.Write(piece[written:])
			written += n
			if err != nil {
				return c.fail("write", err)
			}
			if written < len(piece) {
				c.shortWrites++
				c.logger.Debug("short write", "wrote", written, "want", len(piece))
			}
		}
		p = p[len(piece):]
	}
	return nil
}

// Read implements io.Reader. It always fills p or fails.
func (c *Channel) Read(p []byte) (int, error) {
	if err := c.ReadFull(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Write implements io.Writer. It always writes all of p or fails.
func (c *Channel) Write(p []byte) (int, error) {
	if err := c.WriteExact(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Err returns the fatal error that broke the channel, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ShortIO returns how many short reads and writes have been retried.
func (c *Channel) ShortIO() (reads, writes int) {
	return c.shortReads, c.shortWrites
}

func (c *Channel) broken() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrChannelBroken, err)
	}
	return nil
}

func (c *Channel) fail(op string, err error) error {
	terr := &Error{Op: op, Err: err}
	c.mu.Lock()
	if c.err == nil {
		c.err = terr
	}
	c.mu.Unlock()
	c.logger.Error("transport failure", "op", op, "error", err)
	return terr
}

func (c *Channel) setReadDeadline() {
	if c.timeout == 0 {
		return
	}
	if d, ok := c.rw.(readDeadliner); ok {
		if err := d.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.logger.Debug("read deadline not supported", "error", err)
		}
	}
}

func (c *Channel) setWriteDeadline() {
	if c.timeout == 0 {
		return
	}
	if d, ok := c.rw.(writeDeadliner); ok {
		if err := d.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			c.logger.Debug("write deadline not supported", "error", err)
		}
	}
}
