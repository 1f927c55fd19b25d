// Package peer implements the responding end of the link: it answers upload
// and download commands one message at a time and keeps files in a Store.
package peer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rescp17/serialFileSharer/pkg/integrity"
	"github.com/rescp17/serialFileSharer/pkg/protocol"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
	"github.com/rescp17/serialFileSharer/pkg/transport"
)

type mode int

const (
	modeIdle mode = iota
	modeUploading
	modeDownloading
)

// Server holds the state of at most one upload or download at a time.
type Server struct {
	store       Store
	packetSize  int
	maxFileSize int64
	hasher      integrity.Hasher
	logger      *slog.Logger
	observer    protocol.Observer

	mu       sync.Mutex
	session  *slog.Logger
	mode     mode
	expected integrity.Digest
	buf      []byte
	chunker  *transfer.Chunker
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPacketSize sets both the largest SEND_PACKET accepted and the size of
// download chunks.
func WithPacketSize(n int) Option {
	return func(s *Server) {
		if n >= transfer.MinPacketSize && n <= transfer.MaxPacketSize {
			s.packetSize = n
		}
	}
}

// WithMaxFileSize bounds an upload. Zero means unlimited.
func WithMaxFileSize(n int64) Option {
	return func(s *Server) {
		if n >= 0 {
			s.maxFileSize = n
		}
	}
}

func WithHasher(h integrity.Hasher) Option {
	return func(s *Server) {
		if h != nil {
			s.hasher = h
		}
	}
}

func WithObserver(obs protocol.Observer) Option {
	return func(s *Server) {
		s.observer = obs
	}
}

func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:      store,
		packetSize: transfer.DefaultPacketSize,
		hasher:     integrity.SHA256{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle answers a single request.
func (s *Server) Handle(req protocol.Message) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Code {
	case protocol.StartUpload:
		return s.startUpload(req.Payload)
	case protocol.SendPacket:
		return s.sendPacket(req.Payload)
	case protocol.FinalizeUpload:
		return s.finalizeUpload(req.Payload)
	case protocol.StartDownload:
		return s.startDownload(req.Payload)
	case protocol.RequestPacket:
		return s.requestPacket()
	default:
		s.log().Warn("unknown command", "code", req.Code.String())
		return reply(protocol.ErrorUnknownCommand)
	}
}

// Reset abandons any sequence in progress.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Server) startUpload(payload []byte) protocol.Message {
	digest, err := integrity.FromBytes(payload)
	if err != nil {
		s.log().Warn("start upload rejected", "error", err)
		return reply(protocol.ErrorBadLength)
	}
	if s.mode != modeIdle {
		s.log().Info("abandoning sequence in progress for new upload")
	}
	s.reset()
	s.mode = modeUploading
	s.expected = digest
	s.log().Debug("upload started", "digest", digest.String())
	return reply(protocol.Success)
}

func (s *Server) sendPacket(payload []byte) protocol.Message {
	if s.mode != modeUploading {
		return reply(protocol.ErrorBadState)
	}
	if len(payload) > s.packetSize {
		s.log().Warn("oversized packet", "size", len(payload), "packet_size", s.packetSize)
		return reply(protocol.ErrorBadLength)
	}
	if s.maxFileSize > 0 && int64(len(s.buf)+len(payload)) > s.maxFileSize {
		s.log().Warn("upload exceeds size limit", "limit", s.maxFileSize)
		s.reset()
		return reply(protocol.ErrorFileTooLarge)
	}
	s.buf = append(s.buf, payload...)
	return reply(protocol.Success)
}

func (s *Server) finalizeUpload(payload []byte) protocol.Message {
	if s.mode != modeUploading {
		return reply(protocol.ErrorBadState)
	}
	defer s.reset()

	name, err := SanitizeName(string(payload))
	if err != nil {
		s.log().Warn("finalize rejected", "error", err)
		return reply(protocol.ErrorBadLength)
	}

	actual := s.hasher.Sum(s.buf)
	if !integrity.Equal(s.expected, actual) {
		s.log().Error("File integrity verification failed", "fileName", name,
			"expected", s.expected.String(), "actual", actual.String())
		return reply(protocol.ErrorChecksum)
	}

	if err := s.activeStore().Save(name, s.buf); err != nil {
		s.log().Error("failed to store file", "fileName", name, "error", err)
		return reply(protocol.ErrorStorage)
	}
	s.log().Info("upload complete", "fileName", name, "size", len(s.buf))
	return reply(protocol.Success)
}

func (s *Server) startDownload(payload []byte) protocol.Message {
	s.reset()

	data, err := s.activeStore().Load(string(payload))
	switch {
	case errors.Is(err, ErrInvalidName):
		return reply(protocol.ErrorBadLength)
	case errors.Is(err, ErrNotFound):
		s.log().Info("download of missing file", "fileName", string(payload))
		return reply(protocol.ErrorFileNotFound)
	case err != nil:
		s.log().Error("failed to load file", "fileName", string(payload), "error", err)
		return reply(protocol.ErrorStorage)
	}

	chunker, err := transfer.NewChunker(data, s.packetSize)
	if err != nil {
		return reply(protocol.ErrorStorage)
	}
	s.mode = modeDownloading
	s.chunker = chunker
	s.log().Info("download started", "fileName", string(payload), "size", len(data))
	return reply(protocol.Success)
}

func (s *Server) requestPacket() protocol.Message {
	if s.mode != modeDownloading {
		return reply(protocol.ErrorBadState)
	}
	chunk, err := s.chunker.Next()
	if err == io.EOF {
		s.log().Debug("download over", "bytes", s.chunker.Offset())
		s.reset()
		return reply(protocol.ErrorDownloadOver)
	}
	if err != nil {
		s.reset()
		return reply(protocol.ErrorStorage)
	}
	return protocol.Message{Code: protocol.Success, Payload: chunk.Data}
}

func (s *Server) reset() {
	s.mode = modeIdle
	s.expected = integrity.Digest{}
	s.buf = nil
	s.chunker = nil
}

// log returns the logger of the session being served, if any. Callers hold mu.
func (s *Server) log() *slog.Logger {
	if s.session != nil {
		return s.session
	}
	return s.logger
}

func (s *Server) activeStore() Store {
	if ss, ok := s.store.(sessionStore); ok && s.session != nil {
		return ss.withLogger(s.session)
	}
	return s.store
}

func reply(code protocol.Code) protocol.Message {
	return protocol.Message{Code: code}
}

// Serve answers requests on rw until the stream ends or ctx is cancelled.
// A clean end of stream between messages returns nil.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	session := uuid.NewString()
	logger := s.logger.With("session", session)
	logger.Info("peer session started")
	s.setSession(logger)
	defer s.setSession(nil)
	defer s.Reset()

	if c, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	conn := protocol.NewConn(transport.New(rw, transport.WithLogger(logger)), s.observer)
	for {
		req, err := conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				logger.Info("peer session ended")
				return nil
			}
			return err
		}
		if err := conn.Send(s.Handle(req)); err != nil {
			return err
		}
	}
}

// ServeListener accepts connections one at a time and serves each to
// completion before accepting the next. It returns nil once ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("peer listening", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.logger.Info("connection accepted", "remote", conn.RemoteAddr().String())
		if err := s.Serve(ctx, conn); err != nil && ctx.Err() == nil {
			s.logger.Error("session failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Server) setSession(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = logger
}
