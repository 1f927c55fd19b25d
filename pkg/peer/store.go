package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rescp17/serialFileSharer/internal/util"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// Store persists complete files by name.
type Store interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
}

// sessionStore is implemented by stores that can log with the attributes of
// the session using them.
type sessionStore interface {
	withLogger(logger *slog.Logger) Store
}

// SanitizeName strips any directory components so a peer cannot write or
// read outside the store.
func SanitizeName(name string) (string, error) {
	clean := filepath.Base(filepath.Clean(name))
	switch clean {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}

// DirStore keeps files in a single directory.
type DirStore struct {
	dir    string
	logger *slog.Logger
}

type StoreOption func(*DirStore)

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *DirStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string, opts ...StoreOption) (*DirStore, error) {
	if err := util.EnsureDirectory(dir); err != nil {
		return nil, fmt.Errorf("store directory: %w", err)
	}
	s := &DirStore{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// withLogger returns a copy of s that logs through logger.
func (s *DirStore) withLogger(logger *slog.Logger) Store {
	c := *s
	c.logger = logger
	return &c
}

func (s *DirStore) Dir() string {
	return s.dir
}

// Save writes to a temporary file and renames it into place, so a reader
// never sees a partial file.
func (s *DirStore) Save(name string, data []byte) error {
	clean, err := SanitizeName(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+clean+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.cleanupPartialFile(tmpPath)
		return fmt.Errorf("failed to write %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		s.cleanupPartialFile(tmpPath)
		return fmt.Errorf("failed to close %s: %w", clean, err)
	}

	finalPath := filepath.Join(s.dir, clean)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		s.cleanupPartialFile(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", clean, err)
	}
	s.logger.Info("File stored", "fileName", clean, "path", finalPath, "size", len(data))
	return nil
}

func (s *DirStore) Load(name string) ([]byte, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, clean)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, clean)
	}
	return os.ReadFile(path)
}

// cleanupPartialFile removes an incomplete temp file and logs the cleanup
func (s *DirStore) cleanupPartialFile(path string) {
	s.logger.Info("Cleaning up partial file", "path", path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to cleanup partial file", "path", path, "error", err)
	}
}

// MemStore keeps files in memory.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) Save(name string, data []byte) error {
	clean, err := SanitizeName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[clean] = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) Load(name string) ([]byte, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[clean]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return append([]byte(nil), data...), nil
}
