package fileInfo

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rescp17/serialFileSharer/pkg/integrity"
)

// ErrIsDir is returned for a directory; only regular files can be sent.
var ErrIsDir = errors.New("cannot transfer a directory")

// ErrChanged is returned when file contents no longer match the node.
var ErrChanged = errors.New("file changed while reading")

const defaultMimeType = "application/octet-stream"

type FileNode struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// CreateNode describes the file at path without keeping its contents.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	if info.IsDir() {
		return FileNode{}, fmt.Errorf("%s: %w", path, ErrIsDir)
	}

	node := FileNode{
		Name: info.Name(),
		Size: info.Size(),
		Path: path,
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		node.MimeType = defaultMimeType
	} else {
		node.MimeType = mime.String()
	}
	if _, err := node.CalcChecksum(); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

// Load describes the file at path and reads it into memory. The checksum is
// streamed from disk first and the buffer is checked against it, so a file
// that changes while it is being read is refused.
func Load(path string) (FileNode, []byte, error) {
	node, err := CreateNode(path)
	if err != nil {
		return FileNode{}, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FileNode{}, nil, err
	}
	if err := node.check(data); err != nil {
		return FileNode{}, nil, err
	}
	return node, data, nil
}

func (n *FileNode) check(data []byte) error {
	ok, err := n.VerifyData(data)
	if err != nil {
		return err
	}
	if !ok || int64(len(data)) != n.Size {
		return fmt.Errorf("%s: %w", n.Path, ErrChanged)
	}
	return nil
}

// Digest parses the node's checksum.
func (n *FileNode) Digest() (integrity.Digest, error) {
	return integrity.ParseHex(n.Checksum)
}
