package fileInfo

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"github.com/rescp17/serialFileSharer/pkg/integrity"
)

func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CalcChecksum streams the file from disk and stores its SHA-256.
func (n *FileNode) CalcChecksum() (string, error) {
	sum, err := calculateSHA256(n.Path)
	if err != nil {
		return "", err
	}
	n.Checksum = sum
	return sum, nil
}

// VerifyData reports whether data matches the node's checksum.
func (n *FileNode) VerifyData(data []byte) (bool, error) {
	expected, err := n.Digest()
	if err != nil {
		return false, err
	}
	return integrity.Equal(expected, integrity.Sum(data)), nil
}
