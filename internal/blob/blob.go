// Package blob stores uploaded evidence files under generated names. The
// metadata lives in the database; this package only moves bytes.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

type Store interface {
	// Put writes r under name and returns the number of bytes stored.
	Put(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

// NewName returns 32 hex characters of randomness plus the lower-cased
// extension of original. The original name never reaches the storage layer.
func NewName(original string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random name: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(original, "\\", "/"))))
	if len(ext) > 16 || strings.ContainsAny(ext, " /\x00") {
		ext = ""
	}
	return hex.EncodeToString(buf) + ext, nil
}

// validName accepts a single flat path element.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
