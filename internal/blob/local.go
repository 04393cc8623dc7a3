package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// Local keeps blobs as flat files inside one directory.
type Local struct {
	fs afero.Fs
}

// NewLocal roots a blob store at dir on the OS filesystem, creating it if
// needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir blob dir: %w", err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewLocalFs wraps an existing afero filesystem, e.g. afero.NewMemMapFs().
func NewLocalFs(fsys afero.Fs) *Local {
	return &Local{fs: fsys}
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tmp := name + ".part"
	f, err := l.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.fs.Remove(tmp)
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if err := l.fs.Rename(tmp, name); err != nil {
		_ = l.fs.Remove(tmp)
		return 0, fmt.Errorf("commit blob: %w", err)
	}
	return n, nil
}

func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove is idempotent: a missing blob is not an error.
func (l *Local) Remove(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := l.fs.Remove(name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
