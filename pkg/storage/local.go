package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const defaultBufferSize = 64 * 1024

// Local is a filesystem backend on top of afero
type Local struct {
	fs         afero.Fs
	bufferSize int
}

// NewLocal creates a backend on the operating system filesystem
func NewLocal() *Local {
	return NewWithFs(afero.NewOsFs())
}

// NewWithFs creates a backend on an arbitrary afero filesystem
func NewWithFs(fsys afero.Fs) *Local {
	return &Local{fs: fsys, bufferSize: defaultBufferSize}
}

// SetBufferSize sets the copy buffer size in bytes
func (l *Local) SetBufferSize(size int) {
	if size > 0 {
		l.bufferSize = size
	}
}

// Fs exposes the underlying filesystem
func (l *Local) Fs() afero.Fs {
	return l.fs
}

// Walk visits root and everything below it
func (l *Local) Walk(ctx context.Context, root string, fn WalkFunc) error {
	return afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var fi *FileInfo
		if info != nil {
			fi = toFileInfo(path, info)
		}
		return fn(path, fi, err)
	})
}

// Open opens a file for reading
func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := l.lstat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return toFileInfo(path, info), nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence: %w", err)
}

// Move renames src to dst. When the rename crosses a device boundary the
// file is copied into a temporary name beside dst, renamed into place and
// only then is src removed.
func (l *Local) Move(ctx context.Context, src, dst string) (int64, error) {
	info, err := l.lstat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}
	if err := l.ensureFree(dst); err != nil {
		return 0, err
	}

	if err := l.fs.Rename(src, dst); err == nil {
		return info.Size(), nil
	} else if !isCrossDevice(err) {
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	written, err := l.Copy(ctx, src, dst)
	if err != nil {
		return 0, err
	}
	if err := l.fs.Remove(src); err != nil {
		return written, fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return written, nil
}

// Copy duplicates src at dst without ever exposing a partial file at dst
func (l *Local) Copy(ctx context.Context, src, dst string) (int64, error) {
	if err := l.ensureFree(dst); err != nil {
		return 0, err
	}

	in, err := l.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dst), ".mediatidy-"+uuid.NewString()+".tmp")
	out, err := l.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.CopyBuffer(out, &contextReader{ctx: ctx, r: in}, make([]byte, l.bufferSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written != info.Size() {
		err = fmt.Errorf("incomplete write: expected %d bytes, wrote %d", info.Size(), written)
	}
	if err == nil {
		err = l.fs.Chtimes(tmp, info.ModTime(), info.ModTime())
	}
	if err == nil {
		err = l.ensureFree(dst)
	}
	if err == nil {
		err = l.fs.Rename(tmp, dst)
	}
	if err != nil {
		l.fs.Remove(tmp)
		return 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return written, nil
}

// Remove deletes a single file
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(path); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := l.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close releases resources (no-op for afero filesystems)
func (l *Local) Close() error {
	return nil
}

func (l *Local) lstat(path string) (os.FileInfo, error) {
	if lst, ok := l.fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(path)
		return info, err
	}
	return l.fs.Stat(path)
}

func (l *Local) ensureFree(path string) error {
	exists, err := l.Exists(context.Background(), path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", path, ErrDestinationExists)
	}
	return nil
}

func toFileInfo(path string, info os.FileInfo) *FileInfo {
	return &FileInfo{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
		Mode:      info.Mode(),
	}
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// contextReader stops a copy once ctx is cancelled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
